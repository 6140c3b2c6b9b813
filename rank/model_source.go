package rank

import (
	"context"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/model"
	"github.com/rushteam/inferkit/pipeline"
)

// ModelSource 是分数来源链上的真实模型来源：把请求的输入张量交给 Classifier，
// 输出分数按 Normalize 指定的方式归一（模型已带 softmax 头时用 none）。
//
// 请求没有输入张量时不适用；模型报错时返回错误，由 Adapter 包装为 UNAVAILABLE。
type ModelSource struct {
	Model     model.Classifier
	Normalize pipeline.Normalization
}

func (n *ModelSource) Name() string {
	if n.Model == nil {
		return "model"
	}
	return "model." + n.Model.Name()
}

func (n *ModelSource) Kind() pipeline.Kind { return pipeline.KindModel }

func (n *ModelSource) Scores(
	ctx context.Context,
	_ *core.InferenceContext,
	req *pipeline.Request,
	_ []string,
) (*pipeline.Scores, error) {
	if n.Model == nil || req == nil || len(req.Input) == 0 {
		return nil, nil
	}
	out, err := n.Model.Predict(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	norm := n.Normalize
	if norm == "" {
		norm = pipeline.NormalizeSoftmax
	}
	return &pipeline.Scores{Values: out, Normalize: norm}, nil
}

var _ pipeline.Source = (*ModelSource)(nil)
