package feature

import (
	"context"
	"fmt"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feast"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/pkg/conv"
)

// HeuristicSource 是分数来源链上的启发式来源：
// 用 Reducer 压缩请求里的原始信号，输出交给 softmax。
// 请求没有原始信号时不适用，链继续走向随机兜底。
type HeuristicSource struct {
	Reducer Reducer
}

func (s *HeuristicSource) Name() string {
	if s.Reducer == nil {
		return "heuristic"
	}
	return "heuristic." + s.Reducer.Name()
}

func (s *HeuristicSource) Kind() pipeline.Kind { return pipeline.KindHeuristic }

func (s *HeuristicSource) Scores(
	_ context.Context,
	_ *core.InferenceContext,
	req *pipeline.Request,
	_ []string,
) (*pipeline.Scores, error) {
	if s.Reducer == nil || req == nil || len(req.Features) == 0 {
		return nil, nil
	}
	reduced := s.Reducer.Reduce(req.Features)
	if len(reduced) == 0 {
		return nil, nil
	}
	return &pipeline.Scores{Values: reduced, Normalize: pipeline.NormalizeSoftmax}, nil
}

// FeastProvider 从 Feast 在线特征库按实体取原始信号，实现 pipeline.FeatureProvider。
//
// 实体 ID 取自 InferenceContext.Params[EntityParam]，缺省时使用 SessionID。
// 特征按 Features 的顺序展开，缺失或非数值的特征记为 Defaults 中的对应值（没有则 0）。
type FeastProvider struct {
	Client      feast.Client
	Project     string
	EntityKey   string    // 例如 "session_id"
	EntityParam string    // 默认 "entity_id"
	Features    []string  // 例如 ["pose_stats:knee_angle", "pose_stats:elbow_angle", "pose_stats:hip_y"]
	Defaults    []float64 // 与 Features 同序
}

func (p *FeastProvider) Name() string { return "feast" }

func (p *FeastProvider) Features(ctx context.Context, ictx *core.InferenceContext) ([]float64, error) {
	if p.Client == nil || len(p.Features) == 0 {
		return nil, nil
	}
	param := p.EntityParam
	if param == "" {
		param = "entity_id"
	}
	var entity any
	if ictx != nil {
		entity = ictx.Param(param)
		if entity == nil && ictx.SessionID != "" {
			entity = ictx.SessionID
		}
	}
	if entity == nil {
		return nil, nil
	}
	key := p.EntityKey
	if key == "" {
		key = "session_id"
	}

	resp, err := p.Client.GetOnlineFeatures(ctx, &feast.GetOnlineFeaturesRequest{
		Features:   p.Features,
		EntityRows: []map[string]interface{}{{key: entity}},
		Project:    p.Project,
	})
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeUnavailable, "feast online features", err)
	}
	if len(resp.FeatureVectors) == 0 {
		return nil, core.NewDomainError(core.ModuleFeature, core.ErrorCodeNotFound,
			fmt.Sprintf("no features for %s=%v", key, entity))
	}

	values := resp.FeatureVectors[0].Values
	out := make([]float64, len(p.Features))
	found := 0
	for i, name := range p.Features {
		if i < len(p.Defaults) {
			out[i] = p.Defaults[i]
		}
		if f, ok := conv.ToFloat64(values[name]); ok {
			out[i] = f
			found++
		}
	}
	if found == 0 {
		return nil, nil
	}
	return out, nil
}

var (
	_ pipeline.Source          = (*HeuristicSource)(nil)
	_ pipeline.FeatureProvider = (*FeastProvider)(nil)
)
