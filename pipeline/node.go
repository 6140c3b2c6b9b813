package pipeline

import (
	"context"

	"github.com/rushteam/inferkit/core"
)

// Kind 标记分数来源的类型，决定结果的 Mode（演示模式提示依赖它）。
type Kind string

const (
	KindOverride  Kind = "override"  // 演示覆盖表：按文件名强制结果
	KindModel     Kind = "model"     // 真实模型（本地或远程）
	KindHeuristic Kind = "heuristic" // 特征启发式
)

// Mode 返回该类型来源产生的结果模式。
func (k Kind) Mode() core.Mode {
	switch k {
	case KindModel:
		return core.ModeModel
	case KindOverride:
		return core.ModeOverride
	case KindHeuristic:
		return core.ModeHeuristic
	}
	return core.ModeFallback
}

// Normalization 描述 Scores.Values 需要的归一方式。
type Normalization string

const (
	NormalizeSoftmax Normalization = "softmax" // 原始分数（logits）
	NormalizeSum     Normalization = "sum"     // 非负分数，按和归一
	NormalizeNone    Normalization = "none"    // 已是概率分布
)

// ParseNormalization 解析配置中的归一方式，空串视为 softmax。
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case "", NormalizeSoftmax:
		return NormalizeSoftmax, nil
	case NormalizeSum:
		return NormalizeSum, nil
	case NormalizeNone:
		return NormalizeNone, nil
	}
	return "", core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput,
		"unknown normalization: "+s)
}

// Request 是一次推理的输入，已经由采集端解码为数值。
type Request struct {
	// Filename 上传文件名（可选）
	Filename string

	// Input 送入模型的展平张量
	Input []float64

	// Features 启发式使用的原始信号（频谱特征、关节角度等）
	Features []float64
}

// Scores 是某个来源给出的分数向量，与标签集同序。
type Scores struct {
	Values    []float64
	Normalize Normalization
}

// Source 是分数来源链的最小单元。
// 返回 (nil, nil) 表示该来源不适用，链继续向后；返回错误则中止本次推理。
type Source interface {
	Name() string
	Kind() Kind

	Scores(
		ctx context.Context,
		ictx *core.InferenceContext,
		req *Request,
		labels []string,
	) (*Scores, error)
}

// FeatureProvider 在请求未携带原始信号时补充特征（例如在线特征库）。
type FeatureProvider interface {
	Name() string
	Features(ctx context.Context, ictx *core.InferenceContext) ([]float64, error)
}
