// Package inferkit 是一个多模态推理适配器（Inference Kit）：图像、音频、姿态分类。
//
// 设计要点：
// - Ranker-first: 任何来源的分数都经过同一个排序核心（稳定 softmax → 稳定排序 → TopK）
// - Source chain: 覆盖表 → 模型 → 启发式，首个适用的来源给出分数，都不适用时随机兜底（演示模式）
// - Degrade, don't fail: 元数据、模型、特征库、存储不可用时降级并记录日志，而不是中断调用方
//
// 配置驱动的用法见 config/builders.Build；命令行见 cmd/inferkit。
package inferkit

import (
	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/ranker"
)

// 轻量 facade：便于用户直接 import "inferkit" 使用核心抽象。
type (
	Adapter   = pipeline.Adapter
	Pipeline  = pipeline.Pipeline
	Source    = pipeline.Source
	Request   = pipeline.Request
	Ranker    = ranker.Ranker
	TopResult = core.TopResult
	Modality  = core.Modality
	Mode      = core.Mode
)

const (
	ModalityImage = core.ModalityImage
	ModalityAudio = core.ModalityAudio
	ModalityPose  = core.ModalityPose

	ModeModel     = core.ModeModel
	ModeOverride  = core.ModeOverride
	ModeHeuristic = core.ModeHeuristic
	ModeFallback  = core.ModeFallback
)

// Normalize 把原始分数转换为概率分布（数值稳定的 softmax）。
func Normalize(scores []float64) []float64 { return ranker.Normalize(scores) }

// NewAdapter 创建模态适配器，见 pipeline.NewAdapter。
func NewAdapter(m Modality, labels []string, p *Pipeline, opts ...pipeline.AdapterOption) *Adapter {
	return pipeline.NewAdapter(m, labels, p, opts...)
}
