package core

import (
	"encoding/json"
	"time"
)

// Mode 标记一次推理结果的分数来源，渲染层据此展示"演示模式"提示。
type Mode string

const (
	ModeModel     Mode = "model"     // 真实模型输出
	ModeHeuristic Mode = "heuristic" // 特征启发式 + softmax
	ModeOverride  Mode = "override"  // 演示用文件名覆盖表
	ModeFallback  Mode = "fallback"  // 均匀随机分布（演示模式）
)

// IsDemo 表示结果不是由真实模型产生。
func (m Mode) IsDemo() bool {
	return m != ModeModel
}

// RankedItem 是 (标签, 概率) 对，概率位于 [0,1]。
type RankedItem struct {
	Label string  `json:"label"`
	Prob  float64 `json:"prob"`
}

// Ranking 按概率降序排列、同分保持原始标签顺序，包含全部标签。
type Ranking []RankedItem

// Labels 返回排序后的标签序列。
func (r Ranking) Labels() []string {
	out := make([]string, len(r))
	for i, it := range r {
		out[i] = it.Label
	}
	return out
}

// Sum 返回概率之和。
func (r Ranking) Sum() float64 {
	var s float64
	for _, it := range r {
		s += it.Prob
	}
	return s
}

// TopResult 是一次推理调用的完整结果，每次调用重新计算，不持有外部资源。
type TopResult struct {
	RequestID string        `json:"request_id,omitempty"`
	Modality  Modality      `json:"modality,omitempty"`
	Mode      Mode          `json:"mode"`
	Top1      *RankedItem   `json:"top1,omitempty"`
	TopK      []RankedItem  `json:"top_k"`
	All       Ranking       `json:"all"`
	Latency   time.Duration `json:"-"`
}

// LatencyMs 返回以毫秒计的延迟。
func (r *TopResult) LatencyMs() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

type topResultJSON struct {
	*topResultAlias
	LatencyMs float64 `json:"latency_ms"`
}

type topResultAlias TopResult

func (r *TopResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(topResultJSON{
		topResultAlias: (*topResultAlias)(r),
		LatencyMs:      r.LatencyMs(),
	})
}

func (r *TopResult) UnmarshalJSON(data []byte) error {
	aux := topResultJSON{topResultAlias: (*topResultAlias)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Latency = time.Duration(aux.LatencyMs * float64(time.Millisecond))
	return nil
}
