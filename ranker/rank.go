package ranker

import (
	"sort"

	"github.com/rushteam/inferkit/core"
)

// Rank 把标签与分数配对并按分数降序稳定排序（同分保持标签原始顺序）。
//
// 长度不一致时采用补零策略：缺失的分数记为 0，多余的分数被忽略；NaN 记为 0。
// 输出长度总是等于标签数。
func Rank(labels []string, scores []float64) core.Ranking {
	out := make(core.Ranking, len(labels))
	for i, label := range labels {
		var p float64
		if i < len(scores) {
			p = sanitize(scores[i])
		}
		out[i] = core.RankedItem{Label: label, Prob: p}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Prob > out[j].Prob
	})
	return out
}

// TopK 返回排序结果的前 min(k, len(r)) 项（副本），不重新排序。
// k <= 0 时返回空切片。
func TopK(r core.Ranking, k int) []core.RankedItem {
	if k <= 0 {
		return []core.RankedItem{}
	}
	if k > len(r) {
		k = len(r)
	}
	out := make([]core.RankedItem, k)
	copy(out, r[:k])
	return out
}
