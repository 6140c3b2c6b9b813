// Package ranker 把分数向量变成稳定排序、已归一化的 TopResult。
//
// 这是三个模态共用的纯函数核心：
//   - Normalize：数值稳定的 softmax
//   - NormalizeSum：按和归一（随机兜底与覆盖表使用）
//   - Rank / TopK：稳定降序排序与前缀截断
//   - RandomFallback：没有真实分数来源时的均匀随机分布（演示模式）
//
// 包内所有操作都不返回错误，也不会 panic：长度不一致、空向量、NaN
// 都会退化为补零或均分，而不是失败。
package ranker

import "math"

// Normalize 计算数值稳定的 softmax：先减去最大值再取指数，然后除以指数和。
//
// 边界约定：
//   - 空输入返回空切片
//   - NaN 视为 0
//   - 存在 +Inf 时，所有 +Inf 项平分概率，其余为 0
//   - 全部为 -Inf 时指数和为 0，除数按 1 处理，结果为全 0（原始指数值）
func Normalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	maxScore := math.Inf(-1)
	posInf := 0
	for _, s := range scores {
		s = sanitize(s)
		if math.IsInf(s, 1) {
			posInf++
		}
		if s > maxScore {
			maxScore = s
		}
	}

	if posInf > 0 {
		share := 1 / float64(posInf)
		for i, s := range scores {
			if math.IsInf(s, 1) {
				out[i] = share
			}
		}
		return out
	}
	if math.IsInf(maxScore, -1) {
		return out
	}

	var sum float64
	for i, s := range scores {
		e := math.Exp(sanitize(s) - maxScore)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		sum = 1
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// NormalizeSum 把非负值除以总和得到分布。
// 负数、NaN、Inf 视为 0；总和不为正时返回均分分布。
func NormalizeSum(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			v = 0
		}
		out[i] = v
		sum += v
	}
	if sum <= 0 {
		return Uniform(len(values))
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Uniform 返回 n 个相等概率。
func Uniform(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	out := make([]float64, n)
	p := 1 / float64(n)
	for i := range out {
		out[i] = p
	}
	return out
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// fit 把分数向量对齐到 n：多余的丢弃，缺失的补 0，NaN 变 0。
func fit(scores []float64, n int) []float64 {
	out := make([]float64, n)
	for i := 0; i < n && i < len(scores); i++ {
		out[i] = sanitize(scores[i])
	}
	return out
}
