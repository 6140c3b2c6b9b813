package ranker

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rushteam/inferkit/core"
)

// Ranker 绑定一个随机源与默认 k，负责把分数构造成 core.TopResult。
// 随机源由互斥锁保护，多个模态可以共享同一个 Ranker。
type Ranker struct {
	mu   sync.Mutex
	rng  *rand.Rand
	topK int
	now  func() time.Time
}

// Option Ranker 配置选项
type Option func(*Ranker)

// WithRand 使用指定随机源（测试中用于得到确定性结果）
func WithRand(rng *rand.Rand) Option {
	return func(r *Ranker) {
		if rng != nil {
			r.rng = rng
		}
	}
}

// WithSeed 使用固定种子
func WithSeed(seed uint64) Option {
	return func(r *Ranker) {
		r.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithTopK 设置默认 k（<= 0 时忽略）
func WithTopK(k int) Option {
	return func(r *Ranker) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithClock 替换计时函数
func WithClock(now func() time.Time) Option {
	return func(r *Ranker) {
		if now != nil {
			r.now = now
		}
	}
}

// New 创建 Ranker，默认 k 为 3，随机源以当前时间播种。
func New(opts ...Option) *Ranker {
	seed := uint64(time.Now().UnixNano())
	r := &Ranker{
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		topK: 3,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RandomFallback 为每个标签抽取 (0,1] 内的均匀随机数，按和归一后排序。
// 这是显式的演示模式，不是错误；空标签集返回空排序。
func (r *Ranker) RandomFallback(labels []string) core.Ranking {
	if len(labels) == 0 {
		return core.Ranking{}
	}
	draws := make([]float64, len(labels))
	r.mu.Lock()
	for i := range draws {
		// Float64 落在 [0,1)，取补得到 (0,1]，保证总和为正
		draws[i] = 1 - r.rng.Float64()
	}
	r.mu.Unlock()
	return Rank(labels, NormalizeSum(draws))
}

// Softmax 对原始分数做 softmax 后构造结果。
// 分数先对齐到标签数（多余丢弃），缺失标签的概率为 0。
func (r *Ranker) Softmax(labels []string, scores []float64, start time.Time) *core.TopResult {
	if len(scores) > len(labels) {
		scores = scores[:len(labels)]
	}
	return r.FromProbs(labels, Normalize(scores), start)
}

// Proportional 对非负分数按和归一后构造结果。
func (r *Ranker) Proportional(labels []string, scores []float64, start time.Time) *core.TopResult {
	if len(scores) > len(labels) {
		scores = scores[:len(labels)]
	}
	return r.FromProbs(labels, NormalizeSum(scores), start)
}

// probTolerance 是概率向量总和偏离 1 的容差，超出时按和重新归一。
const probTolerance = 1e-6

// FromProbs 使用声称已是概率的向量构造结果。
//
// 向量先对齐到标签数，NaN、负数、-Inf 记为 0；存在 +Inf 时由这些项平分概率。
// 总质量为 0 时视为退化输入，改用均分分布；总和偏离 1 超过容差时按和归一。
func (r *Ranker) FromProbs(labels []string, probs []float64, start time.Time) *core.TopResult {
	fitted := fit(probs, len(labels))
	var mass float64
	posInf := 0
	for i, p := range fitted {
		switch {
		case math.IsInf(p, 1):
			posInf++
		case p < 0:
			fitted[i] = 0
		default:
			mass += p
		}
	}
	switch {
	case posInf > 0:
		share := 1 / float64(posInf)
		for i, p := range fitted {
			if math.IsInf(p, 1) {
				fitted[i] = share
			} else {
				fitted[i] = 0
			}
		}
	case mass <= 0:
		fitted = Uniform(len(labels))
	case math.Abs(mass-1) > probTolerance:
		fitted = NormalizeSum(fitted)
	}
	return r.build(Rank(labels, fitted), core.ModeModel, start)
}

// Fallback 构造随机兜底结果，Mode 为 fallback。
func (r *Ranker) Fallback(labels []string, start time.Time) *core.TopResult {
	return r.build(r.RandomFallback(labels), core.ModeFallback, start)
}

func (r *Ranker) build(all core.Ranking, mode core.Mode, start time.Time) *core.TopResult {
	res := &core.TopResult{
		Mode: mode,
		TopK: TopK(all, r.topK),
		All:  all,
	}
	if len(all) > 0 {
		top1 := all[0]
		res.Top1 = &top1
	}
	if !start.IsZero() {
		res.Latency = r.now().Sub(start)
	}
	return res
}
