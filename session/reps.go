package session

import (
	"sync"

	"github.com/rushteam/inferkit/core"
)

// DefaultRepThreshold top1 概率超过该值才算"确定的姿势"。
const DefaultRepThreshold = 0.7

// RepCounter 统计确定姿势之间的切换次数，作为简易的重复计数。
//
// 只有 top1 概率严格大于阈值的结果参与计数：它与上一个确定姿势不同则计数加一。
// 第一个确定姿势只作为起点，不计数。
type RepCounter struct {
	mu        sync.Mutex
	threshold float64
	last      string
	count     int
}

// NewRepCounter threshold <= 0 时使用 DefaultRepThreshold。
func NewRepCounter(threshold float64) *RepCounter {
	if threshold <= 0 {
		threshold = DefaultRepThreshold
	}
	return &RepCounter{threshold: threshold}
}

// Observe 记录一次结果，返回当前计数。
func (c *RepCounter) Observe(res *core.TopResult) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if res == nil || res.Top1 == nil || res.Top1.Prob <= c.threshold {
		return c.count
	}
	if c.last != "" && c.last != res.Top1.Label {
		c.count++
	}
	c.last = res.Top1.Label
	return c.count
}

func (c *RepCounter) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *RepCounter) Threshold() float64 { return c.threshold }

// Reset 清零计数与起点。
func (c *RepCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
	c.last = ""
}
