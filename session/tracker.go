// Package session 管理一个采集会话内的结果：最新结果、姿态重复计数、结果历史。
package session

import (
	"sync"

	"github.com/rushteam/inferkit/core"
)

// Ticket 是一次推理的序号，由 Tracker.Begin 分配，单调递增。
type Ticket uint64

// Tracker 保存会话中最新被采纳的结果。
//
// 摄像头循环可能出现重叠的推理调用：较早开始的调用较晚返回时，
// 它的结果会被丢弃，界面上不会出现"回跳"。
type Tracker struct {
	mu        sync.Mutex
	next      Ticket
	committed Ticket
	latest    *core.TopResult
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin 在推理开始前调用，返回本次推理的序号。
func (t *Tracker) Begin() Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	return t.next
}

// Commit 提交结果；已有更新的序号提交过时返回 false，结果被丢弃。
func (t *Tracker) Commit(ticket Ticket, res *core.TopResult) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ticket <= t.committed {
		return false
	}
	t.committed = ticket
	t.latest = res
	return true
}

// Latest 返回最新被采纳的结果，尚无结果时返回 nil。
func (t *Tracker) Latest() *core.TopResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}
