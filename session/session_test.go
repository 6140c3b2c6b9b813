package session

import (
	"context"
	"sync"
	"testing"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/store"
)

func result(id, label string, prob float64) *core.TopResult {
	return &core.TopResult{
		RequestID: id,
		Mode:      core.ModeModel,
		Top1:      &core.RankedItem{Label: label, Prob: prob},
		All:       core.Ranking{{Label: label, Prob: prob}},
	}
}

func TestTrackerLastWriteWins(t *testing.T) {
	tr := NewTracker()
	if tr.Latest() != nil {
		t.Fatal("new tracker should be empty")
	}

	first := tr.Begin()
	second := tr.Begin()
	if second <= first {
		t.Fatalf("tickets not monotonic: %d %d", first, second)
	}

	// 较晚开始的调用先返回
	if !tr.Commit(second, result("2", "b", 0.9)) {
		t.Error("newer commit should be accepted")
	}
	if tr.Commit(first, result("1", "a", 0.9)) {
		t.Error("stale commit should be discarded")
	}
	if got := tr.Latest(); got.RequestID != "2" {
		t.Errorf("Latest = %s, want 2", got.RequestID)
	}

	third := tr.Begin()
	if !tr.Commit(third, result("3", "c", 0.9)) || tr.Latest().RequestID != "3" {
		t.Error("third commit should win")
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	tickets := make([]Ticket, 50)
	for i := range tickets {
		tickets[i] = tr.Begin()
	}
	for i := range tickets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Commit(tickets[i], result("x", "a", 0.5))
		}(i)
	}
	wg.Wait()
	// 最新序号的提交一定被采纳
	if tr.Commit(tickets[len(tickets)-1], result("again", "a", 0.5)) {
		t.Error("recommitting the newest ticket should be rejected")
	}
}

func TestRepCounter(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		seq       []*core.TopResult
		want      int
	}{
		{
			name: "alternating confident poses",
			seq: []*core.TopResult{
				result("", "sentadilla", 0.8),
				result("", "plancha", 0.9),
				result("", "sentadilla", 0.75),
			},
			want: 2,
		},
		{
			name: "low confidence ignored",
			seq: []*core.TopResult{
				result("", "sentadilla", 0.8),
				result("", "plancha", 0.6),
				result("", "sentadilla", 0.9),
			},
			want: 0,
		},
		{
			name: "threshold is exclusive",
			seq: []*core.TopResult{
				result("", "sentadilla", 0.8),
				result("", "plancha", 0.7),
			},
			want: 0,
		},
		{
			name:      "custom threshold",
			threshold: 0.5,
			seq: []*core.TopResult{
				result("", "a", 0.6),
				result("", "b", 0.55),
				nil,
				{},
			},
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewRepCounter(tt.threshold)
			got := 0
			for _, r := range tt.seq {
				got = c.Observe(r)
			}
			if got != tt.want || c.Count() != tt.want {
				t.Errorf("count = %d, want %d", got, tt.want)
			}
		})
	}

	c := NewRepCounter(0)
	if c.Threshold() != DefaultRepThreshold {
		t.Errorf("Threshold = %v", c.Threshold())
	}
	c.Observe(result("", "a", 0.9))
	c.Observe(result("", "b", 0.9))
	c.Reset()
	if c.Observe(result("", "a", 0.9)) != 0 {
		t.Error("Reset should clear the previous pose")
	}
}

func TestHistory(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	h := NewHistory(s, WithLimit(2))
	ctx := context.Background()

	if _, err := h.Last(ctx, "cam"); !core.IsStoreNotFound(err) {
		t.Errorf("empty history err = %v", err)
	}
	if err := h.Append(ctx, "cam", &core.TopResult{}); !core.IsInvalidInput(err) {
		t.Errorf("missing request id err = %v", err)
	}

	for _, r := range []*core.TopResult{
		result("r1", "Vidrio", 0.9),
		result("r2", "Metal", 0.6),
		result("r3", "Papel", 0.7),
	} {
		if err := h.Append(ctx, "cam", r); err != nil {
			t.Fatal(err)
		}
	}

	list, err := h.List(ctx, "cam")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].RequestID != "r2" || list[1].RequestID != "r3" {
		t.Fatalf("List = %+v", list)
	}
	if list[1].Top1 == nil || list[1].Top1.Label != "Papel" {
		t.Errorf("decoded result = %+v", list[1])
	}
	if _, err := s.Get(ctx, resultKey("cam", "r1")); !core.IsStoreNotFound(err) {
		t.Error("oldest result should be evicted")
	}

	last, err := h.Last(ctx, "cam")
	if err != nil || last.RequestID != "r3" {
		t.Errorf("Last = %+v, %v", last, err)
	}

	other, err := h.List(ctx, "mic")
	if err != nil || len(other) != 0 {
		t.Errorf("other session = %v, %v", other, err)
	}
}

func TestHistoryDuplicateRequest(t *testing.T) {
	s := store.NewMemoryStore()
	defer s.Close()
	h := NewHistory(s, WithLimit(2))
	ctx := context.Background()

	for _, r := range []*core.TopResult{
		result("r1", "Vidrio", 0.9),
		result("r2", "Metal", 0.6),
		result("r2", "Papel", 0.8),
	} {
		if err := h.Append(ctx, "cam", r); err != nil {
			t.Fatal(err)
		}
	}
	list, err := h.List(ctx, "cam")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].RequestID != "r1" || list[1].RequestID != "r2" {
		t.Fatalf("List = %+v, want [r1 r2]", list)
	}
	if list[1].Top1.Label != "Papel" {
		t.Errorf("repeated request should overwrite the result, got %s", list[1].Top1.Label)
	}

	// r1 被淘汰后 r2 仍然可读
	if err := h.Append(ctx, "cam", result("r3", "Metal", 0.5)); err != nil {
		t.Fatal(err)
	}
	list, err = h.List(ctx, "cam")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].RequestID != "r2" || list[1].RequestID != "r3" {
		t.Fatalf("List after eviction = %+v, want [r2 r3]", list)
	}
	if _, err := s.Get(ctx, resultKey("cam", "r2")); err != nil {
		t.Errorf("r2 result should survive eviction: %v", err)
	}
}
