package session

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/rushteam/inferkit/core"
)

// DefaultHistoryLimit 每个会话保留的结果数。
const DefaultHistoryLimit = 100

// History 把会话结果保存到 core.Store。
//
// 键布局：
//   - session:<id>            按时间顺序的 request id 列表（JSON 数组）
//   - result:<id>:<request>   TopResult 的 JSON
type History struct {
	store core.Store
	limit int
	ttl   int
	mu    sync.Mutex
}

// HistoryOption History 配置选项
type HistoryOption func(*History)

// WithLimit 设置每个会话保留的结果数
func WithLimit(n int) HistoryOption {
	return func(h *History) {
		if n > 0 {
			h.limit = n
		}
	}
}

// WithTTL 设置过期时间（秒）
func WithTTL(seconds int) HistoryOption {
	return func(h *History) {
		h.ttl = seconds
	}
}

func NewHistory(s core.Store, opts ...HistoryOption) *History {
	h := &History{store: s, limit: DefaultHistoryLimit}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func sessionKey(id string) string         { return "session:" + id }
func resultKey(id, request string) string { return "result:" + id + ":" + request }

func (h *History) ids(ctx context.Context, sessionID string) ([]string, error) {
	raw, err := h.store.Get(ctx, sessionKey(sessionID))
	if core.IsStoreNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode session index: %w", err)
	}
	return ids, nil
}

// Append 保存一条结果。结果必须带 RequestID。
// 同一 RequestID 再次保存时只覆盖结果，索引中的位置不变；
// 超出保留数量时删除最旧的结果。
func (h *History) Append(ctx context.Context, sessionID string, res *core.TopResult) error {
	if sessionID == "" || res == nil || res.RequestID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			"history: session id and request id are required")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	// 索引是读-改-写，同一进程内串行化
	h.mu.Lock()
	defer h.mu.Unlock()

	ids, err := h.ids(ctx, sessionID)
	if err != nil {
		return err
	}
	var evicted []string
	if !slices.Contains(ids, res.RequestID) {
		ids = append(ids, res.RequestID)
		if over := len(ids) - h.limit; over > 0 {
			evicted = append(evicted, ids[:over]...)
			ids = ids[over:]
		}
	}
	index, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode session index: %w", err)
	}

	// 结果与索引一起提交，索引不会指向未写入的结果
	kvs := map[string][]byte{
		resultKey(sessionID, res.RequestID): data,
		sessionKey(sessionID):               index,
	}
	if h.ttl > 0 {
		err = h.store.BatchSet(ctx, kvs, h.ttl)
	} else {
		err = h.store.BatchSet(ctx, kvs)
	}
	if err != nil {
		return err
	}
	for _, old := range evicted {
		if err := h.store.Delete(ctx, resultKey(sessionID, old)); err != nil {
			return err
		}
	}
	return nil
}

// List 返回会话的结果，最旧的在前；已过期的结果被跳过。
func (h *History) List(ctx context.Context, sessionID string) ([]*core.TopResult, error) {
	ids, err := h.ids(ctx, sessionID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = resultKey(sessionID, id)
	}
	raw, err := h.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*core.TopResult, 0, len(ids))
	for _, k := range keys {
		data, ok := raw[k]
		if !ok {
			continue
		}
		var res core.TopResult
		if err := json.Unmarshal(data, &res); err != nil {
			return nil, fmt.Errorf("decode result %s: %w", k, err)
		}
		out = append(out, &res)
	}
	return out, nil
}

// Last 返回会话最新的结果，没有结果时返回 NOT_FOUND。
func (h *History) Last(ctx context.Context, sessionID string) (*core.TopResult, error) {
	list, err := h.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, core.ErrStoreNotFound
	}
	return list[len(list)-1], nil
}
