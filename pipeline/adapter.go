package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/ranker"
)

// Adapter 是单个模态的统一"预测并排序"入口：
// 分数来源链（覆盖表 → 模型 → 启发式）给出分数，Ranker 负责归一与排序，
// 没有任何来源适用时退化为随机兜底（演示模式）。
//
// 同一 Adapter 上的 Infer 调用被互斥锁串行化，模型对象不要求可重入。
type Adapter struct {
	mu       sync.Mutex
	modality core.Modality
	labels   []string
	pipeline *Pipeline
	provider FeatureProvider
	ranker   *ranker.Ranker
	logger   *slog.Logger
}

// AdapterOption Adapter 配置选项
type AdapterOption func(*Adapter)

// WithRanker 使用指定 Ranker（默认 ranker.New()）
func WithRanker(r *ranker.Ranker) AdapterOption {
	return func(a *Adapter) {
		if r != nil {
			a.ranker = r
		}
	}
}

// WithFeatureProvider 在请求没有原始信号时从 provider 补充特征
func WithFeatureProvider(p FeatureProvider) AdapterOption {
	return func(a *Adapter) {
		a.provider = p
	}
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAdapter 创建模态适配器。labels 会被复制，之后不再变化。
func NewAdapter(m core.Modality, labels []string, p *Pipeline, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		modality: m,
		labels:   append([]string(nil), labels...),
		pipeline: p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.ranker == nil {
		a.ranker = ranker.New()
	}
	a.logger = a.logger.With("modality", string(m))
	return a
}

func (a *Adapter) Modality() core.Modality { return a.modality }

// Labels 返回标签集副本。
func (a *Adapter) Labels() []string {
	return append([]string(nil), a.labels...)
}

// Sources 返回来源链上的名称。
func (a *Adapter) Sources() []string {
	return a.pipeline.Names()
}

// Infer 执行一次推理。
//
// 来源返回错误（例如远程模型不可达）时返回 UNAVAILABLE 的 DomainError；
// 没有来源适用时返回 Mode=fallback 的随机结果，这不是错误。
func (a *Adapter) Infer(ctx context.Context, ictx *core.InferenceContext, req *Request) (*core.TopResult, error) {
	if ictx == nil {
		ictx = core.NewInferenceContext("", a.modality)
	}
	if req == nil {
		req = &Request{Filename: ictx.Filename}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	start := time.Now()

	if len(req.Features) == 0 && a.provider != nil {
		feats, err := a.provider.Features(ctx, ictx)
		if err != nil {
			a.logger.Warn("feature provider failed",
				"provider", a.provider.Name(), "request_id", ictx.RequestID, "error", err)
		} else if len(feats) > 0 {
			// 复制请求，调用方的 Request 可以重复使用
			filled := *req
			filled.Features = feats
			req = &filled
		}
	}

	scores, src, err := a.pipeline.Run(ctx, ictx, req, a.labels)
	if err != nil {
		name := ""
		if src != nil {
			name = src.Name()
		}
		a.logger.Error("score source failed",
			"source", name, "request_id", ictx.RequestID, "error", err)
		return nil, core.WrapDomainError(core.ModulePipeline, core.ErrorCodeUnavailable,
			"inference failed on source "+name, err)
	}

	var res *core.TopResult
	if scores == nil {
		res = a.ranker.Fallback(a.labels, start)
		a.logger.Debug("no score source applied, demo fallback", "request_id", ictx.RequestID)
	} else {
		switch scores.Normalize {
		case NormalizeSum:
			res = a.ranker.Proportional(a.labels, scores.Values, start)
		case NormalizeNone:
			res = a.ranker.FromProbs(a.labels, scores.Values, start)
		default:
			res = a.ranker.Softmax(a.labels, scores.Values, start)
		}
		res.Mode = src.Kind().Mode()
	}
	res.RequestID = ictx.RequestID
	res.Modality = a.modality
	return res, nil
}
