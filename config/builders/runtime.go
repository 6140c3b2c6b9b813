package builders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rushteam/inferkit/config"
	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feast"
	"github.com/rushteam/inferkit/feature"
	"github.com/rushteam/inferkit/model"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/ranker"
	"github.com/rushteam/inferkit/render"
	"github.com/rushteam/inferkit/session"
	"github.com/rushteam/inferkit/store"
)

// Runtime 是由配置组装出的全部运行时对象。调用方负责 Close。
type Runtime struct {
	Config    *config.Config
	Loaded    map[core.Modality]*model.Loaded
	Adapters  map[core.Modality]*pipeline.Adapter
	Renderers map[core.Modality]*render.Renderer
	Reps      map[core.Modality]*session.RepCounter
	Store     core.Store
	History   *session.History
	Feast     feast.Client

	logger *slog.Logger
}

type runtimeOptions struct {
	logger *slog.Logger
	store  core.Store
	ranker func(topK int) *ranker.Ranker
	loader *model.Loader
}

// Option Runtime 组装选项
type Option func(*runtimeOptions)

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(o *runtimeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithStore 使用已创建的存储，忽略配置中的 store 段
func WithStore(s core.Store) Option {
	return func(o *runtimeOptions) {
		o.store = s
	}
}

// WithRankerFactory 自定义每个模态的 Ranker（测试中用于固定随机种子）
func WithRankerFactory(fn func(topK int) *ranker.Ranker) Option {
	return func(o *runtimeOptions) {
		if fn != nil {
			o.ranker = fn
		}
	}
}

// WithLoader 使用指定的模型加载器
func WithLoader(l *model.Loader) Option {
	return func(o *runtimeOptions) {
		if l != nil {
			o.loader = l
		}
	}
}

// Build 按配置组装运行时。
//
// 只有配置无效时返回错误；存储、特征库、模型不可用都降级处理并记录 WARN。
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &runtimeOptions{
		logger: slog.Default(),
		ranker: func(k int) *ranker.Ranker { return ranker.New(ranker.WithTopK(k)) },
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.loader == nil {
		o.loader = model.NewLoader(model.WithLoaderLogger(o.logger))
	}

	rt := &Runtime{
		Config:    cfg,
		Adapters:  make(map[core.Modality]*pipeline.Adapter),
		Renderers: make(map[core.Modality]*render.Renderer),
		Reps:      make(map[core.Modality]*session.RepCounter),
		logger:    o.logger,
	}

	rt.Store = o.store
	if rt.Store == nil {
		s, err := store.NewStore(cfg.Store)
		if err != nil {
			o.logger.Warn("store unavailable, falling back to memory", "type", cfg.Store.Type, "error", err)
			s = store.NewMemoryStore()
		}
		rt.Store = s
	}
	rt.History = session.NewHistory(rt.Store, session.WithTTL(cfg.Store.TTL))

	if cfg.Feast.Enabled {
		rt.Feast = buildFeast(cfg.Feast, o.logger)
	}

	specs := make([]model.Spec, 0, len(cfg.Modalities))
	for _, m := range cfg.ModalityNames() {
		specs = append(specs, specFor(m, cfg.Modality(m)))
	}
	loaded, err := o.loader.LoadAll(ctx, specs)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.Loaded = loaded

	factory := config.DefaultSourceFactory()
	for _, m := range cfg.ModalityNames() {
		mc := cfg.Modality(m)
		l := loaded[m]

		p, err := config.SourcesFor(mc).Build(factory, &pipeline.BuildEnv{
			Modality: m,
			Model:    l.Model,
			Labels:   l.Labels,
		})
		if err != nil {
			_ = rt.Close(ctx)
			return nil, fmt.Errorf("modality %s: %w", m, err)
		}

		adapterOpts := []pipeline.AdapterOption{
			pipeline.WithRanker(o.ranker(mc.TopK)),
			pipeline.WithLogger(o.logger),
		}
		if rt.Feast != nil && mc.Features != nil && len(mc.Features.Names) > 0 {
			adapterOpts = append(adapterOpts, pipeline.WithFeatureProvider(feastProvider(m, rt.Feast, cfg.Feast.Project, mc.Features)))
		}
		rt.Adapters[m] = pipeline.NewAdapter(m, l.Labels, p, adapterOpts...)

		theme := render.DefaultTheme(m).Merge(render.Theme{
			Colors:     mc.Colors,
			Tips:       mc.Tips,
			DefaultTip: mc.DefaultTip,
			Coach:      mc.Coach,
		})
		rt.Renderers[m] = render.New(render.WithTheme(theme), render.WithLogger(o.logger))

		if m == core.ModalityPose {
			rt.Reps[m] = session.NewRepCounter(mc.RepThreshold)
		}
		o.logger.Debug("modality ready", "modality", string(m),
			"sources", p.Names(), "demo", l.Demo(), "labels", len(l.Labels))
	}
	return rt, nil
}

func specFor(m core.Modality, mc *config.ModalityConfig) model.Spec {
	spec := model.Spec{
		Modality:  m,
		Metadata:  mc.Metadata,
		Labels:    mc.Labels,
		Warmup:    mc.Warmup,
		InputSize: mc.InputSize,
	}
	if mc.Model != nil && mc.Model.Type != "" {
		mcModel := mc.Model
		spec.Build = func(ctx context.Context, labels []string) (model.Classifier, error) {
			return config.BuildModel(ctx, mcModel, labels)
		}
	}
	return spec
}

func buildFeast(fc config.FeastConfig, logger *slog.Logger) feast.Client {
	client, err := feast.NewClient(fc.Endpoint, fc.Project, feastOptions(fc)...)
	if err != nil {
		logger.Warn("feast unavailable, heuristics use request features only", "endpoint", fc.Endpoint, "error", err)
		return nil
	}
	return client
}

// feastOptions 把配置转换为客户端选项。TLS 由 tls 字段显式开启，与是否带 token 无关。
func feastOptions(fc config.FeastConfig) []feast.ClientOption {
	var opts []feast.ClientOption
	if fc.Timeout > 0 {
		opts = append(opts, feast.WithTimeout(time.Duration(fc.Timeout)*time.Second))
	}
	if fc.Token != "" {
		opts = append(opts, feast.WithAuth(&feast.AuthConfig{Type: "static", Token: fc.Token, TLS: fc.TLS}))
	}
	return opts
}

func feastProvider(m core.Modality, client feast.Client, project string, fc *config.FeatureConfig) pipeline.FeatureProvider {
	defaults := fc.Defaults
	if len(defaults) == 0 && m == core.ModalityPose {
		defaults = feature.DefaultPoseFeatures().Vector()
	}
	p := &feature.FeastProvider{
		Client:      client,
		Project:     project,
		EntityKey:   fc.EntityKey,
		EntityParam: fc.EntityParam,
		Features:    fc.Names,
		Defaults:    defaults,
	}
	if fc.CacheTTL <= 0 {
		return p
	}
	cached := feature.NewCachedProvider(p, fc.CacheSize, time.Duration(fc.CacheTTL)*time.Millisecond)
	cached.EntityParam = fc.EntityParam
	return cached
}

// Adapter 返回模态的适配器，未配置的模态返回 NOT_FOUND。
func (rt *Runtime) Adapter(m core.Modality) (*pipeline.Adapter, error) {
	a, ok := rt.Adapters[m]
	if !ok {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotFound,
			fmt.Sprintf("modality %s is not configured", m))
	}
	return a, nil
}

// Renderer 返回模态的渲染器，未配置时使用内置主题。
func (rt *Runtime) Renderer(m core.Modality) *render.Renderer {
	if r, ok := rt.Renderers[m]; ok {
		return r
	}
	return render.New(render.WithTheme(render.DefaultTheme(m)))
}

// Close 释放模型、特征库与存储。
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for m, l := range rt.Loaded {
		if err := l.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close %s model: %w", m, err))
		}
	}
	if rt.Feast != nil {
		if err := rt.Feast.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close feast: %w", err))
		}
	}
	if rt.Store != nil {
		if err := rt.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
