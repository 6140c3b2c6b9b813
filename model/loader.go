package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/inferkit/core"
)

// 标签来源
const (
	LabelSourceConfig   = "config"
	LabelSourceMetadata = "metadata"
	LabelSourceDefault  = "default"
)

// BuildFunc 构建模型，labels 是已解析的标签集；返回错误时该模态进入演示模式。
type BuildFunc func(ctx context.Context, labels []string) (Classifier, error)

// Spec 描述一个模态的加载方式。
type Spec struct {
	Modality core.Modality

	// Metadata 元数据位置（文件路径或 URL），可为空
	Metadata string

	// Labels 显式标签集，优先级最高
	Labels []string

	// Build 构建模型，为 nil 表示该模态没有模型
	Build BuildFunc

	// Warmup 加载后用零向量预测一次；图像模态默认开启
	Warmup *bool

	// InputSize 图像边长，0 表示取元数据或默认值
	InputSize int
}

func (s Spec) warmup() bool {
	if s.Warmup != nil {
		return *s.Warmup
	}
	return s.Modality == core.ModalityImage
}

// Loaded 是一个模态的加载结果。Model 为 nil 表示演示模式。
type Loaded struct {
	Modality    core.Modality
	Model       Classifier
	Labels      []string
	InputSize   int
	LabelSource string

	// Err 记录进入演示模式的原因（元数据或模型失败），仅用于展示
	Err error
}

// Demo 表示没有可用模型，结果只能来自启发式或随机兜底。
func (l *Loaded) Demo() bool {
	return l == nil || l.Model == nil
}

// Close 释放模型持有的资源。
func (l *Loaded) Close(ctx context.Context) error {
	if l == nil || l.Model == nil {
		return nil
	}
	if c, ok := l.Model.(Closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// Loader 加载模型与标签。加载失败从不中断调用方：
// 元数据失败使用模态默认标签，模型失败进入演示模式。
type Loader struct {
	meta      MetadataLoader
	imageSize int
	logger    *slog.Logger
}

// LoaderOption Loader 配置选项
type LoaderOption func(*Loader)

// WithMetadataLoader 替换元数据加载器
func WithMetadataLoader(m MetadataLoader) LoaderOption {
	return func(l *Loader) {
		if m != nil {
			l.meta = m
		}
	}
}

// WithDefaultImageSize 设置元数据缺失时的图像边长
func WithDefaultImageSize(size int) LoaderOption {
	return func(l *Loader) {
		if size > 0 {
			l.imageSize = size
		}
	}
}

// WithLoaderLogger 设置日志
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func NewLoader(opts ...LoaderOption) *Loader {
	cfg := &core.DefaultInferenceConfig{}
	l := &Loader{
		meta:      NewMetadataLoader(10 * time.Second),
		imageSize: cfg.DefaultImageSize(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load 加载单个模态。只有 Spec 本身无效时才返回错误。
func (l *Loader) Load(ctx context.Context, spec Spec) (*Loaded, error) {
	if !spec.Modality.Valid() {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("invalid modality %q", spec.Modality))
	}
	logger := l.logger.With("modality", string(spec.Modality))
	out := &Loaded{Modality: spec.Modality, InputSize: spec.InputSize}

	var meta *Metadata
	if spec.Metadata != "" {
		m, err := l.meta.Load(ctx, spec.Metadata)
		if err != nil {
			logger.Warn("metadata unavailable, using default labels", "source", spec.Metadata, "error", err)
			out.Err = err
		} else {
			meta = m
		}
	}

	switch {
	case len(spec.Labels) > 0:
		out.Labels = append([]string(nil), spec.Labels...)
		out.LabelSource = LabelSourceConfig
	case meta != nil:
		out.Labels = append([]string(nil), meta.Labels...)
		out.LabelSource = LabelSourceMetadata
	default:
		out.Labels = core.DefaultLabels(spec.Modality)
		out.LabelSource = LabelSourceDefault
	}
	if out.InputSize <= 0 && meta != nil && meta.ImageSize > 0 {
		out.InputSize = meta.ImageSize
	}
	if out.InputSize <= 0 && spec.Modality == core.ModalityImage {
		out.InputSize = l.imageSize
	}

	if spec.Build == nil {
		logger.Info("no model configured, demo mode", "labels", len(out.Labels))
		return out, nil
	}
	m, err := spec.Build(ctx, out.Labels)
	if err != nil {
		logger.Warn("model unavailable, demo mode", "error", err)
		out.Err = err
		return out, nil
	}
	if m == nil {
		logger.Warn("model unavailable, demo mode", "error", "builder returned nil")
		return out, nil
	}

	if spec.warmup() {
		if err := warmup(ctx, m, out.InputSize); err != nil {
			logger.Warn("model unavailable, demo mode", "model", m.Name(), "error", fmt.Errorf("warm-up: %w", err))
			if c, ok := m.(Closer); ok {
				_ = c.Close(ctx)
			}
			out.Err = err
			return out, nil
		}
	}

	out.Model = m
	logger.Info("model loaded", "model", m.Name(), "labels", len(out.Labels), "label_source", out.LabelSource)
	return out, nil
}

// warmup 用零向量预测一次，触发远程模型的首次加载。
func warmup(ctx context.Context, m Classifier, imageSize int) error {
	n := imageSize * imageSize * 3
	if s, ok := m.(Sized); ok {
		n = s.InputLen()
	}
	if n <= 0 {
		return nil
	}
	_, err := m.Predict(ctx, make([]float64, n))
	return err
}

// LoadAll 并发加载多个模态；任一 Spec 无效时返回错误，其余失败都已降级为演示模式。
func (l *Loader) LoadAll(ctx context.Context, specs []Spec) (map[core.Modality]*Loaded, error) {
	var (
		mu  sync.Mutex
		out = make(map[core.Modality]*Loaded, len(specs))
	)
	eg, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		eg.Go(func() error {
			loaded, err := l.Load(ctx, spec)
			if err != nil {
				return err
			}
			mu.Lock()
			out[spec.Modality] = loaded
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		for _, loaded := range out {
			_ = loaded.Close(context.Background())
		}
		return nil, err
	}
	return out, nil
}
