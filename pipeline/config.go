package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/model"
)

// Config 是分数来源链的配置结构（支持 YAML/JSON）。
//
//	sources:
//	  - type: override
//	    config: {table: fixtures/poses.yaml}
//	  - type: model
//	    config: {normalize: softmax}
//	  - type: heuristic
//	    config: {reducer: pose}
type Config struct {
	Sources []SourceConfig `yaml:"sources" json:"sources"`
}

// SourceConfig 是单个来源的配置。
type SourceConfig struct {
	Type   string                 `yaml:"type" json:"type"`     // override / model / heuristic
	Config map[string]interface{} `yaml:"config" json:"config"` // 来源特定配置
}

// DefaultConfig 默认来源链：覆盖表 → 模型 → 启发式。
func DefaultConfig() *Config {
	return &Config{Sources: []SourceConfig{
		{Type: string(KindOverride)},
		{Type: string(KindModel)},
		{Type: string(KindHeuristic)},
	}}
}

// LoadFromYAML 从 YAML 文件加载来源链配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return &cfg, nil
}

// LoadFromJSON 从 JSON 文件加载来源链配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	return &cfg, nil
}

// BuildEnv 是构建来源时可用的运行时对象。
// Model 为 nil 表示模型加载失败（演示模式），model 来源应当被跳过。
type BuildEnv struct {
	Modality core.Modality
	Model    model.Classifier
	Labels   []string
}

// SourceBuilder 根据配置构建来源；返回 (nil, nil) 表示在当前环境下跳过该来源。
type SourceBuilder func(env *BuildEnv, cfg map[string]interface{}) (Source, error)

// SourceFactory 用于根据配置构建 Source 实例。
type SourceFactory struct {
	mu       sync.RWMutex
	builders map[string]SourceBuilder
}

func NewSourceFactory() *SourceFactory {
	return &SourceFactory{
		builders: make(map[string]SourceBuilder),
	}
}

// Register 注册来源构建器。
func (f *SourceFactory) Register(sourceType string, builder SourceBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[sourceType] = builder
}

// Types 返回已注册的来源类型（排序）。
func (f *SourceFactory) Types() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.builders))
	for t := range f.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build 根据类型和配置构建来源。
func (f *SourceFactory) Build(sourceType string, env *BuildEnv, config map[string]interface{}) (Source, error) {
	f.mu.RLock()
	builder, ok := f.builders[sourceType]
	f.mu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeNotSupported,
			fmt.Sprintf("unknown source type: %s", sourceType))
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	return builder(env, config)
}

// Build 根据配置构建来源链；构建器跳过的来源不进入链。
func (c *Config) Build(factory *SourceFactory, env *BuildEnv) (*Pipeline, error) {
	if env == nil {
		env = &BuildEnv{}
	}
	sources := make([]Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		src, err := factory.Build(sc.Type, env, sc.Config)
		if err != nil {
			return nil, fmt.Errorf("build source %s: %w", sc.Type, err)
		}
		if src != nil {
			sources = append(sources, src)
		}
	}
	return &Pipeline{Sources: sources}, nil
}
