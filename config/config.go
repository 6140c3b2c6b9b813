// Package config 负责 inferkit 的 YAML 配置与模型构建器注册表。
//
// 使用配置驱动时，需在入口处 import _ "github.com/rushteam/inferkit/config/builders"
// 以注册内置模型类型（linear、rpc、tf_serving、torch_serve、kserve）。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/feature"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/pkg/dsl"
	"github.com/rushteam/inferkit/render"
	"github.com/rushteam/inferkit/store"
)

// DefaultPath 默认配置文件名。
const DefaultPath = "inferkit.yaml"

// Config 是 inferkit 的完整配置。
type Config struct {
	Logging    LoggingConfig              `yaml:"logging"`
	Store      store.Config               `yaml:"store"`
	Feast      FeastConfig                `yaml:"feast"`
	Modalities map[string]*ModalityConfig `yaml:"modalities"`
}

// LoggingConfig 日志配置。
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug / info / warn / error
	Format string `yaml:"format"` // text / json
}

// FeastConfig 在线特征库配置。关闭时启发式只使用请求自带的原始信号。
type FeastConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // "localhost:6565"
	Project  string `yaml:"project"`
	Timeout  int    `yaml:"timeout"` // 秒
	Token    string `yaml:"token"`   // 非空时附带静态 token
	TLS      bool   `yaml:"tls"`     // gRPC 连接启用 TLS（需要 token）；HTTP 由 https:// 决定
}

// ModelConfig 描述模型后端。
type ModelConfig struct {
	Type      string                 `yaml:"type"` // linear / rpc / tf_serving / torch_serve / kserve
	Path      string                 `yaml:"path"`
	Endpoint  string                 `yaml:"endpoint"`
	ModelName string                 `yaml:"model_name"`
	Version   string                 `yaml:"version"`
	Protocol  string                 `yaml:"protocol"` // kserve: v1 / v2
	Timeout   int                    `yaml:"timeout"`  // 秒
	Params    map[string]interface{} `yaml:"params"`
}

// FeatureConfig 从 Feast 拉取启发式原始信号。
type FeatureConfig struct {
	EntityKey   string    `yaml:"entity_key"`
	EntityParam string    `yaml:"entity_param"`
	Names       []string  `yaml:"names"`
	Defaults    []float64 `yaml:"defaults"`

	// CacheTTL 特征缓存时间（毫秒），0 表示不缓存
	CacheTTL  int `yaml:"cache_ttl"`
	CacheSize int `yaml:"cache_size"`
}

// ModalityConfig 单个模态的配置。
type ModalityConfig struct {
	TopK      int          `yaml:"top_k"`
	Metadata  string       `yaml:"metadata"`
	Labels    []string     `yaml:"labels"` // 非空时优先于元数据
	Model     *ModelConfig `yaml:"model"`
	Warmup    *bool        `yaml:"warmup"`
	InputSize int          `yaml:"input_size"`

	// Normalize 模型输出的归一方式：softmax / sum / none
	Normalize string `yaml:"normalize"`

	// Heuristic 启发式 reducer 名称（audio / pose / mean），"none" 关闭
	Heuristic string `yaml:"heuristic"`

	// Overrides 演示覆盖表（YAML 文件）
	Overrides string         `yaml:"overrides"`
	Features  *FeatureConfig `yaml:"features"`

	// Sources 自定义来源链，为空时使用 override → model → heuristic
	Sources []pipeline.SourceConfig `yaml:"sources"`

	Tips         map[string]string  `yaml:"tips"`
	Colors       map[string]string  `yaml:"colors"`
	DefaultTip   string             `yaml:"default_tip"`
	Coach        []render.CoachRule `yaml:"coach"`
	RepThreshold float64            `yaml:"rep_threshold"`
}

// DefaultConfig 返回默认配置：三个模态都没有模型（演示模式），结果历史存在内存中。
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Store:   store.Config{Type: "memory"},
		Feast:   FeastConfig{Endpoint: "localhost:6565", Timeout: 5},
		Modalities: map[string]*ModalityConfig{
			string(core.ModalityImage): {TopK: 3, Heuristic: "none"},
			string(core.ModalityAudio): {TopK: 3, Heuristic: "audio"},
			string(core.ModalityPose):  {TopK: 3, Heuristic: "pose", RepThreshold: 0.7},
		},
	}
}

// Load 从 YAML 文件加载配置；文件不存在时返回默认配置。
// 文件中的模态与默认模态合并（按名称整体替换）。
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	defaults := cfg.Modalities
	cfg.Modalities = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Modalities == nil {
		cfg.Modalities = defaults
	} else {
		for name, mc := range defaults {
			if _, ok := cfg.Modalities[name]; !ok {
				cfg.Modalities[name] = mc
			}
		}
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// resolvePaths 把相对路径解析为相对配置文件所在目录。
func (c *Config) resolvePaths(dir string) {
	rel := func(p string) string {
		if p == "" || filepath.IsAbs(p) || hasScheme(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for _, mc := range c.Modalities {
		if mc == nil {
			continue
		}
		mc.Metadata = rel(mc.Metadata)
		mc.Overrides = rel(mc.Overrides)
		if mc.Model != nil {
			mc.Model.Path = rel(mc.Model.Path)
		}
	}
	c.Store.Path = rel(c.Store.Path)
}

func hasScheme(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Save 把配置写入 YAML 文件。
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Modality 返回模态配置，未配置时返回零值配置（不为 nil）。
func (c *Config) Modality(m core.Modality) *ModalityConfig {
	if mc, ok := c.Modalities[string(m)]; ok && mc != nil {
		return mc
	}
	return &ModalityConfig{}
}

// ModalityNames 返回已配置的模态（按 core.Modalities 的顺序）。
func (c *Config) ModalityNames() []core.Modality {
	out := make([]core.Modality, 0, len(c.Modalities))
	for _, m := range core.Modalities() {
		if _, ok := c.Modalities[string(m)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Validate 校验模态名称、模型类型、归一方式与教练规则。
func (c *Config) Validate() error {
	names := make([]string, 0, len(c.Modalities))
	for name := range c.Modalities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := core.ParseModality(name); err != nil {
			return err
		}
		mc := c.Modalities[name]
		if mc == nil {
			continue
		}
		if mc.TopK < 0 {
			return invalid("modalities.%s.top_k must be >= 0", name)
		}
		if _, err := pipeline.ParseNormalization(mc.Normalize); err != nil {
			return invalid("modalities.%s.normalize: unknown %q", name, mc.Normalize)
		}
		if mc.Model != nil && mc.Model.Type != "" {
			if !Supported(mc.Model.Type) {
				return invalid("modalities.%s.model.type: unsupported %q (supported: %v)",
					name, mc.Model.Type, SupportedTypes())
			}
		}
		if h := mc.Heuristic; h != "" && h != "none" && !slices.Contains(feature.ReducerNames(), h) {
			return invalid("modalities.%s.heuristic: unknown %q (supported: %v)", name, h, feature.ReducerNames())
		}
		for i, rule := range mc.Coach {
			if rule.When == "" {
				continue
			}
			if err := dsl.Compile(rule.When); err != nil {
				return invalid("modalities.%s.coach[%d]: %v", name, i, err)
			}
		}
		if f := mc.Features; f != nil && (f.CacheTTL < 0 || f.CacheSize < 0) {
			return invalid("modalities.%s.features: cache_ttl and cache_size must be >= 0", name)
		}
		if mc.RepThreshold < 0 || mc.RepThreshold >= 1 {
			return invalid("modalities.%s.rep_threshold must be in [0,1)", name)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return invalid("logging.format: unknown %q (supported: text, json)", c.Logging.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, fmt.Sprintf(format, args...))
}
