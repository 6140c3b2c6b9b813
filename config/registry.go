package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/model"
)

// ModelBuilder 根据模型配置与已解析的标签集构建 Classifier。
// 各后端在 init 中调用 Register(typeName, builder) 即可被配置驱动。
type ModelBuilder func(ctx context.Context, mc *ModelConfig, labels []string) (model.Classifier, error)

var (
	defaultBuilders   = make(map[string]ModelBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种模型的构建逻辑。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("linear", BuildLinear) }
func Register(typeName string, builder ModelBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[typeName] = builder
}

// SupportedTypes 返回当前已注册的模型类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Supported 报告模型类型是否已注册。
func Supported(typeName string) bool {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	_, ok := defaultBuilders[typeName]
	return ok
}

// BuildModel 按类型构建模型；未注册的类型返回 NOT_SUPPORTED。
func BuildModel(ctx context.Context, mc *ModelConfig, labels []string) (model.Classifier, error) {
	if mc == nil || mc.Type == "" {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "model type is required")
	}
	defaultBuildersMu.RLock()
	builder, ok := defaultBuilders[mc.Type]
	defaultBuildersMu.RUnlock()
	if !ok {
		return nil, core.NewDomainError(core.ModuleConfig, core.ErrorCodeNotSupported,
			fmt.Sprintf("unsupported model type %q (supported: %v)", mc.Type, SupportedTypes()))
	}
	return builder(ctx, mc, labels)
}
