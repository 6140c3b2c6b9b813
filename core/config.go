package core

import "time"

// InferenceConfig 是推理相关的配置接口，用于提供默认值。
type InferenceConfig interface {
	// DefaultTopK 返回默认的 TopK 数量
	DefaultTopK() int

	// DefaultImageSize 返回元数据缺失时的图像边长
	DefaultImageSize() int

	// DefaultTimeout 返回远程模型调用的默认超时时间
	DefaultTimeout() time.Duration
}

// DefaultInferenceConfig 是默认的推理配置实现。
type DefaultInferenceConfig struct{}

func (c *DefaultInferenceConfig) DefaultTopK() int {
	return 3
}

func (c *DefaultInferenceConfig) DefaultImageSize() int {
	return 224
}

func (c *DefaultInferenceConfig) DefaultTimeout() time.Duration {
	return 5 * time.Second
}
