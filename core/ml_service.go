package core

import "context"

// MLService 是机器学习服务的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由基础设施层（service）实现
//   - 遵循依赖倒置原则：领域层定义接口，基础设施层实现接口
//   - 避免循环依赖：领域层不依赖基础设施层
//
// 使用场景：
//   - 图像分类：Teachable Machine 导出的模型部署到 TF Serving
//   - 音频分类：GTZAN 风格的流派模型
//   - 姿态分类：51 维姿态特征的分类模型
//
// 实现：
//   - service.TFServingClient 实现此接口
//   - service.TorchServeClient 实现此接口
//   - service.KServeClient 实现此接口
type MLService interface {
	// Predict 批量预测，每个实例返回一条分数向量
	Predict(ctx context.Context, req *MLPredictRequest) (*MLPredictResponse, error)

	// Health 健康检查
	Health(ctx context.Context) error

	// Close 关闭连接
	Close(ctx context.Context) error
}

// MLPredictRequest 预测请求
type MLPredictRequest struct {
	// Instances 输入张量列表（每个实例是一个展平后的向量）
	// 格式：[[x1, x2, x3, ...], [x1, x2, x3, ...], ...]
	Instances [][]float64

	// Labels 标签顺序（可选）
	// 当服务以 {"label": prob} 的字典形式返回时，按此顺序还原为向量
	Labels []string

	// ModelName 模型名称（可选，如果服务支持多模型）
	ModelName string

	// ModelVersion 模型版本（可选）
	ModelVersion string

	// SignatureName 签名名称（可选，TF Serving 使用）
	SignatureName string

	// Params 额外参数（可选）
	Params map[string]interface{}
}

// MLPredictResponse 预测响应
type MLPredictResponse struct {
	// Scores 分数向量列表（与请求实例一一对应，每条与标签集等长）
	Scores [][]float64

	// Outputs 原始输出（可选，用于调试）
	Outputs interface{}

	// ModelVersion 模型版本（如果服务返回）
	ModelVersion string
}
