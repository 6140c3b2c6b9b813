package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/inferkit/core"
)

// TorchServeClient 是 TorchServe 的客户端实现。
//
// REST API 格式：
//   - 推理端点：POST /predictions/{model_name}[/{version}]
//   - 请求体：{"data": [[...], ...]}（由模型 Handler 解释）
//   - 响应：图像分类 Handler 通常返回 {"label": prob, ...} 的 top-k 字典，
//     自定义 Handler 可返回 [[p1, p2, ...]] 或 [p1, p2, ...]
//   - 健康检查：GET /ping
//
// 字典形式的响应按 MLPredictRequest.Labels 的顺序还原为向量，缺失的标签记 0。
type TorchServeClient struct {
	// Endpoint 服务端点，例如 "http://localhost:8080"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选）
	ModelVersion string

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
}

// NewTorchServeClient 创建一个新的 TorchServe 客户端。
func NewTorchServeClient(endpoint, modelName string, opts ...TorchServeOption) *TorchServeClient {
	client := &TorchServeClient{
		Endpoint:  endpoint,
		ModelName: modelName,
		Timeout:   30 * time.Second,
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		client.httpClient = &http.Client{
			Timeout: client.Timeout,
		}
	}

	return client
}

// TorchServeOption TorchServe 客户端配置选项
type TorchServeOption func(*TorchServeClient)

// WithTorchServeVersion 设置模型版本
func WithTorchServeVersion(version string) TorchServeOption {
	return func(c *TorchServeClient) {
		c.ModelVersion = version
	}
}

// WithTorchServeTimeout 设置超时时间
func WithTorchServeTimeout(timeout time.Duration) TorchServeOption {
	return func(c *TorchServeClient) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithTorchServeAuth 设置认证信息
func WithTorchServeAuth(auth *AuthConfig) TorchServeOption {
	return func(c *TorchServeClient) {
		c.Auth = auth
	}
}

// WithTorchServeHTTPClient 设置自定义 HTTP 客户端
func WithTorchServeHTTPClient(httpClient *http.Client) TorchServeOption {
	return func(c *TorchServeClient) {
		c.httpClient = httpClient
	}
}

// Predict 批量预测
func (c *TorchServeClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if req == nil || len(req.Instances) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "instances are required")
	}

	url := fmt.Sprintf("%s/predictions/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		url = fmt.Sprintf("%s/%s", url, c.ModelVersion)
	}

	respBody, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.Auth, map[string]any{"data": req.Instances})
	if err != nil {
		return nil, unavailable("torchserve", err)
	}

	var raw any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, fmt.Errorf("unable to parse response: %s", string(respBody))
	}
	// {"predictions": ...} 包装
	if obj, ok := raw.(map[string]any); ok {
		if preds, ok := obj["predictions"]; ok {
			raw = preds
		}
	}

	scores, err := toVectors(raw, len(req.Instances), req.Labels)
	if err != nil {
		return nil, fmt.Errorf("torchserve: %w", err)
	}

	return &core.MLPredictResponse{
		Scores:       scores,
		Outputs:      string(respBody),
		ModelVersion: c.ModelVersion,
	}, nil
}

// Health 健康检查
func (c *TorchServeClient) Health(ctx context.Context) error {
	if _, err := doJSON(ctx, c.httpClient, http.MethodGet, c.Endpoint+"/ping", c.Auth, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close 关闭空闲连接
func (c *TorchServeClient) Close(context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// 确保 TorchServeClient 实现了 core.MLService 接口
var _ core.MLService = (*TorchServeClient)(nil)
