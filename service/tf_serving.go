package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/inferkit/core"
)

// TFServingClient 是 TensorFlow Serving REST API 的客户端实现。
//
// Teachable Machine 导出的 SavedModel 可直接由 TF Serving 加载：
//   - Predict: POST /v1/models/{model}[/versions/{v}]:predict
//   - 请求：{"instances": [[...]], "signature_name": "serving_default"}
//   - 响应：{"predictions": [[p1, p2, ...]]}，每个实例一条类别分数
//   - Model Status: GET /v1/models/{model}
//
// 这里只实现 REST 协议（端口 8501）；gRPC 需要 protobuf 依赖。
type TFServingClient struct {
	// Endpoint 服务端点，例如 "http://localhost:8501"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本（可选，为空则使用最新版本）
	ModelVersion string

	// SignatureName 签名名称（可选，默认为 "serving_default"）
	SignatureName string

	// Timeout 超时时间
	Timeout time.Duration

	// Auth 认证信息
	Auth *AuthConfig

	httpClient *http.Client
}

// NewTFServingClient 创建一个新的 TF Serving 客户端。
func NewTFServingClient(endpoint, modelName string, opts ...TFServingOption) *TFServingClient {
	client := &TFServingClient{
		Endpoint:      endpoint,
		ModelName:     modelName,
		SignatureName: "serving_default",
		Timeout:       30 * time.Second,
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

// TFServingOption TF Serving 客户端配置选项
type TFServingOption func(*TFServingClient)

// WithTFServingVersion 设置模型版本
func WithTFServingVersion(version string) TFServingOption {
	return func(c *TFServingClient) {
		c.ModelVersion = version
	}
}

// WithTFServingSignature 设置签名名称
func WithTFServingSignature(signatureName string) TFServingOption {
	return func(c *TFServingClient) {
		c.SignatureName = signatureName
	}
}

// WithTFServingTimeout 设置超时时间
func WithTFServingTimeout(timeout time.Duration) TFServingOption {
	return func(c *TFServingClient) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithTFServingAuth 设置认证信息
func WithTFServingAuth(auth *AuthConfig) TFServingOption {
	return func(c *TFServingClient) {
		c.Auth = auth
	}
}

// WithTFServingHTTPClient 设置自定义 HTTP 客户端
func WithTFServingHTTPClient(httpClient *http.Client) TFServingOption {
	return func(c *TFServingClient) {
		c.httpClient = httpClient
	}
}

func (c *TFServingClient) modelURL() string {
	url := fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		url = fmt.Sprintf("%s/versions/%s", url, c.ModelVersion)
	}
	return url
}

// Predict 实现 core.MLService 接口
func (c *TFServingClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if req == nil || len(req.Instances) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "instances are required")
	}

	body := map[string]any{"instances": req.Instances}
	signature := c.SignatureName
	if req.SignatureName != "" {
		signature = req.SignatureName
	}
	if signature != "" {
		body["signature_name"] = signature
	}

	respBody, err := doJSON(ctx, c.httpClient, http.MethodPost, c.modelURL()+":predict", c.Auth, body)
	if err != nil {
		return nil, unavailable("tf serving", err)
	}

	var result struct {
		Predictions any `json:"predictions"`
		Outputs     any `json:"outputs,omitempty"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	preds := result.Predictions
	if preds == nil {
		// 列格式请求时 TF Serving 返回 outputs
		preds = result.Outputs
	}

	scores, err := toVectors(preds, len(req.Instances), req.Labels)
	if err != nil {
		return nil, fmt.Errorf("tf serving: %w", err)
	}

	return &core.MLPredictResponse{
		Scores:       scores,
		Outputs:      result.Outputs,
		ModelVersion: c.ModelVersion,
	}, nil
}

// Health 健康检查
func (c *TFServingClient) Health(ctx context.Context) error {
	if _, err := doJSON(ctx, c.httpClient, http.MethodGet, c.modelURL(), c.Auth, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Close HTTP 客户端不需要显式关闭
func (c *TFServingClient) Close(context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// 确保 TFServingClient 实现了 core.MLService 接口
var _ core.MLService = (*TFServingClient)(nil)
