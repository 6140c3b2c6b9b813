package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/pkg/conv"
)

// KServeProtocol 指定 KServe 协议版本。
const (
	KServeV1 = "v1"
	KServeV2 = "v2"
)

// KServeClient 是 KServe V1/V2 协议的客户端实现。
//
// KServe V1（基于 TensorFlow Serving REST）：
//   - Predict: POST /v1/models/{model_name}:predict
//   - 请求：{"instances": [[...]]}
//   - 响应：{"predictions": [[...]]}
//
// KServe V2（Open Inference Protocol）：
//   - Infer: POST /v2/models/{model_name}[/versions/{version}]/infer
//   - 请求：{"inputs": [{"name": "input0", "shape": [batch, dim], "datatype": "FP64", "data": [...]}]}
//   - 响应：{"outputs": [{"name": "...", "shape": [batch, classes], "data": [...]}]}
//   - Server Ready: GET /v2/health/ready
//
// V2 输出按 shape（或实例数）重新切分为每个实例一条分数向量。
type KServeClient struct {
	// Endpoint 服务根地址，如 "http://localhost:8000"
	Endpoint string
	// ModelName 模型名称
	ModelName string
	// ModelVersion 模型版本（可选，V2 路径中会带 /versions/{version}）
	ModelVersion string
	// Protocol 协议版本："v1" 或 "v2"，默认 "v2"
	Protocol string
	// V2InputName V2 协议下输入张量名称，默认 "input0"
	V2InputName string
	// V2OutputName V2 协议下期望的输出张量名称；空则取 outputs[0]
	V2OutputName string
	// Timeout 请求超时
	Timeout time.Duration
	// Auth 认证配置
	Auth *AuthConfig

	httpClient *http.Client
}

// NewKServeClient 创建 KServe 客户端。endpoint 为根地址，modelName 为模型名。
func NewKServeClient(endpoint, modelName string, opts ...KServeOption) *KServeClient {
	c := &KServeClient{
		Endpoint:    endpoint,
		ModelName:   modelName,
		Protocol:    KServeV2,
		V2InputName: "input0",
		Timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

// KServeOption 配置 KServe 客户端
type KServeOption func(*KServeClient)

// WithKServeVersion 设置模型版本
func WithKServeVersion(version string) KServeOption {
	return func(c *KServeClient) {
		c.ModelVersion = version
	}
}

// WithKServeProtocol 设置协议："v1" 或 "v2"
func WithKServeProtocol(protocol string) KServeOption {
	return func(c *KServeClient) {
		if protocol == KServeV1 || protocol == KServeV2 {
			c.Protocol = protocol
		}
	}
}

// WithKServeV2InputName 设置 V2 协议下输入张量名称
func WithKServeV2InputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.V2InputName = name
	}
}

// WithKServeV2OutputName 设置 V2 协议下期望的输出张量名称
func WithKServeV2OutputName(name string) KServeOption {
	return func(c *KServeClient) {
		c.V2OutputName = name
	}
}

// WithKServeTimeout 设置超时
func WithKServeTimeout(timeout time.Duration) KServeOption {
	return func(c *KServeClient) {
		c.Timeout = timeout
		if c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithKServeAuth 设置认证
func WithKServeAuth(auth *AuthConfig) KServeOption {
	return func(c *KServeClient) {
		c.Auth = auth
	}
}

// WithKServeHTTPClient 设置自定义 HTTP 客户端
func WithKServeHTTPClient(client *http.Client) KServeOption {
	return func(c *KServeClient) {
		c.httpClient = client
	}
}

// Predict 实现 core.MLService。
func (c *KServeClient) Predict(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	if req == nil || len(req.Instances) == 0 {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "instances are required")
	}
	if c.Protocol == KServeV1 {
		return c.predictV1(ctx, req)
	}
	return c.predictV2(ctx, req)
}

func (c *KServeClient) predictV1(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	url := fmt.Sprintf("%s/v1/models/%s:predict", c.Endpoint, c.ModelName)
	respBody, err := doJSON(ctx, c.httpClient, http.MethodPost, url, c.Auth, map[string]any{"instances": req.Instances})
	if err != nil {
		return nil, unavailable("kserve v1", err)
	}

	var out struct {
		Predictions any `json:"predictions"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("kserve v1 parse response: %w", err)
	}
	scores, err := toVectors(out.Predictions, len(req.Instances), req.Labels)
	if err != nil {
		return nil, fmt.Errorf("kserve v1: %w", err)
	}
	return &core.MLPredictResponse{
		Scores:       scores,
		Outputs:      string(respBody),
		ModelVersion: c.ModelVersion,
	}, nil
}

func (c *KServeClient) predictV2(ctx context.Context, req *core.MLPredictRequest) (*core.MLPredictResponse, error) {
	path := fmt.Sprintf("%s/v2/models/%s", c.Endpoint, c.ModelName)
	if c.ModelVersion != "" {
		path = fmt.Sprintf("%s/versions/%s", path, c.ModelVersion)
	}

	// Instances 展平为行优先的 inputs[].data
	rows := len(req.Instances)
	dim := len(req.Instances[0])
	data := make([]float64, 0, rows*dim)
	for i, row := range req.Instances {
		if len(row) != dim {
			return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
				fmt.Sprintf("kserve v2: instance %d has %d values, want %d", i, len(row), dim))
		}
		data = append(data, row...)
	}

	inputName := c.V2InputName
	if inputName == "" {
		inputName = "input0"
	}
	reqBody := map[string]any{
		"inputs": []map[string]any{
			{
				"name":     inputName,
				"shape":    []int{rows, dim},
				"datatype": "FP64",
				"data":     data,
			},
		},
	}
	respBody, err := doJSON(ctx, c.httpClient, http.MethodPost, path+"/infer", c.Auth, reqBody)
	if err != nil {
		return nil, unavailable("kserve v2", err)
	}

	scores, version, err := c.parseV2Outputs(respBody, rows)
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = c.ModelVersion
	}
	return &core.MLPredictResponse{
		Scores:       scores,
		Outputs:      string(respBody),
		ModelVersion: version,
	}, nil
}

// v2InferResponse 对应 V2 推理响应
type v2InferResponse struct {
	ModelName    string           `json:"model_name"`
	ModelVersion string           `json:"model_version"`
	Outputs      []v2OutputTensor `json:"outputs"`
}

type v2OutputTensor struct {
	Name     string `json:"name"`
	Shape    []int  `json:"shape"`
	Datatype string `json:"datatype"`
	Data     []any  `json:"data"`
}

func (c *KServeClient) parseV2Outputs(body []byte, rows int) ([][]float64, string, error) {
	var out v2InferResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, "", fmt.Errorf("kserve v2 parse response: %w", err)
	}
	if len(out.Outputs) == 0 {
		return nil, "", fmt.Errorf("kserve v2 empty outputs")
	}
	tensor := &out.Outputs[0]
	if c.V2OutputName != "" {
		for i := range out.Outputs {
			if out.Outputs[i].Name == c.V2OutputName {
				tensor = &out.Outputs[i]
				break
			}
		}
	}

	flat := make([]float64, 0, len(tensor.Data))
	for _, v := range tensor.Data {
		switch val := v.(type) {
		case []any:
			// 部分实现返回嵌套数组而非展平数据
			for _, x := range val {
				f, _ := conv.ToFloat64(x)
				flat = append(flat, f)
			}
		default:
			f, _ := conv.ToFloat64(val)
			flat = append(flat, f)
		}
	}
	if len(tensor.Shape) > 0 && tensor.Shape[0] > 0 {
		rows = tensor.Shape[0]
	}
	scores, err := reshape(flat, rows)
	if err != nil {
		return nil, "", fmt.Errorf("kserve v2: %w", err)
	}
	return scores, out.ModelVersion, nil
}

// Health 实现 core.MLService。V1 使用 GET /v1/models/{model_name}，V2 使用 GET /v2/health/ready。
func (c *KServeClient) Health(ctx context.Context) error {
	url := fmt.Sprintf("%s/v2/health/ready", c.Endpoint)
	if c.Protocol == KServeV1 {
		url = fmt.Sprintf("%s/v1/models/%s", c.Endpoint, c.ModelName)
	}
	if _, err := doJSON(ctx, c.httpClient, http.MethodGet, url, c.Auth, nil); err != nil {
		return fmt.Errorf("kserve health failed: %w", err)
	}
	return nil
}

// Close 实现 core.MLService。
func (c *KServeClient) Close(context.Context) error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ core.MLService = (*KServeClient)(nil)
