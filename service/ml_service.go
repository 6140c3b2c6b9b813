package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rushteam/inferkit/core"
)

// 本包实现 core.MLService：把 TF Serving / TorchServe / KServe 的推理接口
// 统一为"每个实例一条分数向量"。
//
// 使用示例：
//
//	svc := service.NewTFServingClient("http://localhost:8501", "tm_image")
//	resp, err := svc.Predict(ctx, &core.MLPredictRequest{
//	    Instances: [][]float64{pixels},
//	})
//	scores := resp.Scores[0]

// ServiceType 服务类型
type ServiceType string

const (
	ServiceTypeTFServing  ServiceType = "tf_serving"  // TensorFlow Serving
	ServiceTypeTorchServe ServiceType = "torch_serve" // TorchServe
	ServiceTypeKServe     ServiceType = "kserve"      // KServe V1/V2
)

// ServiceConfig 服务配置
type ServiceConfig struct {
	// Type 服务类型
	Type ServiceType

	// Endpoint 服务端点
	// TF Serving: "http://localhost:8501"
	// TorchServe: "http://localhost:8080"
	// KServe: "http://localhost:8000"
	Endpoint string

	// ModelName 模型名称
	ModelName string

	// ModelVersion 模型版本
	ModelVersion string

	// Protocol KServe 协议版本（v1 / v2）
	Protocol string

	// Timeout 超时时间（秒）
	Timeout int

	// Auth 认证信息（可选）
	Auth *AuthConfig

	// Params 额外参数
	Params map[string]interface{}
}

// AuthConfig 认证配置
type AuthConfig struct {
	Type     string // "basic", "bearer", "api_key"
	Username string
	Password string
	Token    string
	APIKey   string
}

// apply 添加认证信息到 HTTP 请求
func (a *AuthConfig) apply(req *http.Request) {
	if a == nil {
		return
	}
	switch a.Type {
	case "basic":
		req.SetBasicAuth(a.Username, a.Password)
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case "api_key":
		req.Header.Set("X-API-Key", a.APIKey)
	}
}

// doJSON 发送 JSON 请求并返回响应体；非 200 状态码视为错误。
func doJSON(ctx context.Context, client *http.Client, method, url string, auth *AuthConfig, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	auth.apply(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// StatusError 表示后端返回了非 200 状态码。
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status=%d, body=%s", e.StatusCode, e.Body)
}

// unavailable 把调用失败包装为 UNAVAILABLE 的领域错误。
func unavailable(backend string, err error) error {
	return core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, backend+" request failed", err)
}
