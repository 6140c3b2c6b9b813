package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RPCModel 是通过 HTTP 调用自定义模型服务的 Classifier 实现。
// 适合把浏览器端模型包装成一个小服务后接入。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	if name == "" {
		name = "rpc"
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

// Predict 调用远程模型服务（单个实例，内部调用批量接口）。
func (m *RPCModel) Predict(ctx context.Context, input []float64) ([]float64, error) {
	scores, err := m.PredictBatch(ctx, [][]float64{input})
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("empty response")
	}
	return scores[0], nil
}

// PredictBatch 调用远程模型服务进行批量预测。
// 请求格式（JSON）：
//
//	{"instances": [[0.1, 0.2, ...], ...]}
//
// 响应格式（JSON，二选一）：
//
//	{"scores": [[0.85, 0.10, ...], ...]}
//	{"predictions": [[0.85, 0.10, ...], ...]}
func (m *RPCModel) PredictBatch(ctx context.Context, instances [][]float64) ([][]float64, error) {
	if m.Client == nil {
		m.Client = &http.Client{Timeout: m.Timeout}
	}

	if len(instances) == 0 {
		return [][]float64{}, nil
	}

	jsonData, err := json.Marshal(map[string]any{"instances": instances})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result struct {
		Scores      [][]float64 `json:"scores"`
		Predictions [][]float64 `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	scores := result.Scores
	if scores == nil {
		scores = result.Predictions
	}

	if len(scores) != len(instances) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(instances), len(scores))
	}

	return scores, nil
}
