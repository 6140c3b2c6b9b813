package feast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPClient 通过 Feast Python feature server 的 REST 接口（POST /get-online-features）取在线特征。
//
// 请求按列组织实体：{"features": [...], "entities": {"session_id": ["cam-1"]}, "full_feature_names": true}；
// 响应的 results[i] 对应 metadata.feature_names[i]，values[j] 对应第 j 个实体行。
type HTTPClient struct {
	// Endpoint 服务端点，例如 "http://localhost:6566"
	Endpoint string

	// Project 项目名称
	Project string

	auth       *AuthConfig
	httpClient *http.Client
}

// NewHTTPClient 创建 Feast HTTP 客户端。
func NewHTTPClient(endpoint, project string, opts ...ClientOption) (*HTTPClient, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("invalid feast http endpoint %q", endpoint)
	}
	config := &ClientConfig{
		Endpoint: strings.TrimRight(endpoint, "/"),
		Project:  project,
		Timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(config)
	}
	return &HTTPClient{
		Endpoint:   config.Endpoint,
		Project:    config.Project,
		auth:       config.Auth,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

type onlineFeaturesResponse struct {
	Metadata struct {
		FeatureNames []string `json:"feature_names"`
	} `json:"metadata"`
	Results []struct {
		Values   []interface{} `json:"values"`
		Statuses []string      `json:"statuses"`
	} `json:"results"`
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *HTTPClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 {
		return nil, fmt.Errorf("features are required")
	}
	if len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("entity rows are required")
	}

	entities := make(map[string][]interface{})
	for i, row := range req.EntityRows {
		for k, v := range row {
			col, ok := entities[k]
			if !ok {
				col = make([]interface{}, len(req.EntityRows))
			}
			col[i] = v
			entities[k] = col
		}
	}
	body := map[string]interface{}{
		"features":           req.Features,
		"entities":           entities,
		"full_feature_names": true,
	}
	if project := req.Project; project != "" {
		body["project"] = project
	} else if c.Project != "" {
		body["project"] = c.Project
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/get-online-features", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.addAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("feast http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("feast error: status=%d, body=%s", resp.StatusCode, string(bodyBytes))
	}

	var result onlineFeaturesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// full_feature_names 把 "view:feature" 返回为 "view__feature"
	wanted := make(map[string]string, len(req.Features))
	for _, f := range req.Features {
		wanted[strings.Replace(f, ":", "__", 1)] = f
		wanted[f] = f
	}

	vectors := make([]FeatureVector, len(req.EntityRows))
	for j := range vectors {
		vectors[j] = FeatureVector{
			Values:    make(map[string]interface{}, len(req.Features)),
			EntityRow: req.EntityRows[j],
		}
	}
	for i, name := range result.Metadata.FeatureNames {
		feature, ok := wanted[name]
		if !ok || i >= len(result.Results) {
			continue
		}
		col := result.Results[i]
		for j := range vectors {
			if j >= len(col.Values) || col.Values[j] == nil {
				continue
			}
			if j < len(col.Statuses) && col.Statuses[j] != "" && col.Statuses[j] != "PRESENT" {
				continue
			}
			vectors[j].Values[feature] = col.Values[j]
		}
	}
	return &GetOnlineFeaturesResponse{FeatureVectors: vectors}, nil
}

// Close 关闭连接（HTTP 客户端无需释放）
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) addAuth(req *http.Request) {
	if c.auth == nil || c.auth.Token == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.auth.Token)
}

var _ Client = (*HTTPClient)(nil)
