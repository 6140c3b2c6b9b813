package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// Metadata 对应模型目录下的 metadata.json（Teachable Machine 导出格式）。
// 只读取需要的字段，其余字段忽略。
type Metadata struct {
	// Labels 类别标签（按模型输出顺序）
	Labels []string `json:"labels"`
	// ImageSize 图像模型的输入边长
	ImageSize int `json:"imageSize"`
	// ModelName 模型名称（可选）
	ModelName string `json:"modelName,omitempty"`
	// Version 导出工具版本（可选）
	Version string `json:"tfjsVersion,omitempty"`
}

// MetadataLoader 模型元数据加载器接口
// 支持从不同来源加载元数据（本地文件、HTTP 接口等）
type MetadataLoader interface {
	// Load 加载元数据
	// source 是数据源标识（文件路径或 URL）
	Load(ctx context.Context, source string) (*Metadata, error)
}

// FileMetadataLoader 本地文件元数据加载器
type FileMetadataLoader struct{}

// NewFileMetadataLoader 创建本地文件元数据加载器
func NewFileMetadataLoader() *FileMetadataLoader {
	return &FileMetadataLoader{}
}

// Load 从本地文件加载元数据
func (l *FileMetadataLoader) Load(_ context.Context, path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取元数据文件失败: %w", err)
	}
	return decodeMetadata(data)
}

// HTTPMetadataLoader HTTP 接口元数据加载器
type HTTPMetadataLoader struct {
	client *http.Client
}

// NewHTTPMetadataLoader 创建 HTTP 接口元数据加载器
//
// 用法：
//
//	loader := model.NewHTTPMetadataLoader(5 * time.Second)
//	meta, err := loader.Load(ctx, "http://models.local/tm-my-image-model/metadata.json")
func NewHTTPMetadataLoader(timeout time.Duration) *HTTPMetadataLoader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMetadataLoader{client: &http.Client{Timeout: timeout}}
}

// NewHTTPMetadataLoaderWithClient 使用自定义 HTTP 客户端创建加载器
func NewHTTPMetadataLoaderWithClient(client *http.Client) *HTTPMetadataLoader {
	return &HTTPMetadataLoader{client: client}
}

// Load 从 HTTP 接口加载元数据
func (l *HTTPMetadataLoader) Load(ctx context.Context, url string) (*Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP 请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return decodeMetadata(data)
}

func decodeMetadata(data []byte) (*Metadata, error) {
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("解析元数据失败: %w", err)
	}
	if len(meta.Labels) == 0 {
		return nil, fmt.Errorf("元数据缺少 labels")
	}
	return &meta, nil
}

// MultiMetadataLoader 按 source 前缀选择加载器：http(s):// 走 HTTP，其余走本地文件。
type MultiMetadataLoader struct {
	File MetadataLoader
	HTTP MetadataLoader
}

// NewMetadataLoader 返回默认的组合加载器。
func NewMetadataLoader(timeout time.Duration) *MultiMetadataLoader {
	return &MultiMetadataLoader{
		File: NewFileMetadataLoader(),
		HTTP: NewHTTPMetadataLoader(timeout),
	}
}

func (l *MultiMetadataLoader) Load(ctx context.Context, source string) (*Metadata, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return l.HTTP.Load(ctx, source)
	}
	return l.File.Load(ctx, source)
}
