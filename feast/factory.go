package feast

import (
	"fmt"
	"strconv"
	"strings"
)

// NewClient 按端点创建客户端：http:// 或 https:// 使用 feature server 的 REST 接口，
// 其余（"localhost:6565"、"grpc://localhost:6565"）使用 gRPC。
//
// 示例：
//
//	client, err := feast.NewClient("localhost:6565", "inferkit")
//	client, err := feast.NewClient("http://localhost:6566", "inferkit")
func NewClient(endpoint, project string, opts ...ClientOption) (Client, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return NewHTTPClient(endpoint, project, opts...)
	}
	host, port := parseEndpoint(endpoint)
	if host == "" {
		return nil, fmt.Errorf("invalid feast endpoint %q", endpoint)
	}
	return NewGrpcClient(host, port, project, opts...)
}

// parseEndpoint 解析端点地址，返回 host 和 port（缺省为 0）
func parseEndpoint(endpoint string) (string, int) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	parts := strings.Split(endpoint, ":")
	if len(parts) == 2 {
		port, err := strconv.Atoi(parts[1])
		if err == nil {
			return parts[0], port
		}
	}
	return endpoint, 0
}
