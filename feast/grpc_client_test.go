package feast

import (
	"context"
	"testing"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// TestGrpcClient_GetOnlineFeatures 需要连接真实的 Feast 服务器
func TestGrpcClient_GetOnlineFeatures(t *testing.T) {
	t.Skip("需要连接真实的 Feast 服务器才能运行")

	ctx := context.Background()

	client, err := NewGrpcClient("localhost", 6565, "inferkit")
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}
	defer client.Close()

	resp, err := client.GetOnlineFeatures(ctx, &GetOnlineFeaturesRequest{
		Features: []string{
			"pose_stats:knee_angle",
			"pose_stats:elbow_angle",
			"pose_stats:hip_y",
		},
		EntityRows: []map[string]interface{}{
			{"session_id": "cam-1"},
		},
	})
	if err != nil {
		t.Fatalf("获取特征失败: %v", err)
	}
	if len(resp.FeatureVectors) != 1 {
		t.Errorf("期望 1 个特征向量，实际得到 %d 个", len(resp.FeatureVectors))
	}
}

func TestConvertToSDKValue(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  interface{}
	}{
		{"string", "cam-1", "cam-1"},
		{"int", 100, float64(100)},
		{"int64", int64(7), float64(7)},
		{"float64", 3.14, 3.14},
		{"bool", true, float64(1)},
		{"[]byte", []byte("raw"), "raw"},
		{"other", struct{ A int }{1}, "{1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := convertToSDKValue(tt.input)
			if v == nil {
				t.Fatal("转换结果不应该为 nil")
			}
			if got := convertFromSDKValue(v); got != tt.want {
				t.Errorf("round trip = %v (%T), want %v", got, got, tt.want)
			}
		})
	}
}

func TestConvertFromSDKValue(t *testing.T) {
	if got := convertFromSDKValue(nil); got != nil {
		t.Errorf("nil 输入应该返回 nil，实际得到 %v", got)
	}
	if got := convertFromSDKValue(&types.Value{}); got != nil {
		t.Errorf("未设置的值应该返回 nil，实际得到 %v", got)
	}
	if got := convertFromSDKValue(feastsdk.FloatVal(0.5)); got != float64(0.5) {
		t.Errorf("float32 = %v", got)
	}
	if got := convertFromSDKValue(feastsdk.BoolVal(false)); got != float64(0) {
		t.Errorf("false = %v", got)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"localhost:6565", "localhost", 6565},
		{"grpc://feast:7000", "feast", 7000},
		{"feast", "feast", 0},
		{"feast:abc", "feast:abc", 0},
	}
	for _, tt := range tests {
		host, port := parseEndpoint(tt.in)
		if host != tt.wantHost || port != tt.wantPort {
			t.Errorf("parseEndpoint(%q) = %s, %d", tt.in, host, port)
		}
	}
}
