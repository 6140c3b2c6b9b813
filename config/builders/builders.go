package builders

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/inferkit/config"
	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/model"
	"github.com/rushteam/inferkit/pkg/conv"
	"github.com/rushteam/inferkit/service"
)

func init() {
	config.Register("linear", BuildLinear)
	config.Register("rpc", BuildRPC)
	config.Register(string(service.ServiceTypeTFServing), BuildMLService)
	config.Register(string(service.ServiceTypeTorchServe), BuildMLService)
	config.Register(string(service.ServiceTypeKServe), BuildMLService)
}

func timeoutOf(mc *config.ModelConfig) time.Duration {
	if mc.Timeout > 0 {
		return time.Duration(mc.Timeout) * time.Second
	}
	return (&core.DefaultInferenceConfig{}).DefaultTimeout()
}

// BuildLinear 从 JSON 权重文件加载本地线性模型。
func BuildLinear(_ context.Context, mc *config.ModelConfig, _ []string) (model.Classifier, error) {
	if mc.Path == "" {
		return nil, fmt.Errorf("linear model: path not found")
	}
	return model.LoadLinearModel(mc.Path)
}

// BuildRPC 通过 HTTP 调用自定义模型服务。
func BuildRPC(_ context.Context, mc *config.ModelConfig, _ []string) (model.Classifier, error) {
	if mc.Endpoint == "" {
		return nil, fmt.Errorf("rpc model: endpoint not found")
	}
	return model.NewRPCModel(mc.ModelName, mc.Endpoint, timeoutOf(mc)), nil
}

// BuildMLService 构建 TF Serving / TorchServe / KServe 后端。
// labels 用于把 {"label": prob} 形式的响应还原为与标签集同序的向量。
func BuildMLService(_ context.Context, mc *config.ModelConfig, labels []string) (model.Classifier, error) {
	sc := &service.ServiceConfig{
		Type:         service.ServiceType(mc.Type),
		Endpoint:     mc.Endpoint,
		ModelName:    mc.ModelName,
		ModelVersion: mc.Version,
		Protocol:     mc.Protocol,
		Timeout:      int(timeoutOf(mc) / time.Second),
		Params:       mc.Params,
	}
	if token := conv.ConfigGet(mc.Params, "token", ""); token != "" {
		sc.Auth = &service.AuthConfig{Type: "bearer", Token: token}
	} else if key := conv.ConfigGet(mc.Params, "api_key", ""); key != "" {
		sc.Auth = &service.AuthConfig{Type: "api_key", APIKey: key}
	}
	svc, err := service.NewMLService(sc)
	if err != nil {
		return nil, err
	}
	return &model.ServiceModel{
		Service:      svc,
		ModelName:    mc.ModelName,
		ModelVersion: mc.Version,
		Labels:       labels,
	}, nil
}
