package model

import (
	"context"
	"fmt"

	"github.com/rushteam/inferkit/core"
)

// ServiceModel 把 core.MLService（TF Serving / TorchServe / KServe）适配为 Classifier。
type ServiceModel struct {
	Service      core.MLService
	ModelName    string
	ModelVersion string
	// Labels 在服务按 {"label": prob} 返回时用于还原顺序
	Labels []string
}

func (m *ServiceModel) Name() string {
	if m.ModelName != "" {
		return m.ModelName
	}
	return "ml_service"
}

func (m *ServiceModel) Predict(ctx context.Context, input []float64) ([]float64, error) {
	if m.Service == nil {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "ml service not configured")
	}
	resp, err := m.Service.Predict(ctx, &core.MLPredictRequest{
		Instances:    [][]float64{input},
		Labels:       m.Labels,
		ModelName:    m.ModelName,
		ModelVersion: m.ModelVersion,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Scores) == 0 {
		return nil, fmt.Errorf("ml service %s: empty response", m.Name())
	}
	return resp.Scores[0], nil
}

// Health 透传服务健康检查。
func (m *ServiceModel) Health(ctx context.Context) error {
	if m.Service == nil {
		return core.NewDomainError(core.ModuleModel, core.ErrorCodeUnavailable, "ml service not configured")
	}
	return m.Service.Health(ctx)
}

func (m *ServiceModel) Close(ctx context.Context) error {
	if m.Service == nil {
		return nil
	}
	return m.Service.Close(ctx)
}
