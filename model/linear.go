package model

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rushteam/inferkit/core"
)

// LinearModel 是多类线性分类器（softmax 回归的前半部分）。
//
// 预测原理：
// 对每个类别 c：z_c = Bias[c] + sum(Weights[c][i] * x_i)
//
// 输出 z 为 logits，不做 softmax，归一交给排序核心。
// 适合把小型姿态/音频特征模型导出成 JSON 后本地运行。
type LinearModel struct {
	Weights [][]float64 // [类别数][输入维度]
	Bias    []float64   // [类别数]，可为空
}

// LoadLinearModel 从 JSON 文件加载：{"weights": [[...], ...], "bias": [...]}
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Weights [][]float64 `json:"weights"`
		Bias    []float64   `json:"bias"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	m := &LinearModel{Weights: raw.Weights, Bias: raw.Bias}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *LinearModel) validate() error {
	if len(m.Weights) == 0 {
		return fmt.Errorf("linear model: empty weights")
	}
	cols := len(m.Weights[0])
	for i, row := range m.Weights {
		if len(row) != cols {
			return fmt.Errorf("linear model: row %d has %d weights, want %d", i, len(row), cols)
		}
	}
	if len(m.Bias) != 0 && len(m.Bias) != len(m.Weights) {
		return fmt.Errorf("linear model: bias length %d, want %d", len(m.Bias), len(m.Weights))
	}
	return nil
}

func (m *LinearModel) Name() string { return "linear" }

// InputLen 返回输入维度。
func (m *LinearModel) InputLen() int {
	if len(m.Weights) == 0 {
		return 0
	}
	return len(m.Weights[0])
}

func (m *LinearModel) Predict(ctx context.Context, input []float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n := m.InputLen(); len(input) != n {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeInvalidInput,
			fmt.Sprintf("linear model: input length %d, want %d", len(input), n))
	}
	out := make([]float64, len(m.Weights))
	for c, row := range m.Weights {
		var z float64
		if c < len(m.Bias) {
			z = m.Bias[c]
		}
		for i, w := range row {
			z += w * input[i]
		}
		out[c] = z
	}
	return out, nil
}
