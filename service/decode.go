package service

import (
	"fmt"
	"sort"

	"github.com/rushteam/inferkit/pkg/conv"
)

// toVectors 把服务返回的 predictions 还原为每个实例一条分数向量。
//
// 支持的形态：
//   - [[p1, p2, ...], ...]       每个实例一条向量
//   - [p1, p2, ...]              只有一个实例时视为该实例的向量
//   - [{"label": p, ...}, ...]   按 labels 顺序还原（labels 为空时按 key 排序）
//   - {"label": p, ...}          单实例的字典
func toVectors(preds any, instances int, labels []string) ([][]float64, error) {
	switch v := preds.(type) {
	case map[string]any:
		return [][]float64{dictToVector(v, labels)}, nil
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty predictions in response")
		}
		if _, scalar := conv.ToFloat64(v[0]); scalar {
			if instances > 1 {
				return nil, fmt.Errorf("flat predictions for %d instances", instances)
			}
			return [][]float64{floats(v)}, nil
		}
		out := make([][]float64, 0, len(v))
		for _, row := range v {
			switch r := row.(type) {
			case []any:
				out = append(out, floats(r))
			case map[string]any:
				out = append(out, dictToVector(r, labels))
			default:
				return nil, fmt.Errorf("unexpected prediction type: %T", row)
			}
		}
		if instances > 0 && len(out) != instances {
			return nil, fmt.Errorf("response predictions count mismatch: expected %d, got %d", instances, len(out))
		}
		return out, nil
	case nil:
		return nil, fmt.Errorf("empty predictions in response")
	}
	return nil, fmt.Errorf("unexpected predictions type: %T", preds)
}

func floats(v []any) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i], _ = conv.ToFloat64(x)
	}
	return out
}

func dictToVector(m map[string]any, labels []string) []float64 {
	if len(labels) == 0 {
		labels = make([]string, 0, len(m))
		for k := range m {
			labels = append(labels, k)
		}
		sort.Strings(labels)
	}
	out := make([]float64, len(labels))
	for i, l := range labels {
		out[i], _ = conv.ToFloat64(m[l])
	}
	return out
}

// reshape 把行优先的展平数据切成 rows 行。
func reshape(data []float64, rows int) ([][]float64, error) {
	if rows <= 0 || len(data)%rows != 0 {
		return nil, fmt.Errorf("cannot reshape %d values into %d rows", len(data), rows)
	}
	dim := len(data) / rows
	out := make([][]float64, rows)
	for i := range out {
		out[i] = append([]float64(nil), data[i*dim:(i+1)*dim]...)
	}
	return out, nil
}
