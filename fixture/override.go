// Package fixture 提供演示用的文件名覆盖表。
//
// 覆盖表把特定的示例文件名强制映射到某个标签，只用于演示与测试，
// 作为分数来源链上一个显式的 mock 来源存在，排序核心对它一无所知。
package fixture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/inferkit/core"
	"github.com/rushteam/inferkit/pipeline"
)

const (
	DefaultHit  = 0.98
	DefaultMiss = 0.01
)

// Table 文件名（不含目录）到标签的映射。
type Table map[string]string

// OverrideSource 命中覆盖表时给目标标签 Hit 分、其余标签 Miss 分，再按和归一。
type OverrideSource struct {
	Table Table
	Hit   float64
	Miss  float64
}

// NewOverrideSource 使用默认的命中/未命中分数。
func NewOverrideSource(t Table) *OverrideSource {
	return &OverrideSource{Table: t, Hit: DefaultHit, Miss: DefaultMiss}
}

func (s *OverrideSource) Name() string        { return "fixture.override" }
func (s *OverrideSource) Kind() pipeline.Kind { return pipeline.KindOverride }

func (s *OverrideSource) Scores(
	_ context.Context,
	ictx *core.InferenceContext,
	req *pipeline.Request,
	labels []string,
) (*pipeline.Scores, error) {
	name := ""
	if req != nil {
		name = req.Filename
	}
	if name == "" && ictx != nil {
		name = ictx.Filename
	}
	if name == "" || len(s.Table) == 0 {
		return nil, nil
	}
	target, ok := s.Table[filepath.Base(name)]
	if !ok {
		return nil, nil
	}

	hit, miss := s.Hit, s.Miss
	if hit <= 0 {
		hit = DefaultHit
	}
	if miss < 0 {
		miss = DefaultMiss
	}
	values := make([]float64, len(labels))
	matched := false
	for i, l := range labels {
		if l == target {
			values[i] = hit
			matched = true
		} else {
			values[i] = miss
		}
	}
	// 目标标签不在当前标签集里（例如模型换了）：不强行覆盖
	if !matched {
		return nil, nil
	}
	return &pipeline.Scores{Values: values, Normalize: pipeline.NormalizeSum}, nil
}

// LoadTable 从 YAML 文件加载覆盖表：
//
//	Sentadilla1.jpg: sentadilla
//	PushUp1.jpg: flexión
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return t, nil
}

var _ pipeline.Source = (*OverrideSource)(nil)
