package config

import (
	"fmt"

	"github.com/rushteam/inferkit/feature"
	"github.com/rushteam/inferkit/fixture"
	"github.com/rushteam/inferkit/pipeline"
	"github.com/rushteam/inferkit/pkg/conv"
	"github.com/rushteam/inferkit/rank"
)

// DefaultSourceFactory 返回一个包含所有内置来源的工厂：
//   - override：config.table（覆盖表文件）、config.hit、config.miss
//   - model：config.normalize；没有模型（演示模式）时跳过
//   - heuristic：config.reducer；"none" 或空串时跳过
func DefaultSourceFactory() *pipeline.SourceFactory {
	factory := pipeline.NewSourceFactory()
	factory.Register(string(pipeline.KindOverride), buildOverrideSource)
	factory.Register(string(pipeline.KindModel), buildModelSource)
	factory.Register(string(pipeline.KindHeuristic), buildHeuristicSource)
	return factory
}

func buildOverrideSource(_ *pipeline.BuildEnv, cfg map[string]interface{}) (pipeline.Source, error) {
	path := conv.ConfigGet(cfg, "table", "")
	if path == "" {
		return nil, nil
	}
	table, err := fixture.LoadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load override table: %w", err)
	}
	src := fixture.NewOverrideSource(table)
	src.Hit = conv.ConfigGetFloat64(cfg, "hit", fixture.DefaultHit)
	src.Miss = conv.ConfigGetFloat64(cfg, "miss", fixture.DefaultMiss)
	return src, nil
}

func buildModelSource(env *pipeline.BuildEnv, cfg map[string]interface{}) (pipeline.Source, error) {
	if env.Model == nil {
		return nil, nil
	}
	norm, err := pipeline.ParseNormalization(conv.ConfigGet(cfg, "normalize", ""))
	if err != nil {
		return nil, err
	}
	return &rank.ModelSource{Model: env.Model, Normalize: norm}, nil
}

func buildHeuristicSource(_ *pipeline.BuildEnv, cfg map[string]interface{}) (pipeline.Source, error) {
	name := conv.ConfigGet(cfg, "reducer", "")
	if name == "" || name == "none" {
		return nil, nil
	}
	reducer, err := feature.NewReducer(name)
	if err != nil {
		return nil, err
	}
	return &feature.HeuristicSource{Reducer: reducer}, nil
}

// SourcesFor 返回模态的来源链配置：显式配置的 Sources 优先，
// 否则由 overrides / normalize / heuristic 字段推导出默认链。
func SourcesFor(mc *ModalityConfig) *pipeline.Config {
	if len(mc.Sources) > 0 {
		return &pipeline.Config{Sources: mc.Sources}
	}
	return &pipeline.Config{Sources: []pipeline.SourceConfig{
		{Type: string(pipeline.KindOverride), Config: map[string]interface{}{"table": mc.Overrides}},
		{Type: string(pipeline.KindModel), Config: map[string]interface{}{"normalize": mc.Normalize}},
		{Type: string(pipeline.KindHeuristic), Config: map[string]interface{}{"reducer": mc.Heuristic}},
	}}
}
