package pipeline

import (
	"context"

	"github.com/rushteam/inferkit/core"
)

// Pipeline 按顺序询问每个分数来源，第一个给出分数的来源胜出。
// 所有来源都不适用时返回 (nil, nil, nil)，由调用方走随机兜底。
type Pipeline struct {
	Sources []Source
}

func (p *Pipeline) Run(
	ctx context.Context,
	ictx *core.InferenceContext,
	req *Request,
	labels []string,
) (*Scores, Source, error) {
	if p == nil {
		return nil, nil, nil
	}
	for _, src := range p.Sources {
		if src == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		scores, err := src.Scores(ctx, ictx, req, labels)
		if err != nil {
			return nil, src, err
		}
		if scores == nil || len(scores.Values) == 0 {
			continue
		}
		return scores, src, nil
	}
	return nil, nil, nil
}

// Names 返回来源名称（按链上顺序），用于日志与 CLI 展示。
func (p *Pipeline) Names() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.Sources))
	for _, src := range p.Sources {
		if src != nil {
			names = append(names, src.Name())
		}
	}
	return names
}
