package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/inferkit/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once

	// programs 缓存已编译的表达式，key 为表达式文本
	programs sync.Map
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("top1", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("label", cel.StringType),
		cel.Variable("prob", cel.DoubleType),
		cel.Variable("mode", cel.StringType),
		cel.Variable("modality", cel.StringType),
		cel.Variable("topk", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Eval 是结果规则解释器，使用 CEL (Common Expression Language) 实现。
//
// 可用变量：
//   - top1.label / top1.prob：第一名（结果为空时 label 为 ""、prob 为 0）
//   - label / prob：top1 的简写
//   - mode：model / heuristic / override / fallback
//   - modality：image / audio / pose
//   - topk：[{label, prob}, ...]
//
// 示例：
//   - `prob > 0.7`
//   - `label == "sentadilla" && prob >= 0.5`
//   - `mode != "model"`
//   - `topk.size() > 1 && topk[1].prob > 0.3`
type Eval struct {
	res *core.TopResult
	env *cel.Env
}

// NewEval 创建一个绑定到结果的解释器。
// 同一表达式只编译一次，编译结果在所有 Eval 之间共享。
func NewEval(res *core.TopResult) *Eval {
	env, _ := getCELEnv()
	return &Eval{res: res, env: env}
}

// Compile 预编译表达式，用于在加载配置时尽早报告语法错误。
func Compile(expr string) error {
	_, err := program(expr)
	return err
}

func program(expr string) (cel.Program, error) {
	if cached, ok := programs.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must return boolean, got %s", out)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	programs.Store(expr, prg)
	return prg, nil
}

// Evaluate 执行表达式，返回布尔结果。空表达式恒为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(e.buildInput())
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// buildInput 构建 CEL 表达式的输入数据
func (e *Eval) buildInput() map[string]interface{} {
	label, prob := "", 0.0
	var mode, modality string
	topk := []interface{}{}
	if e.res != nil {
		if e.res.Top1 != nil {
			label, prob = e.res.Top1.Label, e.res.Top1.Prob
		}
		mode = string(e.res.Mode)
		modality = string(e.res.Modality)
		for _, it := range e.res.TopK {
			topk = append(topk, map[string]interface{}{"label": it.Label, "prob": it.Prob})
		}
	}
	return map[string]interface{}{
		"top1":     map[string]interface{}{"label": label, "prob": prob},
		"label":    label,
		"prob":     prob,
		"mode":     mode,
		"modality": modality,
		"topk":     topk,
	}
}
