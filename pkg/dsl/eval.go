package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/activeseg/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境，定义变量
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("candidate", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("round", cel.DynType),
	)
}

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的 CEL 候选过滤表达式，可对多个候选重复求值。
//
// 表达式语法（CEL 标准语法）：
//   - key：candidate.key.startsWith("aachen/")
//   - 数值：candidate.score > 0.05
//   - 标签：label.selection_method == "variance"
//   - 轮次：round.iteration >= 2 && candidate.score > round.params.min_score
//   - 存在性：has(label.filtered)
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，编译失败立即返回错误（配置加载阶段就能发现）。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

func (p *Program) String() string { return p.expr }

// Evaluate 对单个候选求值，返回布尔结果。
func (p *Program) Evaluate(c *core.Candidate, rctx *core.RoundContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(c, rctx))
	if err != nil {
		// 访问不存在的 key 会报错，表达式应使用 has(label.key) 检查存在性
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Evaluate 编译并执行一次表达式；空表达式视为 true。
func Evaluate(expr string, c *core.Candidate, rctx *core.RoundContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Evaluate(c, rctx)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(c *core.Candidate, rctx *core.RoundContext) map[string]any {
	labels := make(map[string]any, len(c.Labels))
	for k, v := range c.Labels {
		labels[k] = v.Value
	}
	meta := c.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	candidate := map[string]any{
		"key":   string(c.Key),
		"score": c.Score,
		"meta":  meta,
	}

	round := map[string]any{
		"run_id":    "",
		"iteration": int64(0),
		"labeled":   int64(0),
		"params":    map[string]any{},
	}
	if rctx != nil {
		round["run_id"] = rctx.RunID
		round["iteration"] = int64(rctx.Iteration)
		round["labeled"] = int64(len(rctx.Labeled))
		if rctx.Params != nil {
			round["params"] = rctx.Params
		}
	}

	return map[string]any{
		"candidate": candidate,
		"label":     labels,
		"round":     round,
	}
}
