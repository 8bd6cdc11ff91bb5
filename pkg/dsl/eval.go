package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/movierec/core"
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
		cel.Variable("item", cel.DynType),
		cel.Variable("label", cel.DynType),
		cel.Variable("rctx", cel.DynType),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译后的候选表达式，使用 CEL (Common Expression Language)。
// 编译一次、并发求值，cel.Program 本身线程安全。
//
// 可用变量：
//   - item.id / item.row / item.score / item.distance
//   - item.meta.title / item.meta.normalized_title / item.meta.genres（[]string）
//   - label.recall_source / label.cf_metric（Label 的 value）
//   - rctx.seed_title / rctx.seed_id / rctx.n / rctx.params
//
// 示例：
//   - `item.score >= 0.2`
//   - `!("Horror" in item.meta.genres)`
//   - `label.recall_source == "i2i" && item.distance < 0.9`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，返回的 Program 可被多个请求复用。
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

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// Eval 对单个候选求值，表达式必须返回布尔值。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		// 访问不存在的 key 会报错，应先用 `"key" in item.meta` 判断
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}

// Eval 是一次性求值的便捷封装，适合调试与工具；线上请先 Compile。
type Eval struct {
	item *core.Item
	rctx *core.RecommendContext
}

// NewEval 创建一个绑定候选与请求上下文的解释器。
func NewEval(item *core.Item, rctx *core.RecommendContext) *Eval {
	return &Eval{item: item, rctx: rctx}
}

// Evaluate 编译并执行表达式；空表达式视为 true。
func (e *Eval) Evaluate(expr string) (bool, error) {
	if expr == "" {
		return true, nil
	}
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Eval(e.item, e.rctx)
}

// buildInput 构建 CEL 表达式的输入数据
func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	labels := make(map[string]any)
	labelValues := make(map[string]any)
	meta := map[string]any{}
	itemMap := map[string]any{}

	if item != nil {
		for k, v := range item.Labels {
			labels[k] = map[string]any{
				"value":  v.Value,
				"source": v.Source,
			}
			labelValues[k] = v.Value
		}
		for k, v := range item.Meta {
			meta[k] = v
		}
		itemMap = map[string]any{
			"id":       item.ID,
			"row":      int64(item.Row),
			"score":    item.Score,
			"distance": item.Distance,
			"meta":     meta,
			"labels":   labels,
		}
	}

	rctxMap := map[string]any{
		"seed_title": "",
		"seed_id":    int64(0),
		"n":          int64(0),
		"params":     map[string]any{},
	}
	if rctx != nil {
		rctxMap["seed_title"] = rctx.SeedTitle
		rctxMap["seed_id"] = rctx.SeedID
		rctxMap["n"] = int64(rctx.N)
		if rctx.Params != nil {
			rctxMap["params"] = rctx.Params
		}
	}

	return map[string]any{
		"item":  itemMap,
		"label": labelValues,
		"rctx":  rctxMap,
	}
}
