package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/movierec/core"
)

// Pipeline 把一次推荐拆成可组合的 Node 链：召回 → 过滤 → 重排 → 展示字段补全。
// 构建后只读，可被多个请求并发执行。
type Pipeline struct {
	Nodes []Node
}

func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		next, err := node.Process(ctx, rctx, cur)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", node.Name(), err)
		}
		cur = next
	}
	return cur, nil
}

// Names 返回按执行顺序排列的 Node 名称。
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		names = append(names, n.Name())
	}
	return names
}
