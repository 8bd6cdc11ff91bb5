package rerank

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，放在过滤与去重之后，限制返回条数。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &recall.SimilarItems{...}, // 召回
//	        &filter.FilterNode{...},   // 排除
//	        &rerank.TitleDedup{},      // 同名去重
//	        &rerank.TopNNode{},        // 截取请求的 n 条
//	    },
//	}
type TopNNode struct {
	// N 要保留的候选数量
	// 如果 N <= 0，则使用请求上下文中的 rctx.N；两者都 <= 0 时不截断
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	limit := n.N
	if limit <= 0 && rctx != nil {
		limit = rctx.N
	}
	if limit <= 0 || len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
