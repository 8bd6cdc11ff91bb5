package rerank

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/utils"
)

// Diversity 按主类型（genres 的第一项）限制同类候选的数量，超出上限的候选被丢弃。
// 只删不排：保留下来的候选仍按距离顺序排列。没有类型的候选不受限制。
//
// 作为自定义 Node 配置在 pipeline 文件中，例如：
//
//	- type: rerank.diversity
//	  config:
//	    max_per_genre: 2
type Diversity struct {
	// MaxPerGenre 每个主类型最多保留的候选数，<= 0 时按 1 处理
	MaxPerGenre int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := n.MaxPerGenre
	if limit <= 0 {
		limit = 1
	}

	counts := make(map[string]int, 16)
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		genre := primaryGenre(it)
		if genre == "" {
			out = append(out, it)
			continue
		}
		if counts[genre] >= limit {
			it.PutLabel("diversity_dropped", utils.Label{Value: genre, Source: n.Name()})
			continue
		}
		counts[genre]++
		out = append(out, it)
	}
	return out, nil
}

func primaryGenre(it *core.Item) string {
	if it.Meta == nil {
		return ""
	}
	switch g := it.Meta[core.MetaGenres].(type) {
	case []string:
		if len(g) > 0 {
			return g[0]
		}
	case string:
		return g
	}
	return ""
}
