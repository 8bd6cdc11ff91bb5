package rerank

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/utils"
)

// TitleDedup 按归一化片名去重：目录中不同 id 的同名电影只保留首个（距离最近者）。
// 去重键来源优先级：
// - label[LabelKey].Value（设置了 LabelKey 时）
// - meta["normalized_title"]
// 没有去重键的候选原样保留。
type TitleDedup struct {
	LabelKey string
}

func (n *TitleDedup) Name() string {
	return "rerank.title_dedup"
}

func (n *TitleDedup) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TitleDedup) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]*core.Item, 0, len(items))

	for _, it := range items {
		if it == nil {
			continue
		}

		key := ""
		if n.LabelKey != "" && it.Labels != nil {
			if lbl, ok := it.Labels[n.LabelKey]; ok {
				key = lbl.Value
			}
		}
		if key == "" {
			key = it.MetaString(core.MetaNormalizedTitle)
		}

		if key == "" {
			out = append(out, it)
			continue
		}
		if _, dup := seen[key]; dup {
			it.PutLabel("deduped", utils.Label{Value: key, Source: "rerank"})
			continue
		}
		seen[key] = struct{}{}
		out = append(out, it)
	}

	return out, nil
}
