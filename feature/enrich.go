package feature

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/utils"
)

// EnrichNode 是展示字段补全节点，位于 Pipeline 末尾。
// 从目录中读取候选的片名、简介、海报写入 item.Meta：
//   - title：目录展示片名；目录中不存在或片名为空的候选被丢弃
//   - overview：简介为空时使用 OverviewPlaceholder
//   - poster_path：*string，可为 nil
//
// 不改变候选顺序。
type EnrichNode struct {
	Catalog core.MovieCatalog

	// OverviewPlaceholder 简介缺失时的占位文本，为空时使用 DefaultOverviewPlaceholder
	OverviewPlaceholder string
}

// DefaultOverviewPlaceholder 是默认的简介占位文本。
const DefaultOverviewPlaceholder = "No description available."

func (n *EnrichNode) Name() string {
	return "feature.enrich"
}

func (n *EnrichNode) Kind() pipeline.Kind {
	return pipeline.KindPostProcess
}

func (n *EnrichNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Catalog == nil || len(items) == 0 {
		return items, nil
	}

	placeholder := n.OverviewPlaceholder
	if placeholder == "" {
		placeholder = DefaultOverviewPlaceholder
	}

	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		movie, ok := n.Catalog.Movie(it.ID)
		if !ok || movie.Title == "" {
			continue
		}

		overview := placeholder
		source := "placeholder"
		if movie.Overview != nil && *movie.Overview != "" {
			overview = *movie.Overview
			source = "catalog"
		}
		if it.Meta == nil {
			it.Meta = make(map[string]any, 3)
		}
		it.Meta[core.MetaTitle] = movie.Title
		it.Meta[core.MetaOverview] = overview
		it.Meta[core.MetaPosterPath] = movie.PosterPath
		it.PutLabel("overview_source", utils.Label{Value: source, Source: "postprocess"})
		out = append(out, it)
	}
	return out, nil
}

// Record 把补全后的候选转换为对外的推荐记录。
func Record(it *core.Item) core.RecommendationRecord {
	rec := core.RecommendationRecord{
		ID:       it.ID,
		Title:    it.MetaString(core.MetaTitle),
		Overview: it.MetaString(core.MetaOverview),
	}
	if p, ok := it.Meta[core.MetaPosterPath].(*string); ok {
		rec.PosterPath = p
	}
	return rec
}
