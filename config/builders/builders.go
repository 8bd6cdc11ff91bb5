// Package builders 注册内置 Node 的配置构建器，由入口以空导入触发：
//
//	import _ "github.com/rushteam/movierec/config/builders"
package builders

import (
	"fmt"

	"github.com/rushteam/movierec/config"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/conv"
	"github.com/rushteam/movierec/rerank"
)

func init() {
	config.Register("filter", BuildFilterNode)
	config.Register("filter.title_exclude", BuildTitleExcludeNode)
	config.Register("filter.expr", BuildExprNode)
	config.Register("rerank.title_dedup", BuildTitleDedupNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
}

// BuildFilterNode 组合多个过滤器：
//
//	type: filter
//	config:
//	  filters:
//	    - {type: title_exclude, titles: ["Cats (2019)"]}
//	    - {type: expr, expr: 'item.score > 0.1'}
func BuildFilterNode(cfg map[string]any) (pipeline.Node, error) {
	filtersConfig, ok := cfg["filters"].([]any)
	if !ok {
		return nil, fmt.Errorf("filters not found or invalid")
	}

	filters := make([]filter.Filter, 0, len(filtersConfig))
	for _, fc := range filtersConfig {
		filterMap, ok := fc.(map[string]any)
		if !ok {
			continue
		}
		f, err := buildFilter(conv.ConfigGet(filterMap, "type", ""), filterMap)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return &filter.FilterNode{Filters: filters}, nil
}

func buildFilter(filterType string, cfg map[string]any) (filter.Filter, error) {
	switch filterType {
	case "title_exclude":
		return filter.NewTitleExcludeFilter(conv.SliceAnyToString(cfg["titles"])), nil
	case "expr":
		expr := conv.ConfigGet(cfg, "expr", "")
		if expr == "" {
			return nil, fmt.Errorf("expr filter requires expr")
		}
		return filter.NewExprFilter(expr)
	default:
		return nil, fmt.Errorf("unknown filter type: %s", filterType)
	}
}

func BuildTitleExcludeNode(cfg map[string]any) (pipeline.Node, error) {
	f, err := buildFilter("title_exclude", cfg)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

func BuildExprNode(cfg map[string]any) (pipeline.Node, error) {
	f, err := buildFilter("expr", cfg)
	if err != nil {
		return nil, err
	}
	return &filter.FilterNode{Filters: []filter.Filter{f}}, nil
}

func BuildTitleDedupNode(cfg map[string]any) (pipeline.Node, error) {
	return &rerank.TitleDedup{LabelKey: conv.ConfigGet(cfg, "label_key", "")}, nil
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt64(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("rerank.topn: n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: int(n)}, nil
}

func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	limit := conv.ConfigGetInt64(cfg, "max_per_genre", 1)
	if limit <= 0 {
		return nil, fmt.Errorf("rerank.diversity: max_per_genre must be > 0, got %d", limit)
	}
	return &rerank.Diversity{MaxPerGenre: int(limit)}, nil
}
