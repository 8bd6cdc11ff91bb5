package filter

import (
	"context"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/title"
)

// TitleExcludeFilter 按归一化片名过滤候选。
// 排除集合来自请求上下文（种子片名 + 调用方的排除片名），
// Titles 为常驻的黑名单片名（例如运营下架），加载时归一化。
type TitleExcludeFilter struct {
	blocked map[string]struct{}
}

// NewTitleExcludeFilter 创建一个片名排除过滤器，titles 可为空。
func NewTitleExcludeFilter(titles []string) *TitleExcludeFilter {
	blocked := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		if n := title.Normalize(t); n != "" {
			blocked[n] = struct{}{}
		}
	}
	return &TitleExcludeFilter{blocked: blocked}
}

func (f *TitleExcludeFilter) Name() string {
	return "filter.title_exclude"
}

func (f *TitleExcludeFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	normalized := item.MetaString(core.MetaNormalizedTitle)
	if normalized == "" {
		normalized = title.Normalize(item.MetaString(core.MetaTitle))
	}
	if rctx.IsExcluded(normalized) {
		return true, nil
	}
	if _, ok := f.blocked[normalized]; ok {
		return true, nil
	}
	return false, nil
}
