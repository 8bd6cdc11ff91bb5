package core

import "github.com/rushteam/movierec/pkg/utils"

// Item 是推荐链路中的统一承载结构：候选电影 + 分数 + 元信息 + 标签。
// 链路内的顺序即距离顺序（近者在前），各 Node 只删除或截断，不重新排序。
// Score 为余弦相似度（1 - distance），仅用于解释。
type Item struct {
	ID       int64                  `json:"id"`  // movie id
	Row      int                    `json:"row"` // 评分矩阵行号
	Distance float64                `json:"distance"`
	Score    float64                `json:"score"`
	Meta     map[string]any         `json:"meta,omitempty"`
	Labels   map[string]utils.Label `json:"labels,omitempty"`
}

// Meta 常用 key
const (
	MetaTitle           = "title"
	MetaNormalizedTitle = "normalized_title"
	MetaOverview        = "overview"
	MetaPosterPath      = "poster_path"
	MetaGenres          = "genres"
)

func NewItem(id int64) *Item {
	return &Item{
		ID:     id,
		Meta:   make(map[string]any),
		Labels: make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// MetaString 读取字符串类型的 Meta。
func (it *Item) MetaString(key string) string {
	if it.Meta == nil {
		return ""
	}
	s, _ := it.Meta[key].(string)
	return s
}
