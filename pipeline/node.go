package pipeline

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Kind 用于标记 Node 类型，方便观测与按阶段打点。
type Kind string

const (
	KindRecall      Kind = "recall"      // 召回阶段：按相似度取近邻候选
	KindFilter      Kind = "filter"      // 过滤阶段：剔除种子、排除片名等
	KindReRank      Kind = "rerank"      // 重排阶段：去重、截断（只删不排）
	KindPostProcess Kind = "postprocess" // 后处理阶段：补充展示字段
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用"输入 items -> 输出 items"的形态；召回之后的 Node 只能删除或截断，
// 不改变候选的相对顺序（即距离顺序）。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node，供 NodeFactory 与配置驱动使用。
type NodeBuilder func(map[string]any) (Node, error)
