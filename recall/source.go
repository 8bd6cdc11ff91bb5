package recall

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Source 表示一个召回源：根据请求上下文生成按相似度排序的候选。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}
