package recall

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/pkg/utils"
)

// SimilarItems 是基于物品的协同过滤召回源（Item-based CF, i2i）。
//
// 核心思想："被同一批用户以相似方式评分的电影，相互相似"
//
// 算法流程：
//  1. 评分矩阵按电影为行、用户为列（vector.Matrix）
//  2. 对种子电影所在行，在 NeighborIndex 中做精确余弦近邻查询
//  3. 近邻行映射回 movie id，补上目录中的片名信息
//
// 输出顺序即距离顺序（近者在前，距离相同按行号），后续 Node 只删不排。
// 没有目录行或片名为空的近邻直接丢弃，它们无法展示。
//
// 多取的近邻数：
//
//	k = min(rows-1, max(n+1, |exclude| + n + margin))
//
// 排除、去重会丢弃一部分候选，margin 保证剩余候选通常仍够 n 条。
type SimilarItems struct {
	Index   core.NeighborIndex
	Rows    core.RowMapper
	Catalog core.MovieCatalog

	// Margin 多取的近邻数，<=0 时使用 25，且不低于 core.MinOverFetchMargin
	Margin int
}

func (r *SimilarItems) Name() string        { return "recall.i2i" }
func (r *SimilarItems) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，忽略输入 items，直接调用 Recall。
func (r *SimilarItems) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

// Recall 实现 Source 接口。
func (r *SimilarItems) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Index == nil || rctx == nil || rctx.SeedRow < 0 || rctx.N <= 0 {
		return nil, nil
	}

	k := OverFetch(r.Index.Rows(), rctx.N, len(rctx.Exclude), r.margin())
	if k <= 0 {
		return nil, nil
	}
	neighbors, err := r.Index.Neighbors(rctx.SeedRow, k)
	if err != nil {
		return nil, fmt.Errorf("neighbors of row %d: %w", rctx.SeedRow, err)
	}

	metric := string(r.Index.Metric())
	out := make([]*core.Item, 0, len(neighbors))
	dropped := 0
	for _, nb := range neighbors {
		id, ok := r.Rows.MovieAt(nb.Row)
		if !ok {
			dropped++
			continue
		}
		var movie core.Movie
		if r.Catalog != nil {
			movie, ok = r.Catalog.Movie(id)
		}
		if !ok || movie.Title == "" {
			dropped++
			continue
		}

		it := core.NewItem(id)
		it.Row = nb.Row
		it.Distance = nb.Distance
		it.Score = 1 - nb.Distance
		it.Meta[core.MetaTitle] = movie.Title
		it.Meta[core.MetaNormalizedTitle] = movie.NormalizedTitle
		it.Meta[core.MetaGenres] = movie.Genres
		it.PutLabel("recall_source", utils.Label{Value: "i2i", Source: "recall"})
		it.PutLabel("cf_metric", utils.Label{Value: metric, Source: "recall"})
		it.PutLabel("recall_rank", utils.Label{Value: strconv.Itoa(len(out)), Source: "recall"})
		out = append(out, it)
	}

	logging.Ctx(ctx).Debug().
		Str("seed", rctx.SeedNormalized).
		Int("k", k).
		Int("neighbors", len(neighbors)).
		Int("dropped", dropped).
		Msg("i2i recall")
	return out, nil
}

func (r *SimilarItems) margin() int {
	m := r.Margin
	if m <= 0 {
		m = 25
	}
	if m < core.MinOverFetchMargin {
		m = core.MinOverFetchMargin
	}
	return m
}

// OverFetch 计算召回的近邻数 k = min(rows-1, max(n+1, excluded+n+margin))。
// rows <= 1 时返回 0。
func OverFetch(rows, n, excluded, margin int) int {
	if rows <= 1 {
		return 0
	}
	k := excluded + n + margin
	if k < n+1 {
		k = n + 1
	}
	if k > rows-1 {
		k = rows - 1
	}
	return k
}

// I2IRecall 是 SimilarItems 的别名，沿用工业习惯的 i2i 命名。
type I2IRecall = SimilarItems

var (
	_ Source        = (*SimilarItems)(nil)
	_ pipeline.Node = (*SimilarItems)(nil)
)
