// Package engine 是电影相似推荐的入口：Load 构建只读快照，Engine 在快照上
// 运行 召回 → 过滤 → 重排 → 展示字段补全 的 Pipeline。
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/feature"
	"github.com/rushteam/movierec/filter"
	"github.com/rushteam/movierec/pipeline"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/pkg/title"
	"github.com/rushteam/movierec/recall"
	"github.com/rushteam/movierec/rerank"
)

// Engine 在一个 Snapshot 上提供推荐与目录查询。
// 构建后只读，Recommend / Details / AllTitles / Resolve 可并发调用，无需加锁。
type Engine struct {
	snap     *Snapshot
	cfg      core.EngineConfig
	pipeline *pipeline.Pipeline
}

// Option 配置 Engine。
type Option func(*options)

type options struct {
	cfg             core.EngineConfig
	margin          int
	candidateFilter string
	blockedTitles   []string
	stages          []pipeline.Node
}

// WithConfig 设置默认条数、多取余量与简介占位文本。
func WithConfig(cfg core.EngineConfig) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithMargin 覆盖召回多取的近邻数，低于 core.MinOverFetchMargin 时按下限处理。
func WithMargin(margin int) Option {
	return func(o *options) { o.margin = margin }
}

// WithCandidateFilter 设置 CEL 候选过滤表达式，表达式为 false 的候选被丢弃。
func WithCandidateFilter(expr string) Option {
	return func(o *options) { o.candidateFilter = strings.TrimSpace(expr) }
}

// WithBlockedTitles 设置常驻的屏蔽片名，任何请求都不会返回。
func WithBlockedTitles(titles ...string) Option {
	return func(o *options) { o.blockedTitles = append(o.blockedTitles, titles...) }
}

// WithStages 插入自定义 Node（例如由 pipeline 配置文件构建）。
// 自定义 Node 只看到排除过滤与同名去重之后的候选，之后总会执行 Top-N 截断。
func WithStages(nodes ...pipeline.Node) Option {
	return func(o *options) { o.stages = append(o.stages, nodes...) }
}

// New 在快照上构建 Engine，Pipeline 只构建一次。
func New(snap *Snapshot, opts ...Option) (*Engine, error) {
	if snap == nil {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "snapshot is required")
	}
	o := options{cfg: &core.DefaultEngineConfig{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.margin <= 0 {
		o.margin = o.cfg.OverFetchMargin()
	}

	filters := []filter.Filter{filter.NewTitleExcludeFilter(o.blockedTitles)}
	if o.candidateFilter != "" {
		f, err := filter.NewExprFilter(o.candidateFilter)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, err, "candidate filter")
		}
		filters = append(filters, f)
	}

	nodes := []pipeline.Node{
		&recall.SimilarItems{
			Index:   snap.index,
			Rows:    snap.matrix,
			Catalog: snap,
			Margin:  o.margin,
		},
	}
	nodes = append(nodes,
		&filter.FilterNode{Filters: filters},
		&rerank.TitleDedup{},
	)
	nodes = append(nodes, o.stages...)
	nodes = append(nodes,
		&rerank.TopNNode{},
		&feature.EnrichNode{Catalog: snap, OverviewPlaceholder: o.cfg.OverviewPlaceholder()},
	)

	e := &Engine{
		snap:     snap,
		cfg:      o.cfg,
		pipeline: &pipeline.Pipeline{Nodes: nodes},
	}
	logging.Info().
		Strs("pipeline", e.pipeline.Names()).
		Int("margin", o.margin).
		Str("candidate_filter", o.candidateFilter).
		Msg("engine ready")
	return e, nil
}

// Snapshot 返回 Engine 使用的快照。
func (e *Engine) Snapshot() *Snapshot { return e.snap }

// Stats 返回快照的加载统计。
func (e *Engine) Stats() Stats { return e.snap.stats }

// DefaultN 返回未指定条数时的默认推荐条数。
func (e *Engine) DefaultN() int { return e.cfg.DefaultN() }

// Recommend 返回与 seedTitle 最相似的至多 n 部电影，按距离升序。
//
// 结果不包含种子电影，也不包含 exclude 中的任何片名（均按归一化片名比较），
// 同名电影只保留距离最近的一部。种子为空、n <= 0、片名无法解析或种子没有评分时
// 返回空列表。唯一的错误是索引内部不一致（INVALID_INPUT）。
func (e *Engine) Recommend(ctx context.Context, seedTitle string, n int, exclude ...string) ([]core.RecommendationRecord, error) {
	items, err := e.Explain(ctx, seedTitle, n, exclude...)
	if err != nil {
		return nil, err
	}
	out := make([]core.RecommendationRecord, 0, len(items))
	for _, it := range items {
		out = append(out, feature.Record(it))
	}
	return out, nil
}

// Explain 与 Recommend 相同，但返回带 Label、距离与分数的候选，用于调试与解释。
func (e *Engine) Explain(ctx context.Context, seedTitle string, n int, exclude ...string) ([]*core.Item, error) {
	rctx, ok := e.requestContext(seedTitle, n, exclude)
	if !ok {
		return []*core.Item{}, nil
	}
	items, err := e.pipeline.Run(ctx, rctx, nil)
	if err != nil {
		return nil, fmt.Errorf("recommend %q: %w", seedTitle, err)
	}
	if items == nil {
		items = []*core.Item{}
	}
	logging.Ctx(ctx).Debug().
		Str("seed", rctx.SeedNormalized).
		Int64("seed_id", rctx.SeedID).
		Int("n", n).
		Int("excluded", len(rctx.Exclude)).
		Int("results", len(items)).
		Msg("recommend")
	return items, nil
}

func (e *Engine) requestContext(seedTitle string, n int, exclude []string) (*core.RecommendContext, bool) {
	if n <= 0 {
		return nil, false
	}
	seed := title.Normalize(seedTitle)
	if seed == "" {
		return nil, false
	}
	id, ok := e.snap.titles[seed]
	if !ok {
		return nil, false
	}
	row, ok := e.snap.RowOf(id)
	if !ok {
		return nil, false
	}

	excl := make(map[string]struct{}, len(exclude)+1)
	for _, t := range exclude {
		if nt := title.Normalize(t); nt != "" {
			excl[nt] = struct{}{}
		}
	}
	excl[seed] = struct{}{}

	return &core.RecommendContext{
		SeedTitle:      seedTitle,
		SeedNormalized: seed,
		SeedID:         id,
		SeedRow:        row,
		N:              n,
		Exclude:        excl,
	}, true
}

// Details 返回片名对应的展示信息：先按展示片名精确匹配，再按归一化片名匹配首个目录行；
// 都未命中时返回请求的片名，其余字段为空。
func (e *Engine) Details(t string) core.MovieDetail {
	m, ok := e.snap.lookupDetail(t)
	if !ok {
		return core.MovieDetail{Title: t}
	}
	return core.MovieDetail{
		Title:      m.Title,
		PosterPath: m.PosterPath,
		Overview:   m.Overview,
	}
}

// AllTitles 返回目录顺序的 (片名, 海报) 列表，片名为空的行被跳过。
func (e *Engine) AllTitles() []core.TitleEntry {
	out := make([]core.TitleEntry, 0, len(e.snap.movies))
	for _, m := range e.snap.movies {
		if m.Title == "" {
			continue
		}
		out = append(out, core.TitleEntry{Title: m.Title, PosterPath: m.PosterPath})
	}
	return out
}

// Resolve 把片名解析为 movie id。
func (e *Engine) Resolve(t string) (int64, bool) {
	return e.snap.Resolve(t)
}

// Movie 按 id 返回完整的目录条目（含类型）。
func (e *Engine) Movie(id int64) (core.Movie, bool) {
	return e.snap.Movie(id)
}
