// Package movierec 是基于物品协同过滤（item-item CF）的电影相似推荐。
//
// 设计要点：
// - Snapshot-first: 目录与评分一次加载为只读快照（评分矩阵 + 余弦近邻索引），请求之间不共享可变状态
// - Pipeline-first: 一次推荐 = 召回近邻 → 排除过滤 → 同名去重 → Top-N 截断 → 展示字段补全
// - Labels-first: 每个候选带有召回来源、距离与过滤原因，Explain 可直接输出
//
// 典型用法：
//
//	snap, err := movierec.Load(ctx, src, src)
//	eng, err := movierec.New(snap)
//	recs, err := eng.Recommend(ctx, "Heat (1995)", 5, "Ronin (1998)")
package movierec

import (
	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/engine"
	"github.com/rushteam/movierec/pipeline"
)

// 轻量 facade：便于直接 import "movierec" 使用核心类型。
type (
	Engine               = engine.Engine
	Snapshot             = engine.Snapshot
	Option               = engine.Option
	RecommendationRecord = core.RecommendationRecord
	MovieDetail          = core.MovieDetail
	TitleEntry           = core.TitleEntry
	Movie                = core.Movie
	Pipeline             = pipeline.Pipeline
	Node                 = pipeline.Node
	Kind                 = pipeline.Kind
)

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)

var (
	Load = engine.Load
	New  = engine.New
)
