// Package feed 提供目录与评分数据源（core.CatalogFeed / core.RatingFeed）的实现：
// 内存切片、core.Store 中的 JSON、DuckDB（含挂载 SQLite 与 CSV）以及 MongoDB。
package feed

import (
	"context"

	"github.com/rushteam/movierec/core"
)

// Source 同时提供目录与评分，并持有需要释放的连接。
type Source interface {
	core.CatalogFeed
	core.RatingFeed
	Close() error
}

// Static 是基于内存切片的数据源，用于测试与演示。
type Static struct {
	Catalog []core.RawMovie
	Rows    []core.RawRating

	// Err 非空时两个读取方法都返回此错误，用于模拟数据源故障
	Err error
}

func (s *Static) Name() string { return "static" }

func (s *Static) Movies(_ context.Context) ([]core.RawMovie, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Catalog, nil
}

func (s *Static) Ratings(_ context.Context) ([]core.RawRating, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Rows, nil
}

func (s *Static) Close() error { return nil }

var _ Source = (*Static)(nil)
