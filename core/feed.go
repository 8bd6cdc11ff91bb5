package core

import "context"

// CatalogFeed 是电影目录数据源的领域接口。
//
// 实现：
//   - feed.Static（内存）
//   - feed.StoreFeed（core.Store 中的 JSON，Memory / Redis）
//   - feed.SQLFeed（DuckDB，或通过 sqlite_scanner 挂载的 SQLite）
//   - feed.MongoFeed（MongoDB）
//
// 返回的行顺序即目录顺序，加载器按此顺序构建片名索引与自动补全列表。
type CatalogFeed interface {
	Name() string
	Movies(ctx context.Context) ([]RawMovie, error)
}

// RatingFeed 是评分数据源的领域接口。
// 返回顺序决定 (user, movie) 去重时保留哪一条（先出现者），也决定矩阵行/列的编号。
type RatingFeed interface {
	Name() string
	Ratings(ctx context.Context) ([]RawRating, error)
}
