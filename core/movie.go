package core

// Movie 是目录中的一部电影。
// NormalizedTitle 由加载器在构建快照时派生，Overview / PosterPath 可为空。
type Movie struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	NormalizedTitle string   `json:"-"`
	Genres          []string `json:"genres"`
	Overview        *string  `json:"overview"`
	PosterPath      *string  `json:"poster_path"`
}

// RatingEvent 是一条 (user, movie, rating) 评分记录。
type RatingEvent struct {
	UserID  int64
	MovieID int64
	Rating  float64
}

// RawMovie 是数据源返回的未转换目录行。
// 字段保持数据源原始类型（DuckDB 扫描值、BSON、JSON 解码值），由加载器统一转换。
type RawMovie struct {
	ID         any `json:"movie_id" bson:"movieId"`
	Title      any `json:"title" bson:"title"`
	Genres     any `json:"genres" bson:"genres"`
	Overview   any `json:"overview" bson:"overview"`
	PosterPath any `json:"poster_path" bson:"posterPath"`
}

// RawRating 是数据源返回的未转换评分行。
type RawRating struct {
	UserID  any `json:"user_id" bson:"userId"`
	MovieID any `json:"movie_id" bson:"movieId"`
	Rating  any `json:"rating" bson:"rating"`
}

// RecommendationRecord 是返回给调用方的一条推荐。
// Overview 缺失时填充占位文本，PosterPath 可为空。
type RecommendationRecord struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	Overview   string  `json:"overview"`
	PosterPath *string `json:"poster_path"`
}

// MovieDetail 是按片名查询的展示信息；未解析到电影时只回填请求的片名。
type MovieDetail struct {
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path"`
	Overview   *string `json:"overview"`
}

// TitleEntry 是自动补全用的 (片名, 海报) 对。
type TitleEntry struct {
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path"`
}
