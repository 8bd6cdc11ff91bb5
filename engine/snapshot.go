package engine

import (
	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/title"
	"github.com/rushteam/movierec/vector"
)

// Snapshot 是一次加载的全部只读数据：目录、片名索引、评分矩阵与近邻索引。
// 由 Load 一次性构建，之后不再修改，可被任意数量的请求并发读取。
type Snapshot struct {
	movies []core.Movie     // 目录顺序，重复 id 只保留首条
	byID   map[int64]int    // movie id → movies 下标
	titles map[string]int64 // 归一化片名 → movie id，后写覆盖

	// Details 查询用：展示片名 / 归一化片名 → 首个目录下标
	firstByTitle      map[string]int
	firstByNormalized map[string]int

	matrix *vector.Matrix
	index  *vector.CosineIndex

	stats Stats
}

// Stats 记录加载过程中的计数，用于日志与健康检查。
type Stats struct {
	CatalogSource    string `json:"catalog_source"`
	RatingSource     string `json:"rating_source"`
	Movies           int    `json:"movies"`
	DuplicateMovies  int    `json:"duplicate_movies"`
	TitleCollisions  int    `json:"title_collisions"`
	Ratings          int    `json:"ratings"`
	DuplicateRatings int    `json:"duplicate_ratings"`
	Rows             int    `json:"rows"`
	Users            int    `json:"users"`
}

// Movie 按 id 返回目录电影，实现 core.MovieCatalog。
func (s *Snapshot) Movie(id int64) (core.Movie, bool) {
	i, ok := s.byID[id]
	if !ok {
		return core.Movie{}, false
	}
	return s.movies[i], true
}

// Resolve 把任意写法的片名解析为 movie id。
func (s *Snapshot) Resolve(t string) (int64, bool) {
	n := title.Normalize(t)
	if n == "" {
		return 0, false
	}
	id, ok := s.titles[n]
	return id, ok
}

// RowOf 返回电影在评分矩阵中的行号；没有评分的电影返回 false。
func (s *Snapshot) RowOf(id int64) (int, bool) {
	return s.matrix.RowOf(id)
}

// Movies 返回目录（目录顺序）。返回的切片不可修改。
func (s *Snapshot) Movies() []core.Movie { return s.movies }

// Matrix 返回评分矩阵。
func (s *Snapshot) Matrix() *vector.Matrix { return s.matrix }

// Index 返回近邻索引。
func (s *Snapshot) Index() core.NeighborIndex { return s.index }

// Stats 返回加载统计。
func (s *Snapshot) Stats() Stats { return s.stats }

// lookupDetail 先按展示片名精确匹配，再按归一化片名匹配首个目录行。
func (s *Snapshot) lookupDetail(t string) (core.Movie, bool) {
	if i, ok := s.firstByTitle[t]; ok {
		return s.movies[i], true
	}
	n := title.Normalize(t)
	if n == "" {
		return core.Movie{}, false
	}
	if i, ok := s.firstByNormalized[n]; ok {
		return s.movies[i], true
	}
	return core.Movie{}, false
}

var _ core.MovieCatalog = (*Snapshot)(nil)
