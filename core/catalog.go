package core

// MovieCatalog 是按 id 查询目录电影的只读接口，由 engine.Snapshot 实现。
// 召回与展示字段补全只依赖此接口。
type MovieCatalog interface {
	Movie(id int64) (Movie, bool)
}

// RowMapper 把评分矩阵行号映射回 movie id，由 vector.Matrix 实现。
type RowMapper interface {
	MovieAt(row int) (int64, bool)
}
