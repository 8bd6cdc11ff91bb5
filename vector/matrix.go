// Package vector 实现电影 × 用户的稀疏评分矩阵与精确余弦近邻索引。
package vector

import "sort"

// Matrix 是只读的稀疏评分矩阵：行 = 电影，列 = 用户，未评分视为 0。
//
// 同时保存两种布局：
//   - CSR（按行）：取一部电影的全部评分
//   - CSC（按列）：取一个用户评过的全部电影，近邻计算只累加共同评分的行
//
// 行号按 movie_id 升序分配，列号按 user_id 升序分配。
type Matrix struct {
	rowMovie []int64
	rowOf    map[int64]int
	cols     int

	rowPtr []int
	colIdx []int
	rowVal []float64

	colPtr []int
	colRow []int
	colVal []float64
}

// Rows 返回行数（有评分的电影数）。
func (m *Matrix) Rows() int { return len(m.rowMovie) }

// Cols 返回列数（用户数）。
func (m *Matrix) Cols() int { return m.cols }

// NNZ 返回非零项数量（去重后的评分数）。
func (m *Matrix) NNZ() int { return len(m.rowVal) }

// RowOf 返回电影对应的行号。
func (m *Matrix) RowOf(movieID int64) (int, bool) {
	row, ok := m.rowOf[movieID]
	return row, ok
}

// MovieAt 返回行号对应的电影 id，越界时返回 (0, false)。
func (m *Matrix) MovieAt(row int) (int64, bool) {
	if row < 0 || row >= len(m.rowMovie) {
		return 0, false
	}
	return m.rowMovie[row], true
}

// Row 返回一行的 (列号, 评分)，按列号升序。返回的切片不可修改。
func (m *Matrix) Row(row int) ([]int, []float64) {
	if row < 0 || row >= len(m.rowMovie) {
		return nil, nil
	}
	lo, hi := m.rowPtr[row], m.rowPtr[row+1]
	return m.colIdx[lo:hi], m.rowVal[lo:hi]
}

func (m *Matrix) column(col int) ([]int, []float64) {
	lo, hi := m.colPtr[col], m.colPtr[col+1]
	return m.colRow[lo:hi], m.colVal[lo:hi]
}

type cell struct {
	col int
	val float64
}

type userRating struct {
	user int64
	val  float64
}

type ratingKey struct {
	user  int64
	movie int64
}

// MatrixBuilder 逐条接收评分并构建 Matrix，非并发安全。
type MatrixBuilder struct {
	byMovie map[int64][]userRating
	users   map[int64]struct{}
	seen    map[ratingKey]struct{}
}

func NewMatrixBuilder() *MatrixBuilder {
	return &MatrixBuilder{
		byMovie: make(map[int64][]userRating),
		users:   make(map[int64]struct{}),
		seen:    make(map[ratingKey]struct{}),
	}
}

// Add 写入一条评分。同一 (user, movie) 只保留第一次出现的评分，重复时返回 false。
func (b *MatrixBuilder) Add(userID, movieID int64, rating float64) bool {
	key := ratingKey{user: userID, movie: movieID}
	if _, dup := b.seen[key]; dup {
		return false
	}
	b.seen[key] = struct{}{}
	b.users[userID] = struct{}{}
	b.byMovie[movieID] = append(b.byMovie[movieID], userRating{user: userID, val: rating})
	return true
}

// Build 生成只读的 Matrix。Build 之后不应再调用 Add。
// 行按 movie_id 升序、列按 user_id 升序分配，与评分流的顺序无关。
func (b *MatrixBuilder) Build() *Matrix {
	rowMovie := sortedIDs(b.byMovie)
	userIDs := sortedIDs(b.users)
	rows := len(rowMovie)
	cols := len(userIDs)

	colOf := make(map[int64]int, cols)
	for c, u := range userIDs {
		colOf[u] = c
	}
	rowOf := make(map[int64]int, rows)
	for r, id := range rowMovie {
		rowOf[id] = r
	}

	m := &Matrix{
		rowMovie: rowMovie,
		rowOf:    rowOf,
		cols:     cols,
		rowPtr:   make([]int, rows+1),
		colPtr:   make([]int, cols+1),
	}

	nnz := len(b.seen)
	m.colIdx = make([]int, 0, nnz)
	m.rowVal = make([]float64, 0, nnz)

	colCount := make([]int, cols)
	for r, id := range rowMovie {
		urs := b.byMovie[id]
		cs := make([]cell, len(urs))
		for i, ur := range urs {
			cs[i] = cell{col: colOf[ur.user], val: ur.val}
		}
		sort.Slice(cs, func(i, j int) bool { return cs[i].col < cs[j].col })
		for _, c := range cs {
			m.colIdx = append(m.colIdx, c.col)
			m.rowVal = append(m.rowVal, c.val)
			colCount[c.col]++
		}
		m.rowPtr[r+1] = len(m.colIdx)
	}

	for c := 0; c < cols; c++ {
		m.colPtr[c+1] = m.colPtr[c] + colCount[c]
	}
	m.colRow = make([]int, nnz)
	m.colVal = make([]float64, nnz)
	next := make([]int, cols)
	copy(next, m.colPtr[:cols])
	// 按行号升序遍历，CSC 中每列的行号天然有序
	for r := 0; r < rows; r++ {
		for i := m.rowPtr[r]; i < m.rowPtr[r+1]; i++ {
			c := m.colIdx[i]
			m.colRow[next[c]] = r
			m.colVal[next[c]] = m.rowVal[i]
			next[c]++
		}
	}
	return m
}

func sortedIDs[V any](set map[int64]V) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
