package vector

import (
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/movierec/core"
)

// CosineIndex 是基于 Matrix 的精确暴力余弦近邻索引。
//
// 特点：
//   - 距离 = 1 - a·b / (|a||b|)，裁剪到 [0, 2]；任一方为零向量时距离为 1
//   - 点积只在共同评分的行上累加（经 CSC 列表），其余行距离必为 1
//   - 构建后只读，Neighbors 可并发调用
type CosineIndex struct {
	m     *Matrix
	norms []float64
}

// NewCosineIndex 在 Matrix 上拟合索引（预计算每行的 L2 范数）。
func NewCosineIndex(m *Matrix) *CosineIndex {
	norms := make([]float64, m.Rows())
	for r := range norms {
		_, vals := m.Row(r)
		var sum float64
		for _, v := range vals {
			sum += v * v
		}
		norms[r] = math.Sqrt(sum)
	}
	return &CosineIndex{m: m, norms: norms}
}

func (x *CosineIndex) Rows() int { return x.m.Rows() }

func (x *CosineIndex) Metric() core.MetricType { return core.MetricCosine }

// Matrix 返回底层矩阵。
func (x *CosineIndex) Matrix() *Matrix { return x.m }

// Neighbors 返回 row 的 k 个最近邻（不含 row 本身），距离升序，距离相同按行号升序。
func (x *CosineIndex) Neighbors(row, k int) ([]core.Neighbor, error) {
	n := x.m.Rows()
	if row < 0 || row >= n {
		return nil, fmt.Errorf("neighbors of row %d (rows=%d): %w", row, n, core.ErrInvalidRow)
	}
	if n <= 1 {
		return []core.Neighbor{}, nil
	}
	if k < 1 {
		k = 1
	}
	if k > n-1 {
		k = n - 1
	}

	dots := make([]float64, n)
	qNorm := x.norms[row]
	if qNorm > 0 {
		cols, vals := x.m.Row(row)
		for i, c := range cols {
			qv := vals[i]
			rows, rvals := x.m.column(c)
			for j, r := range rows {
				dots[r] += qv * rvals[j]
			}
		}
	}

	out := make([]core.Neighbor, 0, n-1)
	for r := 0; r < n; r++ {
		if r == row {
			continue
		}
		out = append(out, core.Neighbor{Row: r, Distance: x.distance(qNorm, x.norms[r], dots[r])})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Row < out[j].Row
	})
	return out[:k], nil
}

func (x *CosineIndex) distance(qNorm, rNorm, dot float64) float64 {
	if qNorm == 0 || rNorm == 0 {
		return 1
	}
	d := 1 - dot/(qNorm*rNorm)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

var _ core.NeighborIndex = (*CosineIndex)(nil)
