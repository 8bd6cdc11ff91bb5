package core

// NeighborIndex 是相似度索引的领域接口。
//
// 设计原则：
//   - 定义在领域层（core），由 vector 包实现（vector.CosineIndex）
//   - 召回与引擎只依赖此接口，便于替换度量或实现
//
// 约定：
//   - Neighbors 返回最近的 k 个其他行（不含查询行本身），距离升序，距离相同按行号升序
//   - k 被夹在 [1, Rows()-1]；只有一行时返回空结果
//   - row 越界返回 ErrInvalidRow（INVALID_INPUT），属于调用方编程错误
//   - 构建完成后只读，可并发调用
type NeighborIndex interface {
	// Rows 返回索引中的行数
	Rows() int

	// Metric 返回距离度量
	Metric() MetricType

	// Neighbors 返回 row 的 k 个最近邻
	Neighbors(row, k int) ([]Neighbor, error)
}

// Neighbor 是一条近邻结果。
type Neighbor struct {
	Row      int     // 评分矩阵行号
	Distance float64 // 距离，cosine 下取值 [0, 2]
}

// MetricType 距离度量类型
type MetricType string

const (
	MetricCosine MetricType = "cosine"
)

// ErrInvalidRow 表示查询行号越界。
var ErrInvalidRow = NewDomainError(ModuleIndex, ErrorCodeInvalidInput, "index: row out of range")
