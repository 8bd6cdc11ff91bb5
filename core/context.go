package core

// RecommendContext 承载一次推荐请求的种子电影与排除集，贯穿整个 Pipeline 透传。
// 由 engine 在每次请求时新建，Node 只读。
type RecommendContext struct {
	// SeedTitle 是调用方传入的原始片名
	SeedTitle string

	// SeedNormalized 是归一化后的种子片名（始终包含在 Exclude 中）
	SeedNormalized string

	// SeedID / SeedRow 是解析出的种子电影 id 与评分矩阵行号
	SeedID  int64
	SeedRow int

	// N 是最终返回条数上限
	N int

	// Exclude 是归一化后的排除片名集合
	Exclude map[string]struct{}

	// Params 请求级参数（可被 CEL 表达式读取），例如 client / page
	Params map[string]any
}

// IsExcluded 判断归一化片名是否在排除集中。
func (rctx *RecommendContext) IsExcluded(normalized string) bool {
	if rctx == nil || rctx.Exclude == nil {
		return false
	}
	_, ok := rctx.Exclude[normalized]
	return ok
}
