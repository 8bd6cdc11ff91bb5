package core

// EngineConfig 是推荐引擎的配置接口，用于提供默认值。
type EngineConfig interface {
	// DefaultN 返回未指定条数时的默认推荐条数
	DefaultN() int

	// OverFetchMargin 返回召回时在 n + 排除数之外额外多取的近邻数
	OverFetchMargin() int

	// OverviewPlaceholder 返回简介缺失时的占位文本
	OverviewPlaceholder() string
}

// MinOverFetchMargin 是多取近邻数的下限：排除与去重会丢弃部分候选，
// 余量过小时结果会明显少于 n。
const MinOverFetchMargin = 20

// DefaultEngineConfig 是默认的引擎配置实现。
type DefaultEngineConfig struct{}

func (c *DefaultEngineConfig) DefaultN() int {
	return 5
}

func (c *DefaultEngineConfig) OverFetchMargin() int {
	return 25
}

func (c *DefaultEngineConfig) OverviewPlaceholder() string {
	return "No description available."
}
