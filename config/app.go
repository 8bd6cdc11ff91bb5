// Package config 负责应用配置加载（koanf：默认值 → YAML 文件 → 环境变量）
// 与 pipeline Node 的注册表。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/feed"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/store"
)

// EnvPrefix 是环境变量前缀，双下划线表示层级：
// MOVIEREC_FEED__KIND=sqlite → feed.kind
const EnvPrefix = "MOVIEREC_"

// ConfigPathEnvVar 可覆盖配置文件路径。
const ConfigPathEnvVar = "MOVIEREC_CONFIG"

// DefaultConfigPaths 是未指定路径时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"movierec.yaml",
	"movierec.yml",
	"/etc/movierec/config.yaml",
}

// AppConfig 是应用的完整配置。
type AppConfig struct {
	Feed    feed.Config    `koanf:"feed"`
	Engine  EngineConfig   `koanf:"engine"`
	Server  ServerConfig   `koanf:"server"`
	Cache   CacheConfig    `koanf:"cache"`
	Logging logging.Config `koanf:"logging"`
}

// EngineConfig 是推荐引擎配置，实现 core.EngineConfig。
type EngineConfig struct {
	// DefaultLimit 未指定条数时的推荐条数
	DefaultLimit int `koanf:"default_n" validate:"min=1,max=100"`

	// Margin 召回多取的近邻数，低于 20 时按 20 处理
	Margin int `koanf:"margin" validate:"gte=0"`

	// Placeholder 简介缺失时的占位文本
	Placeholder string `koanf:"overview_placeholder"`

	// CandidateFilter CEL 候选过滤表达式，为空时不过滤
	CandidateFilter string `koanf:"candidate_filter"`

	// BlockedTitles 常驻屏蔽的片名（环境变量中以逗号分隔）
	BlockedTitles []string `koanf:"blocked_titles"`

	// PipelineFile 召回之后的自定义 Node（pipeline YAML），可选
	PipelineFile string `koanf:"pipeline_file"`

	// GenreSeparator 目录中类型字段的分隔符
	GenreSeparator string `koanf:"genre_separator"`
}

func (c *EngineConfig) DefaultN() int               { return c.DefaultLimit }
func (c *EngineConfig) OverFetchMargin() int        { return c.Margin }
func (c *EngineConfig) OverviewPlaceholder() string { return c.Placeholder }

var _ core.EngineConfig = (*EngineConfig)(nil)

// ServerConfig 是 HTTP 服务配置。
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RecommendN / NextN 分别是首屏推荐与"换一批"的默认条数
	RecommendN int `koanf:"recommend_n" validate:"min=1"`
	NextN      int `koanf:"next_n" validate:"min=1"`

	// MaxN 单次请求允许的最大条数
	MaxN int `koanf:"max_n" validate:"min=1"`

	// CORSOrigins 允许跨域的来源（环境变量中以逗号分隔），为空时不启用
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimit 每个 IP 每分钟的 /api 请求数，0 表示不限流
	RateLimit int `koanf:"rate_limit" validate:"gte=0"`
}

// CacheConfig 是推荐结果缓存配置。
type CacheConfig struct {
	Enabled bool          `koanf:"enabled"`
	Store   store.Config  `koanf:"store"`
	TTL     time.Duration `koanf:"ttl"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	return &AppConfig{
		Feed: feed.Config{
			Kind:       "sqlite",
			SQLitePath: "movielens.db",
		},
		Engine: EngineConfig{
			DefaultLimit:   5,
			Margin:         25,
			Placeholder:    "No description available.",
			BlockedTitles:  []string{},
			GenreSeparator: "|",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RecommendN:      20,
			NextN:           5,
			MaxN:            100,
			CORSOrigins:     []string{},
		},
		Cache: CacheConfig{
			Enabled: true,
			Store:   store.Config{Kind: "memory"},
			TTL:     10 * time.Minute,
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load 加载配置，优先级：环境变量 > 配置文件 > 默认值。
// path 为空时查找 ConfigPathEnvVar 与 DefaultConfigPaths，都不存在时只用默认值与环境变量。
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &AppConfig{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform: MOVIEREC_CACHE__STORE__ADDR → cache.store.addr
func envTransform(key string) string {
	if key == ConfigPathEnvVar {
		return ""
	}
	key = strings.TrimPrefix(key, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// sliceFields 在环境变量中以逗号分隔。
var sliceFields = []string{
	"engine.blocked_titles",
	"server.cors_origins",
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceFields {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := []string{}
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate 校验配置，错误信息列出所有不合法的字段。
func (c *AppConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
