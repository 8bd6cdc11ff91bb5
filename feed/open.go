package feed

import (
	"context"
	"fmt"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/store"
)

// Config 描述启动时使用的数据源。
type Config struct {
	// Kind 数据源类型：duckdb / sqlite / csv / mongo / store
	Kind string `koanf:"kind" validate:"required,oneof=duckdb sqlite csv mongo store"`

	// DuckDB 数据库文件（kind=duckdb），为空时为内存库
	DSN string `koanf:"dsn"`

	// SQLitePath 是 SQLite 数据库文件（kind=sqlite）
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=Kind sqlite"`

	// MoviesCSV / RatingsCSV 是 CSV 文件（kind=csv）
	MoviesCSV  string `koanf:"movies_csv" validate:"required_if=Kind csv"`
	RatingsCSV string `koanf:"ratings_csv" validate:"required_if=Kind csv"`

	// MoviesTable / RatingsTable 覆盖默认表名（kind=duckdb / sqlite）
	MoviesTable  string `koanf:"movies_table"`
	RatingsTable string `koanf:"ratings_table"`

	Mongo MongoConfig `koanf:"mongo"`

	// Store / KeyPrefix 用于 kind=store
	Store     store.Config `koanf:"store"`
	KeyPrefix string       `koanf:"key_prefix"`
}

// Open 按配置打开数据源，调用方负责 Close。
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Kind {
	case "duckdb":
		f, err := OpenDuckDB(ctx, cfg.DSN, WithTables(cfg.MoviesTable, cfg.RatingsTable))
		if err != nil {
			return nil, fmt.Errorf("open duckdb feed: %w", err)
		}
		return f, nil
	case "sqlite":
		f, err := OpenSQLite(ctx, cfg.SQLitePath, WithTables(cfg.MoviesTable, cfg.RatingsTable))
		if err != nil {
			return nil, fmt.Errorf("open sqlite feed: %w", err)
		}
		return f, nil
	case "csv":
		f, err := OpenCSV(ctx, cfg.MoviesCSV, cfg.RatingsCSV)
		if err != nil {
			return nil, fmt.Errorf("open csv feed: %w", err)
		}
		return f, nil
	case "mongo":
		f, err := OpenMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("open mongo feed: %w", err)
		}
		return f, nil
	case "store":
		s, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("open feed store: %w", err)
		}
		return NewStoreFeed(s, cfg.KeyPrefix), nil
	default:
		return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeNotSupported, "unsupported feed kind: "+cfg.Kind)
	}
}
