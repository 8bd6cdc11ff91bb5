package feed

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	// DuckDB 驱动：本地表、挂载的 SQLite 数据库与 CSV 文件都经它读取
	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/rushteam/movierec/core"
)

// SQLFeed 通过 DuckDB 读取目录与评分。
//
// 期望的表结构（列名固定，多余列忽略）：
//   - movies(movie_id, title, genres, overview, poster_path)
//   - ratings(user_id, movie_id, rating)
//
// 行顺序沿用 DuckDB 的插入顺序（preserve_insertion_order 默认开启）。
type SQLFeed struct {
	db           *sql.DB
	name         string
	moviesTable  string
	ratingsTable string
	detach       string
}

// SQLOption 配置 SQLFeed。
type SQLOption func(*SQLFeed)

// WithTables 覆盖默认表名 movies / ratings。
func WithTables(movies, ratings string) SQLOption {
	return func(f *SQLFeed) {
		if movies != "" {
			f.moviesTable = movies
		}
		if ratings != "" {
			f.ratingsTable = ratings
		}
	}
}

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

func newSQLFeed(db *sql.DB, name string, opts []SQLOption) (*SQLFeed, error) {
	f := &SQLFeed{db: db, name: name, moviesTable: "movies", ratingsTable: "ratings"}
	for _, opt := range opts {
		opt(f)
	}
	for _, table := range []string{f.moviesTable, f.ratingsTable} {
		if !identRegex.MatchString(table) {
			return nil, core.NewDomainError(core.ModuleFeed, core.ErrorCodeInvalidInput, "invalid table name: "+table)
		}
	}
	return f, nil
}

// NewSQLFeed 基于已打开的 DuckDB 连接创建数据源（测试或共享连接时使用）。
func NewSQLFeed(db *sql.DB, opts ...SQLOption) (*SQLFeed, error) {
	return newSQLFeed(db, "duckdb", opts)
}

// OpenDuckDB 打开 DuckDB 数据库文件（dsn 为空时为内存库）并校验表存在。
func OpenDuckDB(ctx context.Context, dsn string, opts ...SQLOption) (*SQLFeed, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "open duckdb %q", dsn)
	}
	f, err := newSQLFeed(db, "duckdb", opts)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	if err := f.verifyTables(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return f, nil
}

// OpenSQLite 通过 DuckDB 的 sqlite_scanner 扩展挂载 SQLite 数据库（例如 movielens.db）。
func OpenSQLite(ctx context.Context, path string, opts ...SQLOption) (*SQLFeed, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "open duckdb")
	}
	if err := loadSQLiteExtension(ctx, db); err != nil {
		db.Close() //nolint:errcheck
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "load sqlite extension")
	}
	attachCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	attach := fmt.Sprintf("ATTACH %s AS %s (TYPE sqlite, READ_ONLY)", quoteLiteral(path), sqliteCatalog)
	if _, err := db.ExecContext(attachCtx, attach); err != nil {
		db.Close() //nolint:errcheck
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "attach sqlite %s", path)
	}

	f, err := newSQLFeed(db, "sqlite:"+path, opts)
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	// USE 只作用于单个连接，连接池下改为显式限定 catalog
	f.moviesTable = qualify(sqliteCatalog, f.moviesTable)
	f.ratingsTable = qualify(sqliteCatalog, f.ratingsTable)
	f.detach = sqliteCatalog
	if err := f.verifyTables(ctx); err != nil {
		f.Close() //nolint:errcheck
		return nil, err
	}
	return f, nil
}

// OpenCSV 用 read_csv_auto 把 MovieLens 风格的 CSV 注册为视图：
//   - movies.csv: movieId,title,genres[,overview,poster_path]
//   - ratings.csv: userId,movieId,rating[,timestamp]
func OpenCSV(ctx context.Context, moviesPath, ratingsPath string) (*SQLFeed, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "open duckdb")
	}
	stmts := []string{
		fmt.Sprintf(`CREATE VIEW movies_raw AS SELECT * FROM read_csv_auto(%s, header=true)`, quoteLiteral(moviesPath)),
		fmt.Sprintf(`CREATE VIEW ratings AS SELECT userId AS user_id, movieId AS movie_id, rating FROM read_csv_auto(%s, header=true)`, quoteLiteral(ratingsPath)),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close() //nolint:errcheck
			return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "register csv view")
		}
	}
	// overview / poster_path 在 MovieLens 原始 CSV 中不存在，缺失时补 NULL
	moviesView := `CREATE VIEW movies AS SELECT movieId AS movie_id, title, genres, NULL AS overview, NULL AS poster_path FROM movies_raw`
	hasExtra, err := columnExists(ctx, db, "movies_raw", "overview")
	if err != nil {
		db.Close() //nolint:errcheck
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "inspect movies csv")
	}
	if hasExtra {
		moviesView = `CREATE VIEW movies AS SELECT movieId AS movie_id, title, genres, overview, poster_path FROM movies_raw`
	}
	if _, err := db.ExecContext(ctx, moviesView); err != nil {
		db.Close() //nolint:errcheck
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "register movies view")
	}
	return newSQLFeed(db, "csv:"+moviesPath, nil)
}

func loadSQLiteExtension(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "INSTALL sqlite;"); err != nil {
		// 离线环境下扩展可能已预装，直接尝试 LOAD
		if _, loadErr := db.ExecContext(ctx, "LOAD sqlite;"); loadErr != nil {
			return fmt.Errorf("install: %w, load: %w", err, loadErr)
		}
		return nil
	}
	_, err := db.ExecContext(ctx, "LOAD sqlite;")
	return err
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM information_schema.columns WHERE table_name = ? AND column_name = ?",
		table, column,
	).Scan(&count)
	return count > 0, err
}

func (f *SQLFeed) verifyTables(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, table := range []string{f.moviesTable, f.ratingsTable} {
		name := table
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		var count int
		err := f.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = ?",
			name,
		).Scan(&count)
		if err != nil {
			return core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "check table %s", table)
		}
		if count == 0 {
			return core.NewDomainError(core.ModuleFeed, core.ErrorCodeSchema, "table not found: "+table)
		}
	}
	return nil
}

func (f *SQLFeed) Name() string { return f.name }

func (f *SQLFeed) Movies(ctx context.Context) ([]core.RawMovie, error) {
	query := "SELECT movie_id, title, genres, overview, poster_path FROM " + f.moviesTable
	rows, err := f.db.QueryContext(ctx, query)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "query %s", f.moviesTable)
	}
	defer rows.Close()

	var out []core.RawMovie
	for rows.Next() {
		var m core.RawMovie
		if err := rows.Scan(&m.ID, &m.Title, &m.Genres, &m.Overview, &m.PosterPath); err != nil {
			return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "scan %s row %d", f.moviesTable, len(out))
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "iterate %s", f.moviesTable)
	}
	return out, nil
}

func (f *SQLFeed) Ratings(ctx context.Context) ([]core.RawRating, error) {
	query := "SELECT user_id, movie_id, rating FROM " + f.ratingsTable
	rows, err := f.db.QueryContext(ctx, query)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "query %s", f.ratingsTable)
	}
	defer rows.Close()

	var out []core.RawRating
	for rows.Next() {
		var r core.RawRating
		if err := rows.Scan(&r.UserID, &r.MovieID, &r.Rating); err != nil {
			return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeSchema, err, "scan %s row %d", f.ratingsTable, len(out))
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, core.WrapDomainError(core.ModuleFeed, core.ErrorCodeUnavailable, err, "iterate %s", f.ratingsTable)
	}
	return out, nil
}

// DB 返回底层连接。
func (f *SQLFeed) DB() *sql.DB { return f.db }

func (f *SQLFeed) Close() error {
	if f.detach != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		f.db.ExecContext(ctx, "DETACH DATABASE IF EXISTS "+f.detach) //nolint:errcheck
	}
	return f.db.Close()
}

// sqliteCatalog 是挂载 SQLite 数据库时使用的 catalog 名。
const sqliteCatalog = "movielens"

func qualify(catalog, table string) string {
	if strings.Contains(table, ".") {
		return table
	}
	return catalog + "." + table
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

var _ Source = (*SQLFeed)(nil)
