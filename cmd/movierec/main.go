// movierec 加载目录与评分、构建相似度索引，然后提供 HTTP 服务；
// 指定 -title 时只输出一次推荐（JSON）后退出。
//
//	movierec -config movierec.yaml
//	movierec -config movierec.yaml -title "Heat (1995)" -n 10 -exclude "Ronin (1998)"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/rushteam/movierec/config"
	_ "github.com/rushteam/movierec/config/builders"
	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/engine"
	"github.com/rushteam/movierec/feed"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/server"
	"github.com/rushteam/movierec/store"
)

// stringList 收集可重复的 flag。
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(v string) error { *l = append(*l, v); return nil }

func main() {
	var (
		configPath = flag.String("config", "", "config file (yaml)")
		seed       = flag.String("title", "", "recommend for this title and exit")
		n          = flag.Int("n", 0, "number of recommendations (default engine.default_n)")
		explain    = flag.Bool("explain", false, "with -title, print candidates with distance and labels")
		exclude    stringList
	)
	flag.Var(&exclude, "exclude", "title to exclude (repeatable)")
	flag.Parse()

	if err := run(*configPath, *seed, *n, exclude, *explain); err != nil {
		logging.Error().Err(err).Msg("movierec failed")
		os.Exit(1)
	}
}

func run(configPath, seed string, n int, exclude []string, explain bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}

	if seed != "" {
		if n <= 0 {
			n = eng.DefaultN()
		}
		return printRecommendations(ctx, eng, seed, n, exclude, explain)
	}
	return serve(ctx, cfg, eng)
}

func buildEngine(ctx context.Context, cfg *config.AppConfig) (*engine.Engine, error) {
	src, err := feed.Open(ctx, cfg.Feed)
	if err != nil {
		return nil, err
	}
	// 快照构建完成后不再读取数据源
	defer src.Close()

	snap, err := engine.Load(ctx, src, src, engine.WithGenreSeparator(cfg.Engine.GenreSeparator))
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithConfig(&cfg.Engine),
		engine.WithCandidateFilter(cfg.Engine.CandidateFilter),
		engine.WithBlockedTitles(cfg.Engine.BlockedTitles...),
	}
	if cfg.Engine.PipelineFile != "" {
		stages, err := config.LoadStages(cfg.Engine.PipelineFile)
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithStages(stages...))
	}
	return engine.New(snap, opts...)
}

func printRecommendations(ctx context.Context, eng *engine.Engine, seed string, n int, exclude []string, explain bool) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if explain {
		items, err := eng.Explain(ctx, seed, n, exclude...)
		if err != nil {
			return err
		}
		return enc.Encode(items)
	}
	recs, err := eng.Recommend(ctx, seed, n, exclude...)
	if err != nil {
		return err
	}
	return enc.Encode(struct {
		Movie           core.MovieDetail            `json:"movie"`
		Recommendations []core.RecommendationRecord `json:"recommendations"`
	}{eng.Details(seed), recs})
}

func serve(ctx context.Context, cfg *config.AppConfig, eng *engine.Engine) error {
	opts := server.Options{
		RecommendN: cfg.Server.RecommendN,
		NextN:      cfg.Server.NextN,
		MaxN:       cfg.Server.MaxN,
		CacheTTL:   cfg.Cache.TTL,

		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimit:   cfg.Server.RateLimit,
	}
	if cfg.Cache.Enabled {
		cache, err := store.Open(ctx, cfg.Cache.Store)
		if err != nil {
			return fmt.Errorf("open result cache: %w", err)
		}
		defer cache.Close()
		opts.Cache = cache
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(eng, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Bool("cache", opts.Cache != nil).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
