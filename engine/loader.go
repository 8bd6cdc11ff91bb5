package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/conv"
	"github.com/rushteam/movierec/pkg/logging"
	"github.com/rushteam/movierec/pkg/title"
	"github.com/rushteam/movierec/vector"
)

// DefaultGenreSeparator 是目录中类型字段的分隔符（MovieLens 格式 "Action|Comedy"）。
const DefaultGenreSeparator = "|"

// LoadOption 配置 Load。
type LoadOption func(*loadOptions)

type loadOptions struct {
	genreSep string
}

// WithGenreSeparator 覆盖类型字段的分隔符。
func WithGenreSeparator(sep string) LoadOption {
	return func(o *loadOptions) {
		if sep != "" {
			o.genreSep = sep
		}
	}
}

// Load 读取目录与评分数据源并构建只读的 Snapshot。
//
// 两个数据源并发读取，任何一步失败都返回错误且不返回 Snapshot：
//   - 数据源错误：原样包装
//   - 目录或评分为空：EMPTY
//   - 必填字段无法转换（id、评分）：SCHEMA，错误信息包含行号与字段名
//   - 评分矩阵没有任何行：EMPTY
func Load(ctx context.Context, catalog core.CatalogFeed, ratings core.RatingFeed, opts ...LoadOption) (*Snapshot, error) {
	if catalog == nil || ratings == nil {
		return nil, core.NewDomainError(core.ModuleLoader, core.ErrorCodeInvalidInput, "catalog and rating feeds are required")
	}
	o := loadOptions{genreSep: DefaultGenreSeparator}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	var (
		rawMovies  []core.RawMovie
		rawRatings []core.RawRating
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := catalog.Movies(gctx)
		if err != nil {
			return fmt.Errorf("read catalog from %s: %w", catalog.Name(), err)
		}
		rawMovies = rows
		return nil
	})
	g.Go(func() error {
		rows, err := ratings.Ratings(gctx)
		if err != nil {
			return fmt.Errorf("read ratings from %s: %w", ratings.Name(), err)
		}
		rawRatings = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	logging.Info().
		Str("catalog", catalog.Name()).
		Str("ratings", ratings.Name()).
		Int("movie_rows", len(rawMovies)).
		Int("rating_rows", len(rawRatings)).
		Dur("took", time.Since(start)).
		Msg("feeds read")

	if len(rawMovies) == 0 {
		return nil, core.NewDomainError(core.ModuleLoader, core.ErrorCodeEmpty, "catalog feed "+catalog.Name()+" returned no rows")
	}
	if len(rawRatings) == 0 {
		return nil, core.NewDomainError(core.ModuleLoader, core.ErrorCodeEmpty, "rating feed "+ratings.Name()+" returned no rows")
	}

	s := &Snapshot{
		stats: Stats{CatalogSource: catalog.Name(), RatingSource: ratings.Name()},
	}
	if err := s.buildCatalog(rawMovies, o.genreSep); err != nil {
		return nil, err
	}
	if err := s.buildMatrix(rawRatings); err != nil {
		return nil, err
	}
	s.index = vector.NewCosineIndex(s.matrix)

	logging.Info().
		Int("movies", s.stats.Movies).
		Int("rows", s.stats.Rows).
		Int("users", s.stats.Users).
		Int("ratings", s.stats.Ratings).
		Int("duplicate_ratings", s.stats.DuplicateRatings).
		Int("title_collisions", s.stats.TitleCollisions).
		Dur("took", time.Since(start)).
		Msg("snapshot built")
	return s, nil
}

func (s *Snapshot) buildCatalog(rows []core.RawMovie, genreSep string) error {
	s.movies = make([]core.Movie, 0, len(rows))
	s.byID = make(map[int64]int, len(rows))
	s.titles = make(map[string]int64, len(rows))
	s.firstByTitle = make(map[string]int, len(rows))
	s.firstByNormalized = make(map[string]int, len(rows))

	for i, raw := range rows {
		m, err := coerceMovie(i, raw, genreSep)
		if err != nil {
			return err
		}
		if _, dup := s.byID[m.ID]; dup {
			s.stats.DuplicateMovies++
			logging.Warn().Int64("movie_id", m.ID).Int("row", i).Msg("duplicate catalog id, keeping first")
			continue
		}

		idx := len(s.movies)
		s.movies = append(s.movies, m)
		s.byID[m.ID] = idx

		if m.Title != "" {
			if _, ok := s.firstByTitle[m.Title]; !ok {
				s.firstByTitle[m.Title] = idx
			}
		}
		if m.NormalizedTitle == "" {
			continue
		}
		if _, ok := s.firstByNormalized[m.NormalizedTitle]; !ok {
			s.firstByNormalized[m.NormalizedTitle] = idx
		}
		// 同名冲突时后写覆盖
		if prev, ok := s.titles[m.NormalizedTitle]; ok && prev != m.ID {
			s.stats.TitleCollisions++
			logging.Debug().
				Str("title", m.NormalizedTitle).
				Int64("previous", prev).
				Int64("movie_id", m.ID).
				Msg("title index collision")
		}
		s.titles[m.NormalizedTitle] = m.ID
	}
	s.stats.Movies = len(s.movies)
	if s.stats.TitleCollisions > 0 {
		logging.Warn().Int("collisions", s.stats.TitleCollisions).Msg("normalized titles shared by several movies, last one wins")
	}
	return nil
}

func coerceMovie(row int, raw core.RawMovie, genreSep string) (core.Movie, error) {
	id, ok := conv.ToInt64(raw.ID)
	if !ok {
		return core.Movie{}, schemaError("catalog", row, "movie_id", raw.ID)
	}
	displayTitle, ok := conv.ToString(raw.Title)
	if !ok && raw.Title != nil {
		return core.Movie{}, schemaError("catalog", row, "title", raw.Title)
	}
	return core.Movie{
		ID:              id,
		Title:           displayTitle,
		NormalizedTitle: title.Normalize(displayTitle),
		Genres:          conv.ToStringSlice(raw.Genres, genreSep),
		Overview:        conv.ToOptionalString(raw.Overview),
		PosterPath:      conv.ToOptionalString(raw.PosterPath),
	}, nil
}

func (s *Snapshot) buildMatrix(rows []core.RawRating) error {
	b := vector.NewMatrixBuilder()
	users := make(map[int64]struct{})
	for i, raw := range rows {
		ev, err := coerceRating(i, raw)
		if err != nil {
			return err
		}
		if !b.Add(ev.UserID, ev.MovieID, ev.Rating) {
			s.stats.DuplicateRatings++
			continue
		}
		users[ev.UserID] = struct{}{}
		s.stats.Ratings++
	}
	s.matrix = b.Build()
	s.stats.Rows = s.matrix.Rows()
	s.stats.Users = len(users)

	if s.stats.Rows == 0 {
		return core.NewDomainError(core.ModuleLoader, core.ErrorCodeEmpty, "no rated movies")
	}
	if s.stats.DuplicateRatings > 0 {
		logging.Info().Int("duplicates", s.stats.DuplicateRatings).Msg("duplicate (user, movie) ratings dropped, keeping first")
	}
	return nil
}

func coerceRating(row int, raw core.RawRating) (core.RatingEvent, error) {
	user, ok := conv.ToInt64(raw.UserID)
	if !ok {
		return core.RatingEvent{}, schemaError("ratings", row, "user_id", raw.UserID)
	}
	movie, ok := conv.ToInt64(raw.MovieID)
	if !ok {
		return core.RatingEvent{}, schemaError("ratings", row, "movie_id", raw.MovieID)
	}
	rating, ok := conv.ToFloat64(raw.Rating)
	if !ok {
		return core.RatingEvent{}, schemaError("ratings", row, "rating", raw.Rating)
	}
	return core.RatingEvent{UserID: user, MovieID: movie, Rating: rating}, nil
}

func schemaError(feed string, row int, field string, v any) error {
	return core.NewDomainError(core.ModuleLoader, core.ErrorCodeSchema,
		fmt.Sprintf("%s row %d: field %s: cannot convert %v (%T)", feed, row, field, v, v))
}
