// Package server 是推荐引擎的 HTTP 接口（chi）：片名列表、相似推荐、
// "换一批"、电影详情，以及健康检查与 Prometheus 指标。
package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/engine"
	"github.com/rushteam/movierec/pkg/logging"
)

// Recommender 是 HTTP 层依赖的引擎能力，*engine.Engine 实现了它。
type Recommender interface {
	Recommend(ctx context.Context, seedTitle string, n int, exclude ...string) ([]core.RecommendationRecord, error)
	Details(title string) core.MovieDetail
	AllTitles() []core.TitleEntry
	Movie(id int64) (core.Movie, bool)
	Stats() engine.Stats
}

var _ Recommender = (*engine.Engine)(nil)

// Options 配置 Server。
type Options struct {
	// RecommendN 是 GET /api/recommendations 的默认条数
	RecommendN int

	// NextN 是 POST /api/recommendations/next 的默认条数
	NextN int

	// MaxN 单次请求的条数上限，超出时截断到上限
	MaxN int

	// Cache 推荐结果缓存，为 nil 时不缓存
	Cache    core.Store
	CacheTTL time.Duration

	// CORSOrigins 允许跨域访问的来源，为空时不启用 CORS
	CORSOrigins []string

	// RateLimit 每个客户端 IP 每分钟允许的 /api 请求数，<= 0 不限流
	RateLimit int
}

// DefaultOptions 返回默认配置：首屏 20 条、换一批 5 条、上限 100。
func DefaultOptions() Options {
	return Options{RecommendN: 20, NextN: 5, MaxN: 100}
}

// Server 实现 http.Handler。
type Server struct {
	rec    Recommender
	opts   Options
	cache  *resultCache
	router chi.Router
}

// New 构建 Server 与路由。
func New(rec Recommender, opts Options) *Server {
	def := DefaultOptions()
	if opts.RecommendN <= 0 {
		opts.RecommendN = def.RecommendN
	}
	if opts.NextN <= 0 {
		opts.NextN = def.NextN
	}
	if opts.MaxN <= 0 {
		opts.MaxN = def.MaxN
	}
	s := &Server{
		rec:   rec,
		opts:  opts,
		cache: newResultCache(opts.Cache, opts.CacheTTL),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics)
	r.Use(accessLog)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", RequestIDHeader},
			ExposedHeaders: []string{RequestIDHeader},
			MaxAge:         86400,
		}))
	}

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.opts.RateLimit, time.Minute))
		}
		r.Get("/titles", s.handleTitles)
		r.Get("/recommendations", s.handleRecommend)
		r.Post("/recommendations/next", s.handleNext)
		r.Get("/movies/details", s.handleDetails)
		r.Get("/movies/{id}", s.handleMovie)
	})
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type recommendResponse struct {
	Movie           *core.MovieDetail           `json:"movie,omitempty"`
	Recommendations []core.RecommendationRecord `json:"recommendations"`
}

type nextRequest struct {
	MovieTitle      string            `json:"movie_title"`
	DisplayedTitles []json.RawMessage `json:"displayed_titles"`
	N               int               `json:"n"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"stats":  s.rec.Stats(),
	})
}

func (s *Server) handleTitles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.rec.AllTitles())
}

// GET /api/recommendations?title=Heat&n=20&exclude=Alien&exclude=Up
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	seed := cleanTitle(q.Get("title"))
	if seed == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	n, ok := s.parseN(q.Get("n"), s.opts.RecommendN)
	if !ok {
		writeError(w, http.StatusBadRequest, "n must be a positive integer")
		return
	}
	recs, err := s.recommend(r.Context(), seed, n, q["exclude"])
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	detail := s.rec.Details(seed)
	writeJSON(w, http.StatusOK, recommendResponse{Movie: &detail, Recommendations: recs})
}

// POST /api/recommendations/next
// displayed_titles 中的元素可以是片名字符串或 {"title": ...} 对象。
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	seed := cleanTitle(req.MovieTitle)
	if seed == "" {
		writeError(w, http.StatusBadRequest, "movie_title is required")
		return
	}
	if req.N < 0 {
		writeError(w, http.StatusBadRequest, "n must be a positive integer")
		return
	}
	n := req.N
	if n == 0 {
		n = s.opts.NextN
	}
	n = min(n, s.opts.MaxN)

	recs, err := s.recommend(r.Context(), seed, n, displayedTitles(req.DisplayedTitles))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendResponse{Recommendations: recs})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	t := cleanTitle(r.URL.Query().Get("title"))
	if t == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	writeJSON(w, http.StatusOK, s.rec.Details(t))
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	m, ok := s.rec.Movie(id)
	if !ok {
		writeError(w, http.StatusNotFound, "movie not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) recommend(ctx context.Context, seed string, n int, exclude []string) ([]core.RecommendationRecord, error) {
	key := ""
	if s.cache != nil {
		key = s.cache.key(seed, n, exclude)
		if recs, ok := s.cache.get(ctx, key); ok {
			RecommendResults.Observe(float64(len(recs)))
			return recs, nil
		}
	}
	recs, err := s.rec.Recommend(ctx, seed, n, exclude...)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []core.RecommendationRecord{}
	}
	RecommendResults.Observe(float64(len(recs)))
	if s.cache != nil {
		s.cache.set(ctx, key, recs)
	}
	return recs, nil
}

// parseN 解析条数：为空时用默认值，超过上限时截断。
func (s *Server) parseN(raw string, def int) (int, bool) {
	if raw == "" {
		return min(def, s.opts.MaxN), true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return min(n, s.opts.MaxN), true
}

func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	logging.Ctx(r.Context()).Error().Err(err).Msg("recommend failed")
	writeError(w, http.StatusInternalServerError, "recommendation failed")
}

// cleanTitle 去掉首尾空白与包裹片名的引号（自动补全框会带上引号）。
func cleanTitle(t string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(t), `"`))
}

func displayedTitles(raw []json.RawMessage) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		var t string
		if err := json.Unmarshal(r, &t); err == nil {
			out = append(out, t)
			continue
		}
		var obj struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(r, &obj); err == nil && obj.Title != "" {
			out = append(out, obj.Title)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
