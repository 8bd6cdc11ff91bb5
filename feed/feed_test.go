package feed

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/pkg/conv"
	"github.com/rushteam/movierec/store"
)

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := &Static{
		Catalog: []core.RawMovie{{ID: 1, Title: "Heat (1995)"}},
		Rows:    []core.RawRating{{UserID: 1, MovieID: 1, Rating: 4.0}},
	}
	movies, err := s.Movies(ctx)
	if err != nil || len(movies) != 1 {
		t.Fatalf("Movies = %v, %v", movies, err)
	}

	boom := errors.New("boom")
	s.Err = boom
	if _, err := s.Ratings(ctx); !errors.Is(err, boom) {
		t.Errorf("Ratings err = %v, want boom", err)
	}
}

func TestStoreFeedRoundTrip(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	f := NewStoreFeed(ms, "")
	defer f.Close()

	if f.KeyPrefix != "movierec" {
		t.Errorf("default prefix = %q", f.KeyPrefix)
	}
	if _, err := f.Movies(ctx); !core.IsNotFound(err) {
		t.Errorf("Movies on empty store err = %v, want NOT_FOUND", err)
	}

	err := SeedStore(ctx, f,
		[]core.RawMovie{
			{ID: 9007199254740993, Title: "Big Id", Genres: "Drama|Crime", Overview: "o"},
			{ID: 2, Title: "Second"},
		},
		[]core.RawRating{{UserID: 1, MovieID: 2, Rating: 3.5}},
	)
	if err != nil {
		t.Fatalf("SeedStore: %v", err)
	}

	movies, err := f.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("len = %d", len(movies))
	}
	// 大整数 id 不经 float64 中转
	id, ok := conv.ToInt64(movies[0].ID)
	if !ok || id != 9007199254740993 {
		t.Errorf("id = %v (%T), ok=%v", movies[0].ID, movies[0].ID, ok)
	}
	if movies[1].PosterPath != nil {
		t.Errorf("missing poster should decode as nil, got %v", movies[1].PosterPath)
	}

	ratings, err := f.Ratings(ctx)
	if err != nil || len(ratings) != 1 {
		t.Fatalf("Ratings = %v, %v", ratings, err)
	}
	if r, ok := conv.ToFloat64(ratings[0].Rating); !ok || r != 3.5 {
		t.Errorf("rating = %v", ratings[0].Rating)
	}
}

func TestStoreFeedBadJSON(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemoryStore()
	defer ms.Close()
	_ = ms.Set(ctx, "p:movies", []byte("{not json"))

	f := NewStoreFeed(ms, "p")
	if _, err := f.Movies(ctx); !core.IsSchema(err) {
		t.Errorf("err = %v, want SCHEMA", err)
	}
}

func createDuckDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.duckdb")
	db, err := sql.Open("duckdb", path)
	if err != nil {
		t.Fatalf("open duckdb: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE movies (movie_id INTEGER, title VARCHAR, genres VARCHAR, overview VARCHAR, poster_path VARCHAR)`,
		`CREATE TABLE ratings (user_id INTEGER, movie_id INTEGER, rating DOUBLE)`,
		`INSERT INTO movies VALUES (1, 'Toy Story (1995)', 'Animation|Comedy', 'Toys come alive.', '/toy.jpg'), (2, 'Heat (1995)', 'Crime', NULL, NULL)`,
		`INSERT INTO ratings VALUES (10, 1, 4.0), (10, 2, 3.5), (11, 1, 5.0)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func TestSQLFeedDuckDB(t *testing.T) {
	ctx := context.Background()
	path := createDuckDB(t)

	f, err := OpenDuckDB(ctx, path)
	if err != nil {
		t.Fatalf("OpenDuckDB: %v", err)
	}
	defer f.Close()

	movies, err := f.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 2 {
		t.Fatalf("len(movies) = %d", len(movies))
	}
	if id, ok := conv.ToInt64(movies[0].ID); !ok || id != 1 {
		t.Errorf("movies[0].ID = %v", movies[0].ID)
	}
	if s, _ := conv.ToString(movies[0].Title); s != "Toy Story (1995)" {
		t.Errorf("movies[0].Title = %v", movies[0].Title)
	}
	if movies[1].Overview != nil {
		t.Errorf("NULL overview = %v, want nil", movies[1].Overview)
	}

	ratings, err := f.Ratings(ctx)
	if err != nil {
		t.Fatalf("Ratings: %v", err)
	}
	if len(ratings) != 3 {
		t.Fatalf("len(ratings) = %d", len(ratings))
	}
	if r, ok := conv.ToFloat64(ratings[1].Rating); !ok || r != 3.5 {
		t.Errorf("ratings[1].Rating = %v", ratings[1].Rating)
	}
}

func TestSQLFeedMissingTable(t *testing.T) {
	ctx := context.Background()
	path := createDuckDB(t)

	_, err := OpenDuckDB(ctx, path, WithTables("films", ""))
	if !core.IsSchema(err) {
		t.Errorf("err = %v, want SCHEMA", err)
	}
}

func TestSQLFeedInvalidTableName(t *testing.T) {
	_, err := OpenDuckDB(context.Background(), "", WithTables("movies; DROP TABLE x", ""))
	if !core.IsInvalidInput(err) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}

func TestSQLFeedCSV(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	moviesPath := filepath.Join(dir, "movies.csv")
	ratingsPath := filepath.Join(dir, "ratings.csv")
	if err := os.WriteFile(moviesPath, []byte("movieId,title,genres\n1,Toy Story (1995),Animation|Comedy\n2,Heat (1995),Crime\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ratingsPath, []byte("userId,movieId,rating,timestamp\n1,1,4.0,964982703\n1,2,3.0,964982704\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenCSV(ctx, moviesPath, ratingsPath)
	if err != nil {
		t.Fatalf("OpenCSV: %v", err)
	}
	defer f.Close()

	movies, err := f.Movies(ctx)
	if err != nil {
		t.Fatalf("Movies: %v", err)
	}
	if len(movies) != 2 || movies[0].Overview != nil {
		t.Fatalf("movies = %+v", movies)
	}
	if g := conv.ToStringSlice(movies[0].Genres, "|"); len(g) != 2 {
		t.Errorf("genres = %v", g)
	}
	ratings, err := f.Ratings(ctx)
	if err != nil || len(ratings) != 2 {
		t.Fatalf("Ratings = %v, %v", ratings, err)
	}
}

func TestMovieFromDoc(t *testing.T) {
	doc := bson.M{
		"movieId": int32(7),
		"title":   "Alien (1979)",
		"genres":  primitive.A{"Horror", "Sci-Fi"},
		"externalData": bson.M{
			"overview":  "In space no one can hear you scream.",
			"posterUrl": "https://img/alien.jpg",
		},
	}
	m := movieFromDoc(doc)
	if id, ok := conv.ToInt64(m.ID); !ok || id != 7 {
		t.Errorf("ID = %v", m.ID)
	}
	if g := conv.ToStringSlice(m.Genres, "|"); len(g) != 2 || g[1] != "Sci-Fi" {
		t.Errorf("Genres = %v", g)
	}
	if s, _ := m.Overview.(string); s == "" {
		t.Errorf("Overview from externalData missing")
	}
	if s, _ := m.PosterPath.(string); s != "https://img/alien.jpg" {
		t.Errorf("PosterPath = %v", m.PosterPath)
	}

	// 顶层字段优先，primitive.D 形式的子文档也能读取
	doc2 := bson.M{
		"movieId":      int64(8),
		"title":        "Aliens",
		"overview":     "top",
		"posterPath":   "",
		"externalData": primitive.D{{Key: "overview", Value: "nested"}, {Key: "posterUrl", Value: "/p.jpg"}},
	}
	m2 := movieFromDoc(doc2)
	if m2.Overview != "top" {
		t.Errorf("Overview = %v, want top", m2.Overview)
	}
	if m2.PosterPath != "/p.jpg" {
		t.Errorf("PosterPath = %v, want /p.jpg", m2.PosterPath)
	}
}

func TestOpenUnsupported(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "parquet"}); !core.IsNotSupported(err) {
		t.Errorf("err = %v, want NOT_SUPPORTED", err)
	}
	if _, err := Open(context.Background(), Config{Kind: "mongo"}); !core.IsInvalidInput(err) {
		t.Errorf("mongo without uri err = %v, want INVALID_INPUT", err)
	}
}

// 设置 MOVIEREC_TEST_MONGO=mongodb://... 时对真实 MongoDB 运行。
func TestMongoFeed(t *testing.T) {
	uri := os.Getenv("MOVIEREC_TEST_MONGO")
	if uri == "" {
		t.Skip("MOVIEREC_TEST_MONGO not set")
	}
	ctx := context.Background()
	f, err := OpenMongo(ctx, MongoConfig{URI: uri, Database: "movierec_test"})
	if err != nil {
		t.Fatalf("OpenMongo: %v", err)
	}
	defer f.Close()

	_ = f.movies.Drop(ctx)
	_ = f.ratings.Drop(ctx)
	if _, err := f.movies.InsertMany(ctx, []any{
		bson.M{"movieId": 1, "title": "A", "genres": "Drama"},
		bson.M{"movieId": 2, "title": "B"},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ratings.InsertOne(ctx, bson.M{"userId": 1, "movieId": 1, "rating": 4.5}); err != nil {
		t.Fatal(err)
	}

	movies, err := f.Movies(ctx)
	if err != nil || len(movies) != 2 {
		t.Fatalf("Movies = %v, %v", movies, err)
	}
	ratings, err := f.Ratings(ctx)
	if err != nil || len(ratings) != 1 {
		t.Fatalf("Ratings = %v, %v", ratings, err)
	}
}
