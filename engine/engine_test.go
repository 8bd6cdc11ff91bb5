package engine

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/feed"
	"github.com/rushteam/movierec/pkg/title"
	"github.com/rushteam/movierec/rerank"
)

func strPtr(s string) *string { return &s }

// A、B、C 由三位用户评分：B 与 A 几乎相同，C 离 A 比离 B 近。
func scenarioFeed() *feed.Static {
	return &feed.Static{
		Catalog: []core.RawMovie{
			{ID: 1, Title: "A (2001)", Genres: "Drama"},
			{ID: 2, Title: "B (2002)", Genres: "Drama|Crime", Overview: "About B."},
			{ID: 3, Title: "C (2003)", PosterPath: "/c.jpg"},
			{ID: 4, Title: "Unrated (1999)"},
			{ID: 5, Title: ""},
		},
		Rows: []core.RawRating{
			{UserID: 1, MovieID: 1, Rating: 5.0},
			{UserID: 2, MovieID: 1, Rating: 5.0},
			{UserID: 1, MovieID: 2, Rating: 5.0},
			{UserID: 2, MovieID: 2, Rating: 4.0},
			{UserID: 1, MovieID: 3, Rating: 3.0},
			{UserID: 2, MovieID: 3, Rating: 3.0},
			{UserID: 3, MovieID: 3, Rating: 5.0},
			// 重复评分，保留第一条
			{UserID: 1, MovieID: 1, Rating: 1.0},
		},
	}
}

func newScenarioEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	f := scenarioFeed()
	snap, err := Load(context.Background(), f, f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, err := New(snap, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func recIDs(recs []core.RecommendationRecord) []int64 {
	out := make([]int64, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func TestLoadStats(t *testing.T) {
	e := newScenarioEngine(t)
	st := e.Snapshot().Stats()
	if st.Movies != 5 || st.Rows != 3 || st.Users != 3 {
		t.Errorf("stats = %+v", st)
	}
	if st.Ratings != 7 || st.DuplicateRatings != 1 {
		t.Errorf("ratings = %d, duplicates = %d", st.Ratings, st.DuplicateRatings)
	}
	if st.CatalogSource != "static" {
		t.Errorf("catalog source = %q", st.CatalogSource)
	}
}

func TestRecommendOrder(t *testing.T) {
	e := newScenarioEngine(t)
	recs, err := e.Recommend(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{2, 3}) {
		t.Errorf("Recommend(A, 2) = %v, want [2 3]", got)
	}
}

func TestRecommendShortCatalog(t *testing.T) {
	e := newScenarioEngine(t)
	recs, err := e.Recommend(context.Background(), "A (2001)", 5)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("len = %d, want 2", len(recs))
	}
}

func TestRecommendEmptyResults(t *testing.T) {
	e := newScenarioEngine(t)
	tests := []struct {
		name string
		seed string
		n    int
	}{
		{"empty seed", "", 5},
		{"blank seed", "   ", 5},
		{"year only", "(2001)", 5},
		{"unknown", "Nope", 5},
		{"unrated", "Unrated", 5},
		{"zero n", "A", 0},
		{"negative n", "A", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := e.Recommend(context.Background(), tt.seed, tt.n)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if recs == nil || len(recs) != 0 {
				t.Errorf("Recommend(%q, %d) = %v, want empty non-nil", tt.seed, tt.n, recs)
			}
		})
	}
}

func TestRecommendExclusions(t *testing.T) {
	e := newScenarioEngine(t)
	recs, err := e.Recommend(context.Background(), "a", 5, "  B (2002) ", "", "Nope")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("got %v, want [3]", got)
	}
}

func TestRecommendDisplayFields(t *testing.T) {
	e := newScenarioEngine(t)
	recs, _ := e.Recommend(context.Background(), "A", 2)
	if len(recs) != 2 {
		t.Fatalf("len = %d", len(recs))
	}
	b, c := recs[0], recs[1]
	if b.Title != "B (2002)" || b.Overview != "About B." || b.PosterPath != nil {
		t.Errorf("B = %+v", b)
	}
	if c.Overview != "No description available." || c.PosterPath == nil || *c.PosterPath != "/c.jpg" {
		t.Errorf("C = %+v", c)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	e := newScenarioEngine(t)
	first, _ := e.Recommend(context.Background(), "B", 5, "nothing")
	for i := 0; i < 5; i++ {
		again, _ := e.Recommend(context.Background(), "B", 5, "nothing")
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("call %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestRecommendConcurrent(t *testing.T) {
	e := newScenarioEngine(t)
	want, _ := e.Recommend(context.Background(), "C", 5)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := e.Recommend(context.Background(), "C", 5)
			if err != nil {
				errs <- err
				return
			}
			if !reflect.DeepEqual(got, want) {
				errs <- errors.New("concurrent result differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRecommendDedupAndCollision(t *testing.T) {
	f := &feed.Static{
		Catalog: []core.RawMovie{
			{ID: 1, Title: "Seed"},
			{ID: 2, Title: "Twin (1990)"},
			{ID: 3, Title: "Twin (2010)"},
			{ID: 4, Title: "Other"},
		},
		Rows: []core.RawRating{
			{UserID: 1, MovieID: 1, Rating: 5.0},
			{UserID: 2, MovieID: 1, Rating: 4.0},
			{UserID: 1, MovieID: 2, Rating: 5.0},
			{UserID: 2, MovieID: 2, Rating: 4.0},
			{UserID: 1, MovieID: 3, Rating: 5.0},
			{UserID: 2, MovieID: 3, Rating: 3.0},
			{UserID: 3, MovieID: 4, Rating: 2.0},
		},
	}
	snap, err := Load(context.Background(), f, f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.Stats().TitleCollisions != 1 {
		t.Errorf("collisions = %d, want 1", snap.Stats().TitleCollisions)
	}
	e, _ := New(snap)

	// "twin" 后写覆盖，解析为 3
	if id, ok := e.Resolve("TWIN"); !ok || id != 3 {
		t.Errorf("Resolve(TWIN) = %d, %v; want 3", id, ok)
	}

	recs, _ := e.Recommend(context.Background(), "Seed", 5)
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{2, 4}) {
		t.Errorf("got %v, want [2 4]", got)
	}

	// Details 取首个同名目录行
	if d := e.Details("twin"); d.Title != "Twin (1990)" {
		t.Errorf("Details(twin) = %+v", d)
	}
}

func TestCandidateFilter(t *testing.T) {
	e := newScenarioEngine(t, WithCandidateFilter(`item.id != 2`))
	recs, _ := e.Recommend(context.Background(), "A", 5)
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("got %v, want [3]", got)
	}

	f := scenarioFeed()
	snap, _ := Load(context.Background(), f, f)
	if _, err := New(snap, WithCandidateFilter(`item.id !=`)); !core.IsInvalidInput(err) {
		t.Errorf("New with bad expr err = %v, want INVALID_INPUT", err)
	}
}

func TestBlockedTitles(t *testing.T) {
	e := newScenarioEngine(t, WithBlockedTitles("c (2003)"))
	recs, _ := e.Recommend(context.Background(), "A", 5)
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("got %v, want [2]", got)
	}
}

func TestDetails(t *testing.T) {
	e := newScenarioEngine(t)

	d := e.Details("B (2002)")
	if d.Title != "B (2002)" || d.Overview == nil || *d.Overview != "About B." {
		t.Errorf("Details exact = %+v", d)
	}
	if d := e.Details("  c "); d.Title != "C (2003)" || d.PosterPath == nil {
		t.Errorf("Details normalized = %+v", d)
	}
	if d := e.Details("Nope"); d.Title != "Nope" || d.Overview != nil || d.PosterPath != nil {
		t.Errorf("Details unresolved = %+v", d)
	}
}

func TestDetailsRoundTrip(t *testing.T) {
	e := newScenarioEngine(t)
	for _, entry := range e.AllTitles() {
		if got := e.Details(entry.Title).Title; got != entry.Title {
			t.Errorf("Details(%q).Title = %q", entry.Title, got)
		}
	}
}

func TestAllTitlesAndMovie(t *testing.T) {
	e := newScenarioEngine(t)
	titles := e.AllTitles()
	want := []string{"A (2001)", "B (2002)", "C (2003)", "Unrated (1999)"}
	if len(titles) != len(want) {
		t.Fatalf("AllTitles = %v", titles)
	}
	for i, w := range want {
		if titles[i].Title != w {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i].Title, w)
		}
	}

	m, ok := e.Movie(2)
	if !ok || !reflect.DeepEqual(m.Genres, []string{"Drama", "Crime"}) || m.NormalizedTitle != "b" {
		t.Errorf("Movie(2) = %+v, %v", m, ok)
	}
	if _, ok := e.Movie(42); ok {
		t.Error("Movie(42) should not exist")
	}
}

func TestLoadErrors(t *testing.T) {
	boom := errors.New("disk on fire")
	good := scenarioFeed()
	tests := []struct {
		name    string
		catalog core.CatalogFeed
		ratings core.RatingFeed
		check   func(error) bool
	}{
		{"feed error", &feed.Static{Err: boom}, good, func(err error) bool { return errors.Is(err, boom) }},
		{"empty catalog", &feed.Static{}, good, core.IsEmpty},
		{"empty ratings", good, &feed.Static{}, core.IsEmpty},
		{"bad movie id", &feed.Static{Catalog: []core.RawMovie{{ID: "x1", Title: "X"}}}, good, core.IsSchema},
		{"bad title type", &feed.Static{Catalog: []core.RawMovie{{ID: 1, Title: 3.5}}}, good, core.IsSchema},
		{"bad rating", good, &feed.Static{Rows: []core.RawRating{{UserID: 1, MovieID: 1, Rating: "five"}}}, core.IsSchema},
		{"bool rating", good, &feed.Static{Rows: []core.RawRating{{UserID: 1, MovieID: 1, Rating: true}}}, core.IsSchema},
		{"fractional user id", good, &feed.Static{Rows: []core.RawRating{{UserID: 1.5, MovieID: 1, Rating: 3.0}}}, core.IsSchema},
		{"nil feed", nil, good, core.IsInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Load(context.Background(), tt.catalog, tt.ratings)
			if err == nil || snap != nil {
				t.Fatalf("Load = %v, %v; want error", snap, err)
			}
			if !tt.check(err) {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadDuplicateCatalogID(t *testing.T) {
	f := &feed.Static{
		Catalog: []core.RawMovie{{ID: 1, Title: "First"}, {ID: 1, Title: "Second"}, {ID: "2", Title: "Two"}},
		Rows:    []core.RawRating{{UserID: 1, MovieID: 1, Rating: 4.0}, {UserID: 1, MovieID: 2, Rating: 4.0}},
	}
	snap, err := Load(context.Background(), f, f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m, _ := snap.Movie(1); m.Title != "First" {
		t.Errorf("Movie(1) = %+v, want First", m)
	}
	if snap.Stats().DuplicateMovies != 1 {
		t.Errorf("duplicates = %d", snap.Stats().DuplicateMovies)
	}
	if _, ok := snap.Resolve("second"); ok {
		t.Error("dropped duplicate should not be indexed")
	}
}

// lcg 生成确定的伪随机序列，保证测试数据可复现。
type lcg uint64

func (l *lcg) next(n int) int {
	*l = *l*6364136223846793005 + 1442695040888963407
	return int(uint64(*l>>33) % uint64(n))
}

func TestRecommendInvariants(t *testing.T) {
	const movies, users = 60, 40
	f := &feed.Static{}
	for i := 1; i <= movies; i++ {
		// 每 7 部电影共用一个片名，制造同名候选
		f.Catalog = append(f.Catalog, core.RawMovie{ID: i, Title: "Movie " + string(rune('A'+i%7)) + " (19" + string(rune('0'+i%10)) + "0)"})
	}
	r := lcg(42)
	for u := 1; u <= users; u++ {
		for j := 0; j < 15; j++ {
			f.Rows = append(f.Rows, core.RawRating{UserID: u, MovieID: 1 + r.next(movies), Rating: float64(1 + r.next(5))})
		}
	}
	snap, err := Load(context.Background(), f, f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, _ := New(snap)

	for seed := 0; seed < 7; seed++ {
		seedTitle := "movie " + string(rune('a'+seed))
		for _, n := range []int{1, 3, 10} {
			exclude := []string{"Movie " + string(rune('A'+(seed+1)%7))}
			recs, err := e.Recommend(context.Background(), seedTitle, n, exclude...)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if len(recs) > n {
				t.Errorf("len = %d > n = %d", len(recs), n)
			}
			seen := map[string]bool{}
			for _, rec := range recs {
				nt := title.Normalize(rec.Title)
				if nt == title.Normalize(seedTitle) {
					t.Errorf("seed %q returned", seedTitle)
				}
				if nt == title.Normalize(exclude[0]) {
					t.Errorf("excluded %q returned", exclude[0])
				}
				if seen[nt] {
					t.Errorf("duplicate title %q", nt)
				}
				seen[nt] = true
			}
		}
	}
}

func TestExplain(t *testing.T) {
	e := newScenarioEngine(t)
	items, err := e.Explain(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if len(items) != 2 || items[0].ID != 2 || items[1].ID != 3 {
		t.Fatalf("Explain(A, 2) = %+v", items)
	}
	if items[0].Distance > items[1].Distance {
		t.Errorf("distances not ascending: %v, %v", items[0].Distance, items[1].Distance)
	}
	if l, ok := items[0].Labels["recall_source"]; !ok || l.Value != "i2i" {
		t.Errorf("recall_source label = %+v", items[0].Labels)
	}

	for _, seed := range []string{"missing", "", "Unrated"} {
		items, err = e.Explain(context.Background(), seed, 2)
		if err != nil || items == nil || len(items) != 0 {
			t.Errorf("Explain(%q) = %#v, %v; want empty non-nil", seed, items, err)
		}
	}
}

func TestRecommendIgnoresFeedOrder(t *testing.T) {
	// u1: A=5, B=4, C=3，A 与 B、C 的距离相同，按 movie_id 决定先后
	catalog := []core.RawMovie{{ID: 1, Title: "A"}, {ID: 2, Title: "B"}, {ID: 3, Title: "C"}}
	tests := []struct {
		name string
		rows []core.RawRating
	}{
		{"ascending", []core.RawRating{
			{UserID: 1, MovieID: 1, Rating: 5.0},
			{UserID: 1, MovieID: 2, Rating: 4.0},
			{UserID: 1, MovieID: 3, Rating: 3.0},
		}},
		{"shuffled", []core.RawRating{
			{UserID: 1, MovieID: 3, Rating: 3.0},
			{UserID: 1, MovieID: 1, Rating: 5.0},
			{UserID: 1, MovieID: 2, Rating: 4.0},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &feed.Static{Catalog: catalog, Rows: tt.rows}
			snap, err := Load(context.Background(), f, f)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			e, err := New(snap)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			recs, err := e.Recommend(context.Background(), "A", 2)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if got := recIDs(recs); !reflect.DeepEqual(got, []int64{2, 3}) {
				t.Errorf("Recommend(A, 2) = %v, want [2 3]", got)
			}
		})
	}
}

func TestStagesSeeFilteredCandidates(t *testing.T) {
	f := &feed.Static{
		Catalog: []core.RawMovie{
			{ID: 1, Title: "A", Genres: "Drama"},
			{ID: 2, Title: "B", Genres: "Drama"},
			{ID: 3, Title: "C", Genres: "Drama"},
		},
		Rows: []core.RawRating{
			{UserID: 1, MovieID: 1, Rating: 5.0},
			{UserID: 1, MovieID: 2, Rating: 4.0},
			{UserID: 1, MovieID: 3, Rating: 3.0},
		},
	}
	snap, err := Load(context.Background(), f, f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, err := New(snap, WithStages(&rerank.Diversity{MaxPerGenre: 1}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// 被排除的 B 不应占用 Drama 的名额
	recs, err := e.Recommend(context.Background(), "A", 1, "B")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got := recIDs(recs); !reflect.DeepEqual(got, []int64{3}) {
		t.Errorf("Recommend(A, 1, exclude B) = %v, want [3]", got)
	}
}
