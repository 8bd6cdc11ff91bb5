package recall

import (
	"context"
	"testing"

	"github.com/rushteam/movierec/core"
	"github.com/rushteam/movierec/vector"
)

type mapCatalog map[int64]core.Movie

func (c mapCatalog) Movie(id int64) (core.Movie, bool) {
	m, ok := c[id]
	return m, ok
}

func buildIndex(t *testing.T) (*vector.CosineIndex, *vector.Matrix) {
	t.Helper()
	b := vector.NewMatrixBuilder()
	// 1=A, 2=B, 3=C, 4=无目录行
	b.Add(100, 1, 5)
	b.Add(101, 1, 5)
	b.Add(100, 2, 5)
	b.Add(101, 2, 5)
	b.Add(100, 3, 5)
	b.Add(101, 4, 3)
	m := b.Build()
	return vector.NewCosineIndex(m), m
}

func TestOverFetch(t *testing.T) {
	tests := []struct {
		name                         string
		rows, n, excluded, margin, k int
	}{
		{"single row", 1, 5, 1, 25, 0},
		{"capped by rows", 4, 5, 1, 25, 3},
		{"large catalog", 1000, 5, 3, 25, 33},
		{"n+1 floor", 1000, 10, 0, 0, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverFetch(tt.rows, tt.n, tt.excluded, tt.margin); got != tt.k {
				t.Errorf("OverFetch(%d,%d,%d,%d) = %d, want %d", tt.rows, tt.n, tt.excluded, tt.margin, got, tt.k)
			}
		})
	}
}

func TestSimilarItemsOrderAndLabels(t *testing.T) {
	idx, m := buildIndex(t)
	seedRow, _ := m.RowOf(1)
	r := &SimilarItems{
		Index: idx,
		Rows:  m,
		Catalog: mapCatalog{
			1: {ID: 1, Title: "A", NormalizedTitle: "a"},
			2: {ID: 2, Title: "B", NormalizedTitle: "b"},
			3: {ID: 3, Title: "C", NormalizedTitle: "c", Genres: []string{"Drama"}},
		},
	}
	rctx := &core.RecommendContext{SeedRow: seedRow, N: 5, Exclude: map[string]struct{}{"a": {}}}

	items, err := r.Recall(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Recall: %v", err)
	}
	// 4 没有目录行，被丢弃
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != 2 || items[1].ID != 3 {
		t.Errorf("order = [%d %d], want [2 3]", items[0].ID, items[1].ID)
	}
	if items[0].Distance > 1e-12 || items[0].Score < 1-1e-12 {
		t.Errorf("identical rows: distance=%v score=%v", items[0].Distance, items[0].Score)
	}
	if got := items[1].MetaString(core.MetaNormalizedTitle); got != "c" {
		t.Errorf("normalized_title = %q", got)
	}
	if lbl := items[0].Labels["recall_source"]; lbl.Value != "i2i" || lbl.Source != "recall" {
		t.Errorf("recall_source label = %+v", lbl)
	}
	if lbl := items[0].Labels["cf_metric"]; lbl.Value != "cosine" {
		t.Errorf("cf_metric label = %+v", lbl)
	}
}

func TestSimilarItemsNoSeed(t *testing.T) {
	idx, m := buildIndex(t)
	r := &SimilarItems{Index: idx, Rows: m, Catalog: mapCatalog{}}

	for _, rctx := range []*core.RecommendContext{
		nil,
		{SeedRow: -1, N: 5},
		{SeedRow: 0, N: 0},
	} {
		items, err := r.Recall(context.Background(), rctx)
		if err != nil || len(items) != 0 {
			t.Errorf("Recall(%+v) = %v, %v; want empty", rctx, items, err)
		}
	}
}

func TestSimilarItemsInvalidRow(t *testing.T) {
	idx, m := buildIndex(t)
	r := &SimilarItems{Index: idx, Rows: m, Catalog: mapCatalog{}}

	_, err := r.Process(context.Background(), &core.RecommendContext{SeedRow: 99, N: 5}, nil)
	if !core.IsInvalidInput(err) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}
