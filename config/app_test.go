package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	p := writeFile(t, "movierec.yaml", `
feed:
  kind: csv
  movies_csv: movies.csv
  ratings_csv: ratings.csv
engine:
  default_n: 8
  candidate_filter: 'item.score > 0.2'
  blocked_titles: ["Cats (2019)"]
server:
  addr: ":9090"
  read_timeout: 3s
cache:
  enabled: false
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feed.Kind != "csv" || cfg.Feed.MoviesCSV != "movies.csv" {
		t.Errorf("feed = %+v", cfg.Feed)
	}
	if cfg.Engine.DefaultN() != 8 || cfg.Engine.CandidateFilter != "item.score > 0.2" {
		t.Errorf("engine = %+v", cfg.Engine)
	}
	if len(cfg.Engine.BlockedTitles) != 1 || cfg.Engine.BlockedTitles[0] != "Cats (2019)" {
		t.Errorf("blocked = %v", cfg.Engine.BlockedTitles)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Cache.Enabled {
		t.Error("cache should be disabled")
	}
	// 文件未覆盖的字段保留默认值
	if cfg.Engine.OverFetchMargin() != 25 || cfg.Server.NextN != 5 || cfg.Engine.GenreSeparator != "|" {
		t.Errorf("defaults lost: engine=%+v server=%+v", cfg.Engine, cfg.Server)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	p := writeFile(t, "movierec.yaml", "engine:\n  default_n: 8\n")
	t.Setenv("MOVIEREC_ENGINE__DEFAULT_N", "12")
	t.Setenv("MOVIEREC_ENGINE__BLOCKED_TITLES", "Cats (2019), Heat ,")
	t.Setenv("MOVIEREC_CACHE__STORE__KIND", "redis")
	t.Setenv("MOVIEREC_CACHE__STORE__ADDR", "localhost:6379")

	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.DefaultLimit != 12 {
		t.Errorf("default_n = %d, want 12", cfg.Engine.DefaultLimit)
	}
	got := strings.Join(cfg.Engine.BlockedTitles, "|")
	if got != "Cats (2019)|Heat" {
		t.Errorf("blocked = %q", got)
	}
	if cfg.Cache.Store.Kind != "redis" || cfg.Cache.Store.Addr != "localhost:6379" {
		t.Errorf("cache store = %+v", cfg.Cache.Store)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"csv without files", "feed:\n  kind: csv\n", "MoviesCSV"},
		{"unknown feed", "feed:\n  kind: parquet\n", "Kind"},
		{"default_n too large", "engine:\n  default_n: 1000\n", "DefaultLimit"},
		{"redis without addr", "cache:\n  store:\n    kind: redis\n", "Addr"},
		{"bad log level", "logging:\n  level: loud\n", "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "movierec.yaml", tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %s", err, tt.field)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvTransform(t *testing.T) {
	tests := map[string]string{
		"MOVIEREC_FEED__KIND":          "feed.kind",
		"MOVIEREC_CACHE__STORE__ADDR":  "cache.store.addr",
		"MOVIEREC_ENGINE__MARGIN":      "engine.margin",
		"MOVIEREC_SERVER__RECOMMEND_N": "server.recommend_n",
		"MOVIEREC_CONFIG":              "",
	}
	for in, want := range tests {
		if got := envTransform(in); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", in, got, want)
		}
	}
}
