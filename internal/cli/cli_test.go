package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/matzehuels/tracktree/pkg/tree"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"svg"}},
		{"png", []string{"png"}},
		{"svg,png,dot", []string{"svg", "png", "dot"}},
	}
	for _, tt := range tests {
		got := parseFormats(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseFormats(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseFormats(%q) = %v, want %v", tt.in, got, tt.want)
				break
			}
		}
	}
}

func TestParseIntList(t *testing.T) {
	got, err := parseIntList("3, 2,1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != 3 || got[1] != 2 || got[2] != 1 {
		t.Errorf("parseIntList = %v, want [3 2 1]", got)
	}

	if got, err := parseIntList(""); err != nil || got != nil {
		t.Errorf("empty input: got %v, %v", got, err)
	}

	if _, err := parseIntList("3,x"); err == nil {
		t.Error("non-numeric entry must fail")
	}
}

func TestParseDropPos(t *testing.T) {
	pos, err := parseDropPos("320, 240.5")
	if err != nil {
		t.Fatal(err)
	}
	if *pos != (tree.Position{X: 320, Y: 240.5}) {
		t.Errorf("parseDropPos = %+v", pos)
	}

	if pos, err := parseDropPos(""); err != nil || pos != nil {
		t.Errorf("empty input: got %v, %v", pos, err)
	}

	for _, bad := range []string{"320", "x,240", "320,y"} {
		if _, err := parseDropPos(bad); err == nil {
			t.Errorf("parseDropPos(%q) must fail", bad)
		}
	}
}

func TestDefaultBaseName(t *testing.T) {
	tests := []struct {
		title  string
		artist string
		want   string
	}{
		{"Midnight City", "M83", "m83_midnight_city"},
		{"Nightcall (Remix)", "Kavinsky", "kavinsky_nightcall_remix"},
		{"I/O", "Peter Gabriel", "peter_gabriel_io"},
	}
	for _, tt := range tests {
		if got := defaultBaseName(tt.title, tt.artist); got != tt.want {
			t.Errorf("defaultBaseName(%q, %q) = %q, want %q", tt.title, tt.artist, got, tt.want)
		}
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output string
		input  string
		want   string
	}{
		{"", "m83_midnight_city", "m83_midnight_city"},
		{"out.svg", "fallback", "out"},
		{"out.png", "fallback", "out"},
		{"out", "fallback", "out"},
		{"archive.tar", "fallback", "archive.tar"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracktree.toml")
	content := `
[layout]
node_radius = 20.0
center_x = 400.0

[growth]
max_levels = 3
tags_per_level = [3, 2]
seed = 7

[catalog]
library = "library.json"

[cache]
disabled = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Growth.MaxLevels != 3 || cfg.Growth.Seed != 7 {
		t.Errorf("growth config = %+v", cfg.Growth)
	}
	if len(cfg.Growth.TagsPerLevel) != 2 || cfg.Growth.TagsPerLevel[0] != 3 {
		t.Errorf("tags per level = %v", cfg.Growth.TagsPerLevel)
	}
	if cfg.Catalog.Library != "library.json" {
		t.Errorf("library = %q", cfg.Catalog.Library)
	}
	if !cfg.Cache.Disabled {
		t.Error("cache not disabled")
	}

	// Unset mongo fields keep their defaults.
	if cfg.Catalog.MongoDatabase != "tracktree" || cfg.Catalog.MongoCollection != "tracks" {
		t.Errorf("mongo defaults = %+v", cfg.Catalog)
	}

	layoutCfg := cfg.LayoutSettings()
	if layoutCfg.NodeRadius != 20 || layoutCfg.Center.X != 400 {
		t.Errorf("layout settings = %+v", layoutCfg)
	}
}

func TestLoadConfigExplicitMissing(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("explicit missing path must fail")
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("not [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config must fail")
	}
}

func TestApplyGrowFlags(t *testing.T) {
	cfg := Config{}
	cfg.Catalog.MongoURI = "mongodb://config"
	cfg.Growth.MaxLevels = 2

	// The library flag wins over a configured mongo URI.
	applyGrowFlags(&cfg, growOpts{library: "lib.json", maxLevels: 4, seed: 9})
	if cfg.Catalog.Library != "lib.json" || cfg.Catalog.MongoURI != "" {
		t.Errorf("catalog = %+v", cfg.Catalog)
	}
	if cfg.Growth.MaxLevels != 4 || cfg.Growth.Seed != 9 {
		t.Errorf("growth = %+v", cfg.Growth)
	}

	// Zero-valued flags leave config values alone.
	applyGrowFlags(&cfg, growOpts{})
	if cfg.Growth.MaxLevels != 4 {
		t.Error("unset flag overwrote config")
	}
}

func TestClearCacheDir(t *testing.T) {
	dir := t.TempDir()

	// Mimic the fan-out layout the file cache writes.
	for _, p := range []string{"ab/cdef.json", "ab/0123.json", "ff/4567.json"} {
		path := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	count, err := clearCacheDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("cleared %d entries, want 3", count)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("fan-out dirs left behind: %v", entries)
	}

	// The cache root itself stays.
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("cache dir removed: %v", err)
	}
}

func TestClearCacheDirMissing(t *testing.T) {
	count, err := clearCacheDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}
}
