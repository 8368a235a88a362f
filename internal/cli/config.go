package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/tracktree/pkg/layout"
	"github.com/matzehuels/tracktree/pkg/tree"
)

// Config holds the TOML configuration shared by the grow and serve
// commands. Every field has a working default, so a missing config file
// is not an error.
type Config struct {
	Layout  LayoutConfig  `toml:"layout"`
	Growth  GrowthConfig  `toml:"growth"`
	Catalog CatalogConfig `toml:"catalog"`
	Cache   CacheConfig   `toml:"cache"`
}

// LayoutConfig mirrors layout.Config with TOML tags. Zero values fall
// back to the layout package defaults.
type LayoutConfig struct {
	LevelOneRadius   float64 `toml:"level_one_radius"`
	ChildRadius      float64 `toml:"child_radius"`
	AngleSpreadDeg   float64 `toml:"angle_spread_deg"`
	SpreadShrink     float64 `toml:"spread_shrink"`
	NodeRadius       float64 `toml:"node_radius"`
	CollisionPadding float64 `toml:"collision_padding"`
	CenterX          float64 `toml:"center_x"`
	CenterY          float64 `toml:"center_y"`
}

// GrowthConfig sets default growth bounds, overridable per run via flags.
type GrowthConfig struct {
	MaxLevels      int    `toml:"max_levels"`
	TagsPerLevel   []int  `toml:"tags_per_level"`
	BranchesPerTag int    `toml:"branches_per_tag"`
	Seed           uint64 `toml:"seed"`
}

// CatalogConfig selects the track source: a JSON library file or a
// MongoDB collection. The library file wins when both are set.
type CatalogConfig struct {
	Library         string `toml:"library"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// CacheConfig selects the cache backend. With no Redis address the file
// cache under ~/.cache/tracktree is used.
type CacheConfig struct {
	Disabled      bool   `toml:"disabled"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// LoadConfig reads a TOML config file. If path is empty, the default
// locations are tried in order: ./tracktree.toml, then
// $XDG_CONFIG_HOME/tracktree/config.toml (or ~/.config/tracktree/).
// A missing file yields the zero config without error; an explicit path
// that does not exist is an error.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	cfg.Catalog.MongoDatabase = "tracktree"
	cfg.Catalog.MongoCollection = "tracks"

	explicit := path != ""
	if !explicit {
		path = findConfig()
		if path == "" {
			return cfg, nil
		}
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func findConfig() string {
	if _, err := os.Stat("tracktree.toml"); err == nil {
		return "tracktree.toml"
	}
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	path := filepath.Join(configHome, appName, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// LayoutSettings converts the TOML layout section to a layout.Config.
func (c Config) LayoutSettings() layout.Config {
	return layout.Config{
		LevelOneRadius:   c.Layout.LevelOneRadius,
		ChildRadius:      c.Layout.ChildRadius,
		AngleSpreadDeg:   c.Layout.AngleSpreadDeg,
		SpreadShrink:     c.Layout.SpreadShrink,
		NodeRadius:       c.Layout.NodeRadius,
		CollisionPadding: c.Layout.CollisionPadding,
		Center:           tree.Position{X: c.Layout.CenterX, Y: c.Layout.CenterY},
	}
}
