package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/matzehuels/tracktree/pkg/cache"
	"github.com/matzehuels/tracktree/pkg/catalog"
	"github.com/matzehuels/tracktree/pkg/grow"
)

// newSource builds the track source from the catalog config. It returns
// the source, a content hash identifying the library for cache keys, and
// a cleanup function.
//
// A JSON library file takes precedence over MongoDB when both are set.
func newSource(ctx context.Context, cfg CatalogConfig, seed uint64) (grow.TrackSource, string, func(), error) {
	switch {
	case cfg.Library != "":
		data, err := os.ReadFile(cfg.Library)
		if err != nil {
			return nil, "", nil, fmt.Errorf("read library %s: %w", cfg.Library, err)
		}
		lib, err := catalog.ReadLibrary(bytes.NewReader(data))
		if err != nil {
			return nil, "", nil, fmt.Errorf("parse library %s: %w", cfg.Library, err)
		}
		return catalog.NewMemory(lib.Tracks, seed), cache.Hash(data), func() {}, nil

	case cfg.MongoURI != "":
		m, err := catalog.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection)
		if err != nil {
			return nil, "", nil, err
		}
		// MongoDB content can change between runs, so the hash only pins
		// the collection identity.
		hash := cache.Hash([]byte(cfg.MongoURI + "/" + cfg.MongoDatabase + "/" + cfg.MongoCollection))
		return m, hash, func() { _ = m.Close(context.Background()) }, nil

	default:
		return nil, "", nil, fmt.Errorf("no catalog configured: set --library or --mongo-uri")
	}
}
