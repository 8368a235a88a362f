package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matzehuels/tracktree/pkg/track"
)

// Library is the JSON serialization format for a track library.
type Library struct {
	Tracks []track.Track `json:"tracks" bson:"tracks"`
}

// ReadLibrary decodes a track library from JSON.
func ReadLibrary(r io.Reader) (Library, error) {
	var lib Library
	if err := json.NewDecoder(r).Decode(&lib); err != nil {
		return Library{}, fmt.Errorf("decode library: %w", err)
	}
	return lib, nil
}

// LoadFile reads a JSON library file and returns its tracks.
func LoadFile(path string) ([]track.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	lib, err := ReadLibrary(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return lib.Tracks, nil
}

// WriteLibrary encodes a track library as indented JSON.
func WriteLibrary(w io.Writer, lib Library) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(lib); err != nil {
		return fmt.Errorf("encode library: %w", err)
	}
	return nil
}
