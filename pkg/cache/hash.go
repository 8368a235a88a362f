package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// hashKey builds a namespaced cache key from the given parts. The
// namespace keeps tree and artifact entries apart; the SHA-256 digest of
// the JSON-encoded parts turns growth and render options of any shape
// into a backend-safe key. The full 256 bits are kept: options differing
// in a single seed bit must never collide.
func hashKey(namespace string, parts ...any) string {
	data, _ := json.Marshal(parts)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", namespace, hex.EncodeToString(sum[:]))
}

// Hash returns the hex-encoded SHA-256 of data. Serialized trees are
// content-addressed with it, so artifact keys change whenever the tree
// (including its positions) changes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
