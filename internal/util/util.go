// Package util provides content hashing helpers.
package util

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

// JSONHash hashes the JSON encoding of v. Map keys are encoded sorted, so equal
// values always hash the same.
func JSONHash(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("error encoding value for hashing: %w", err)
	}
	return ContentHash(data), nil
}
