package util

import (
	"testing"
)

func TestContentHash(t *testing.T) {
	t.Run("Same content same hash", func(t *testing.T) {
		if ContentHash([]byte("abc")) != ContentHashString("abc") {
			t.Error("Expected byte and string hashes to match")
		}
	})

	t.Run("Known sha256", func(t *testing.T) {
		want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
		if got := ContentHashString("abc"); got != want {
			t.Errorf("Expected %s, got %s", want, got)
		}
	})

	t.Run("Different content different hash", func(t *testing.T) {
		if ContentHashString("a") == ContentHashString("b") {
			t.Error("Expected different hashes")
		}
	})
}

func TestJSONHash(t *testing.T) {
	t.Run("Map key order does not matter", func(t *testing.T) {
		a, err := JSONHash(map[string]int{"x": 1, "y": 2})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		b, _ := JSONHash(map[string]int{"y": 2, "x": 1})
		if a != b {
			t.Error("Expected equal maps to hash the same")
		}
	})

	t.Run("Unencodable value", func(t *testing.T) {
		if _, err := JSONHash(make(chan int)); err == nil {
			t.Error("Expected error for channel value")
		}
	})
}
