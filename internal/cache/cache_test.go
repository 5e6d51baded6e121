package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/debemdeboas/lending-admin/internal/model"
)

func TestCache_BasicOperations(t *testing.T) {
	c := NewCache[model.ResourceKey, string]()

	t.Run("Set and Get", func(t *testing.T) {
		c.Set(model.ResourceTeam, "hash-1")

		got, ok := c.Get(model.ResourceTeam)
		if !ok {
			t.Fatal("Expected key to exist")
		}
		if got != "hash-1" {
			t.Errorf("Expected %q, got %q", "hash-1", got)
		}
	})

	t.Run("Get missing key", func(t *testing.T) {
		got, ok := c.Get(model.ResourceRates)
		if ok {
			t.Error("Expected key not to exist")
		}
		if got != "" {
			t.Errorf("Expected zero value, got %q", got)
		}
	})

	t.Run("Swap returns previous", func(t *testing.T) {
		prev, ok := c.Swap(model.ResourceTeam, "hash-2")
		if !ok || prev != "hash-1" {
			t.Errorf("Expected previous hash-1, got %q (found %v)", prev, ok)
		}

		_, ok = c.Swap(model.ResourceBranches, "hash-3")
		if ok {
			t.Error("Expected no previous value for a new key")
		}
		if c.Len() != 2 {
			t.Errorf("Expected 2 entries, got %d", c.Len())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		c.Delete(model.ResourceBranches)
		if _, ok := c.Get(model.ResourceBranches); ok {
			t.Error("Expected key to be deleted")
		}
		c.Delete("never-set")
	})

	t.Run("Clear", func(t *testing.T) {
		c.Clear()
		if c.Len() != 0 {
			t.Errorf("Expected empty cache, got %d entries", c.Len())
		}
	})
}

func TestCache_SetTo(t *testing.T) {
	c := NewCache[string, int]()
	c.Set("old", 1)

	items := map[string]int{"a": 1, "b": 2}
	c.SetTo(items)

	if _, ok := c.Get("old"); ok {
		t.Error("Expected previous content to be replaced")
	}
	if v, _ := c.Get("b"); v != 2 {
		t.Errorf("Expected 2, got %d", v)
	}

	// The cache keeps its own copy.
	items["c"] = 3
	if _, ok := c.Get("c"); ok {
		t.Error("Expected later changes to the source map not to leak in")
	}
}

func TestCache_Concurrency(t *testing.T) {
	c := NewCache[int, int]()

	const workers = 50
	const ops = 100

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < ops; i++ {
				key := w*ops + i
				c.Set(key, i)
				c.Get(key)
				c.Swap(key, i+1)
			}
		}(w)
	}
	wg.Wait()

	if c.Len() != workers*ops {
		t.Errorf("Expected %d entries, got %d", workers*ops, c.Len())
	}
	if v, _ := c.Get(ops + 5); v != 6 {
		t.Errorf("Expected 6, got %d", v)
	}
}

func TestRenderedCache(t *testing.T) {
	ClearRendered()

	t.Run("Set and Get", func(t *testing.T) {
		SetRendered("hash", "mmark:github", []byte("<p>a</p>"))

		html, ok := GetRendered("hash", "mmark:github")
		if !ok {
			t.Fatal("Expected cached HTML")
		}
		if !bytes.Equal(html, []byte("<p>a</p>")) {
			t.Errorf("Unexpected HTML %q", html)
		}
	})

	t.Run("Variants are separate", func(t *testing.T) {
		SetRendered("hash", "classic:monokai", []byte("<p>b</p>"))

		a, _ := GetRendered("hash", "mmark:github")
		b, _ := GetRendered("hash", "classic:monokai")
		if bytes.Equal(a, b) {
			t.Error("Expected separate entries per variant")
		}
		if _, ok := GetRendered("hash", "classic:github"); ok {
			t.Error("Expected no entry for an unrendered variant")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		ClearRendered()
		if _, ok := GetRendered("hash", "mmark:github"); ok {
			t.Error("Expected cache to be cleared")
		}
	})
}

func BenchmarkRenderedCache_Get(b *testing.B) {
	for i := 0; i < 1000; i++ {
		SetRendered(fmt.Sprintf("hash-%d", i), "mmark:github", []byte("html"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		GetRendered(fmt.Sprintf("hash-%d", i%1000), "mmark:github")
	}
}
