package compression

import (
	"bytes"
	"sync"
	"testing"
)

func TestCompressors(t *testing.T) {
	payload := bytes.Repeat([]byte(`{"items":[{"id":"a","order":1}]}`), 64)

	for _, name := range []string{"zstd", "gzip", "none", ""} {
		t.Run("Codec "+name, func(t *testing.T) {
			c, err := New(name)
			if err != nil {
				t.Fatalf("Failed to create compressor: %v", err)
			}

			packed, err := c.Compress(payload)
			if err != nil {
				t.Fatalf("Failed to compress: %v", err)
			}
			unpacked, err := c.Decompress(packed)
			if err != nil {
				t.Fatalf("Failed to decompress: %v", err)
			}
			if !bytes.Equal(unpacked, payload) {
				t.Error("Expected round trip to restore the payload")
			}
		})
	}

	t.Run("Unknown codec", func(t *testing.T) {
		if _, err := New("lz4"); err == nil {
			t.Error("Expected error for unknown codec")
		}
	})

	t.Run("Zstd actually compresses repetitive payloads", func(t *testing.T) {
		packed, _ := ZstdCompressor{}.Compress(payload)
		if len(packed) >= len(payload) {
			t.Errorf("Expected compressed size < %d, got %d", len(payload), len(packed))
		}
	})

	t.Run("Invalid gzip level", func(t *testing.T) {
		if _, err := (GzipCompressor{Level: 42}).Compress(payload); err == nil {
			t.Error("Expected error for an invalid gzip level")
		}
	})

	t.Run("Zstd is safe for concurrent use", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				packed, err := ZstdCompressor{}.Compress(payload)
				if err != nil {
					t.Errorf("Failed to compress: %v", err)
					return
				}
				unpacked, err := ZstdCompressor{}.Decompress(packed)
				if err != nil || !bytes.Equal(unpacked, payload) {
					t.Errorf("Concurrent round trip failed: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
