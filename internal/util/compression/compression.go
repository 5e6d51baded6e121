// Package compression provides the codecs used for stored documents.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type NoopCompressor struct{}

func (NoopCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (NoopCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func New(name string) (Compressor, error) {
	switch name {
	case "", "zstd":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return NoopCompressor{}, nil
	}
	return nil, fmt.Errorf("unknown compression %q", name)
}
