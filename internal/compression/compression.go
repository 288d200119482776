// Package compression provides streaming decompression for stored backup
// files. burp compresses file content with gzip; zstd is supported for
// archives converted by newer tooling.
package compression

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const (
	TypeNone = "none"
	TypeGzip = "gzip"
	TypeZstd = "zstd"
)

// NewReader wraps r in a decompressing reader for the given algorithm.
// Closing the returned reader does not close r.
func NewReader(r io.Reader, algorithm string) (io.ReadCloser, error) {
	switch algorithm {
	case TypeNone, "":
		return io.NopCloser(r), nil
	case TypeGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		return gz, nil
	case TypeZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		return &zstdReadCloser{dec}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algorithm)
	}
}

// zstd's decoder has a distinct Close signature, adapt it to io.ReadCloser.
type zstdReadCloser struct {
	*zstd.Decoder
}

func (z *zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
