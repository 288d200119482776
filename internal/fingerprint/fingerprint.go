// Package fingerprint computes content fingerprints of stored backup files:
// a digest over the decompressed byte stream, which is the identity used for
// deduplication and integrity checks.
package fingerprint

import (
	"crypto/md5" // #nosec G401 - burp records md5 checksums, this must match
	"crypto/sha1" // #nosec G401
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/zeebo/blake3"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/compression"
)

const (
	AlgorithmMD5    = "md5"
	AlgorithmSHA1   = "sha1"
	AlgorithmSHA256 = "sha256"
	AlgorithmSHA512 = "sha512"
	AlgorithmBLAKE3 = "blake3"
)

// chunkSize is the read buffer size for streaming files through the digest.
const chunkSize = 64 * 1024

// NewHasher creates a hasher for the given algorithm. burp records md5, so
// that is the default.
func NewHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case AlgorithmMD5, "":
		return md5.New(), nil // #nosec G401
	case AlgorithmSHA1:
		return sha1.New(), nil // #nosec G401
	case AlgorithmSHA256:
		return sha256.New(), nil
	case AlgorithmSHA512:
		return sha512.New(), nil
	case AlgorithmBLAKE3:
		return blake3.New(), nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %s", algorithm)
	}
}

// Sum is the result of fingerprinting one entry: the hex digest over the
// decompressed stream and the number of bytes actually read.
type Sum struct {
	Digest string
	Bytes  int64
}

// SizeMismatchError reports that an entry's decompressed byte count differs
// from its declared size, a sign of corruption or a malformed entry.
type SizeMismatchError struct {
	Path     string
	Declared int64
	Actual   int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("%s: decompressed size %d does not match declared size %d", e.Path, e.Actual, e.Declared)
}

// DecompressError reports a malformed compressed stream.
type DecompressError struct {
	Path string
	Err  error
}

func (e *DecompressError) Error() string {
	return fmt.Sprintf("%s: decompress failed: %v", e.Path, e.Err)
}

func (e *DecompressError) Unwrap() error { return e.Err }

// Compute streams the entry's stored bytes through the digest, inflating
// compressed entries on the fly. It is read-only and never touches the
// archive. The returned byte count is checked against the entry's declared
// size.
func Compute(entry *archive.FileEntry, algorithm string) (Sum, error) {
	hasher, err := NewHasher(algorithm)
	if err != nil {
		return Sum{}, err
	}

	path := entry.StoragePath()
	f, err := os.Open(path)
	if err != nil {
		return Sum{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	algo := compression.TypeNone
	if entry.Compressed {
		algo = compression.TypeGzip
	}
	reader, err := compression.NewReader(f, algo)
	if err != nil {
		return Sum{}, &DecompressError{Path: path, Err: err}
	}
	defer reader.Close()

	buf := make([]byte, chunkSize)
	var size int64
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
			size += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if entry.Compressed {
				return Sum{}, &DecompressError{Path: path, Err: err}
			}
			return Sum{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if size != entry.Size {
		return Sum{}, &SizeMismatchError{Path: path, Declared: entry.Size, Actual: size}
	}

	return Sum{Digest: fmt.Sprintf("%x", hasher.Sum(nil)), Bytes: size}, nil
}
