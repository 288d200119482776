package fingerprint_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/UjOwtuc/bdup/internal/archive"
	"github.com/UjOwtuc/bdup/internal/fingerprint"
	"github.com/UjOwtuc/bdup/testutil"
)

// entryFor builds an archive and returns the single entry it contains.
func entryFor(t *testing.T, file testutil.File) archive.FileEntry {
	t.Helper()

	root := testutil.BuildArchive(t, map[string][]testutil.Backup{
		"alice": {{ID: 1, Files: []testutil.File{file}}},
	})
	a, err := archive.Open(root)
	if err != nil {
		t.Fatalf("Failed to open archive: %v", err)
	}

	var entries []archive.FileEntry
	err = a.Enumerate(context.Background(), func(e archive.FileEntry) error {
		entries = append(entries, e)
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Enumerate failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected one entry, got %d", len(entries))
	}
	return entries[0]
}

func TestComputeCompressed(t *testing.T) {
	content := "hello fingerprint"
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: content})

	sum, err := fingerprint.Compute(&entry, fingerprint.AlgorithmMD5)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if sum.Digest != testutil.MD5Hex(content) {
		t.Errorf("Expected digest %s, got %s", testutil.MD5Hex(content), sum.Digest)
	}
	if sum.Bytes != int64(len(content)) {
		t.Errorf("Expected %d bytes hashed, got %d", len(content), sum.Bytes)
	}
}

func TestComputeUncompressed(t *testing.T) {
	content := "plain bytes"
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: content, Uncompressed: true})

	sum, err := fingerprint.Compute(&entry, fingerprint.AlgorithmMD5)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if sum.Digest != testutil.MD5Hex(content) {
		t.Errorf("Expected digest %s, got %s", testutil.MD5Hex(content), sum.Digest)
	}
}

func TestComputeAlgorithms(t *testing.T) {
	// Digests of "abc" under each supported algorithm.
	tests := []struct {
		algorithm string
		digest    string
	}{
		{fingerprint.AlgorithmMD5, "900150983cd24fb0d6963f7d28e17f72"},
		{fingerprint.AlgorithmSHA1, "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{fingerprint.AlgorithmSHA256, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
	}

	for _, tc := range tests {
		entry := entryFor(t, testutil.File{Path: "f.txt", Content: "abc"})
		sum, err := fingerprint.Compute(&entry, tc.algorithm)
		if err != nil {
			t.Fatalf("Compute with %s failed: %v", tc.algorithm, err)
		}
		if sum.Digest != tc.digest {
			t.Errorf("%s: expected %s, got %s", tc.algorithm, tc.digest, sum.Digest)
		}
	}
}

func TestComputeUnknownAlgorithm(t *testing.T) {
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: "x"})
	if _, err := fingerprint.Compute(&entry, "crc32"); err == nil {
		t.Error("Expected an error for an unsupported algorithm")
	}
}

func TestComputeSizeMismatch(t *testing.T) {
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: "four", RecordedSize: 99})

	_, err := fingerprint.Compute(&entry, fingerprint.AlgorithmMD5)
	var mismatch *fingerprint.SizeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected SizeMismatchError, got %v", err)
	}
	if mismatch.Declared != 99 || mismatch.Actual != 4 {
		t.Errorf("Unexpected sizes in %v", mismatch)
	}
}

func TestComputeCorruptCompression(t *testing.T) {
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: "will be replaced"})

	// Overwrite the stored gzip stream with garbage.
	if err := os.WriteFile(entry.StoragePath(), []byte("definitely not gzip"), 0o644); err != nil {
		t.Fatalf("Failed to corrupt data file: %v", err)
	}

	_, err := fingerprint.Compute(&entry, fingerprint.AlgorithmMD5)
	var decompress *fingerprint.DecompressError
	if !errors.As(err, &decompress) {
		t.Fatalf("Expected DecompressError, got %v", err)
	}
}

func TestComputeMissingFile(t *testing.T) {
	entry := entryFor(t, testutil.File{Path: "f.txt", Content: "x"})
	if err := os.Remove(entry.StoragePath()); err != nil {
		t.Fatalf("Failed to remove data file: %v", err)
	}

	if _, err := fingerprint.Compute(&entry, fingerprint.AlgorithmMD5); err == nil {
		t.Error("Expected an error for a missing data file")
	}
}
