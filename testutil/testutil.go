// Package testutil builds throwaway burp archive trees for tests.
package testutil

import (
	"crypto/md5" // #nosec G401 - burp records md5, tests mirror that
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/UjOwtuc/bdup/internal/manifest"
)

// TempDir creates a temporary directory for testing.
func TempDir(t *testing.T, prefix string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", prefix)
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	t.Cleanup(func() {
		if err := os.RemoveAll(dir); err != nil {
			t.Errorf("Failed to clean up temp dir %s: %v", dir, err)
		}
	})

	return dir
}

// File describes one regular file to place into a backup fixture.
type File struct {
	Path    string
	Content string

	// Uncompressed stores the content as plain bytes instead of gzip.
	Uncompressed bool

	// RecordedMD5 overrides the checksum written to the manifest; empty
	// means the real md5 of Content.
	RecordedMD5 string

	// RecordedSize overrides the size written to the manifest; 0 means
	// the real length of Content.
	RecordedSize int64
}

// Backup describes one backup instance fixture.
type Backup struct {
	ID        uint64
	Timestamp string
	Files     []File

	// Partial leaves a .bdup.partial marker, making the backup unfinished.
	Partial bool
}

// MD5Hex returns the hex md5 of content, the way burp records checksums.
func MD5Hex(content string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(content))) // #nosec G401
}

// WriteBackup creates one backup directory with manifest and data files
// below clientDir.
func WriteBackup(t *testing.T, clientDir string, backup Backup) string {
	t.Helper()

	timestamp := backup.Timestamp
	if timestamp == "" {
		timestamp = "2021-04-11 00:00:00"
	}
	dir := filepath.Join(clientDir, fmt.Sprintf("%07d %s", backup.ID, timestamp))
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0o755); err != nil {
		t.Fatalf("Failed to create backup dir: %v", err)
	}

	mf, err := os.Create(filepath.Join(dir, "manifest.gz"))
	if err != nil {
		t.Fatalf("Failed to create manifest: %v", err)
	}
	gz := gzip.NewWriter(mf)
	w := manifest.NewWriter(gz)

	for _, file := range backup.Files {
		writeDataFile(t, dir, file)

		md5sum := file.RecordedMD5
		if md5sum == "" {
			md5sum = MD5Hex(file.Content)
		}
		size := file.RecordedSize
		if size == 0 {
			size = int64(len(file.Content))
		}
		compression := int64(9)
		if file.Uncompressed {
			compression = 0
		}
		entry := &manifest.Entry{
			Type: manifest.TypePlain,
			Path: file.Path,
			Stat: &manifest.Stat{
				Mode:        0o644,
				NumLinks:    1,
				Size:        size,
				ModTime:     1618099200,
				Compression: compression,
			},
			Data: &manifest.Data{Path: file.Path, Size: size, MD5: md5sum},
		}
		if err := w.WriteEntry(entry); err != nil {
			t.Fatalf("Failed to write manifest entry: %v", err)
		}
	}

	if err := gz.Close(); err != nil {
		t.Fatalf("Failed to close manifest gzip stream: %v", err)
	}
	if err := mf.Close(); err != nil {
		t.Fatalf("Failed to close manifest: %v", err)
	}

	if backup.Partial {
		if err := os.WriteFile(filepath.Join(dir, ".bdup.partial"), nil, 0o644); err != nil {
			t.Fatalf("Failed to create partial marker: %v", err)
		}
	}

	return dir
}

func writeDataFile(t *testing.T, backupDir string, file File) {
	t.Helper()

	path := filepath.Join(backupDir, "data", filepath.FromSlash(file.Path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create data dir: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create data file: %v", err)
	}
	defer f.Close()

	if file.Uncompressed {
		if _, err := f.WriteString(file.Content); err != nil {
			t.Fatalf("Failed to write data file: %v", err)
		}
		return
	}

	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte(file.Content)); err != nil {
		t.Fatalf("Failed to write compressed data file: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("Failed to close compressed data file: %v", err)
	}
}

// BuildArchive creates an archive root containing the given clients. The map
// key is the client name.
func BuildArchive(t *testing.T, clients map[string][]Backup) string {
	t.Helper()

	root := TempDir(t, "bdup-archive")
	for name, backups := range clients {
		clientDir := filepath.Join(root, name)
		if err := os.MkdirAll(clientDir, 0o755); err != nil {
			t.Fatalf("Failed to create client dir: %v", err)
		}
		for _, backup := range backups {
			WriteBackup(t, clientDir, backup)
		}
	}
	return root
}

// CorruptDataFile overwrites the stored bytes of an entry with content that
// no longer matches the recorded checksum. The replacement is written gzip
// compressed so hashing still succeeds.
func CorruptDataFile(t *testing.T, backupDir, relPath, newContent string) {
	t.Helper()
	writeDataFile(t, backupDir, File{Path: relPath, Content: newContent})
}
