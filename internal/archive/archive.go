// Package archive is a read-only model of a burp storage tree: clients at
// the top level, timestamped backup directories below them, and per-backup
// file entries described by the backup's manifest.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/UjOwtuc/bdup/internal/manifest"
)

var (
	// ErrMalformed marks directory layouts that do not match the expected
	// client/backup/manifest structure.
	ErrMalformed = errors.New("malformed archive layout")
	// ErrUnreadable marks permission or I/O failures while reading the tree.
	ErrUnreadable = errors.New("unreadable archive path")
)

const (
	manifestName  = "manifest.gz"
	partialMarker = ".bdup.partial"
	dataDir       = "data"
)

// FileEntry is one stored file inside a backup, with the metadata recorded
// at backup time and the concrete location of its bytes on disk.
type FileEntry struct {
	Client    string
	BackupID  uint64
	Timestamp string

	// Path is the logical path inside the backup, DataPath the storage
	// path below the backup's data directory.
	Path     string
	DataPath string

	Size        int64
	RecordedMD5 string
	Compressed  bool
	ModTime     time.Time

	backupPath string
}

// StoragePath returns the absolute path of the entry's stored bytes.
func (e *FileEntry) StoragePath() string {
	return filepath.Join(e.backupPath, dataDir, filepath.FromSlash(e.DataPath))
}

// Ident identifies the entry in reports: client, backup id and logical path.
func (e *FileEntry) Ident() string {
	return fmt.Sprintf("%s/%07d/%s", e.Client, e.BackupID, e.Path)
}

// StorageIdentity returns the device and inode of the entry's stored bytes.
// This is the storage-side identity, not the inode recorded in the manifest,
// which belongs to the machine the backup was taken from.
func (e *FileEntry) StorageIdentity() (dev, ino uint64, err error) {
	return statIdentity(e.StoragePath())
}

// Client is one named subtree of the archive.
type Client struct {
	Name string
	Path string
}

// Backup is one completed backup run of a client.
type Backup struct {
	Client    string
	ID        uint64
	Timestamp string
	Path      string
}

// DirName renders the backup's directory name, "0000001 2021-04-11 00:00:00".
func (b *Backup) DirName() string {
	return fmt.Sprintf("%07d %s", b.ID, b.Timestamp)
}

// Finished reports whether the backup completed: it has a manifest and no
// partial marker left behind by an interrupted transfer.
func (b *Backup) Finished() bool {
	if _, err := os.Stat(filepath.Join(b.Path, manifestName)); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(b.Path, partialMarker))
	return os.IsNotExist(err)
}

// parseBackupName splits a backup directory name into its numeric id and
// timestamp. Names are "%07d %s".
func parseBackupName(name string) (uint64, string, error) {
	if len(name) < 8 {
		return 0, "", fmt.Errorf("backup name %q too short", name)
	}
	var id uint64
	if _, err := fmt.Sscanf(name[0:7], "%d", &id); err != nil {
		return 0, "", fmt.Errorf("backup name %q has no numeric id: %w", name, err)
	}
	return id, name[8:], nil
}

// Archive is the root of a backup store.
type Archive struct {
	Root string

	// IncludeClients restricts enumeration to the named clients. Empty
	// means all clients.
	IncludeClients []string
}

// Open validates that the archive root is a readable directory. A bad root
// is the one fatal archive condition.
func Open(root string) (*Archive, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMalformed, root)
	}
	return &Archive{Root: root}, nil
}

func (a *Archive) includes(client string) bool {
	if len(a.IncludeClients) == 0 {
		return true
	}
	for _, name := range a.IncludeClients {
		if name == client {
			return true
		}
	}
	return false
}

// Clients lists the archive's client subtrees in name order.
func (a *Archive) Clients() ([]Client, error) {
	entries, err := os.ReadDir(a.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadable, a.Root, err)
	}

	var clients []Client
	for _, entry := range entries {
		if !entry.IsDir() || !a.includes(entry.Name()) {
			continue
		}
		clients = append(clients, Client{
			Name: entry.Name(),
			Path: filepath.Join(a.Root, entry.Name()),
		})
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Name < clients[j].Name })
	return clients, nil
}

// Backups lists a client's finished backups in id order. Directories that do
// not look like backups are reported through warn and skipped.
func (a *Archive) Backups(client Client, warn func(error)) ([]Backup, error) {
	entries, err := os.ReadDir(client.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: client %s: %v", ErrUnreadable, client.Name, err)
	}

	var backups []Backup
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, timestamp, err := parseBackupName(entry.Name())
		if err != nil {
			warnf(warn, "%w: client %s: %v", ErrMalformed, client.Name, err)
			continue
		}
		backup := Backup{
			Client:    client.Name,
			ID:        id,
			Timestamp: timestamp,
			Path:      filepath.Join(client.Path, entry.Name()),
		}
		if !backup.Finished() {
			warnf(warn, "skipping unfinished backup %s/%s", client.Name, backup.DirName())
			continue
		}
		backups = append(backups, backup)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].ID < backups[j].ID })
	return backups, nil
}

// Manifest streams every entry of the backup's manifest, directories and
// links included.
func (b *Backup) Manifest(fn func(*manifest.Entry) error) error {
	f, err := os.Open(filepath.Join(b.Path, manifestName))
	if err != nil {
		return fmt.Errorf("%w: backup %s/%s: %v", ErrUnreadable, b.Client, b.DirName(), err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: backup %s/%s: bad manifest: %v", ErrMalformed, b.Client, b.DirName(), err)
	}
	defer gz.Close()

	err = manifest.Read(gz, fn)
	if err != nil && errors.Is(err, manifest.ErrCorrupt) {
		return fmt.Errorf("%w: backup %s/%s: %v", ErrMalformed, b.Client, b.DirName(), err)
	}
	return err
}

// Entries streams the backup's regular file entries in manifest order.
func (b *Backup) Entries(fn func(FileEntry) error) error {
	return b.Manifest(func(entry *manifest.Entry) error {
		if entry.Type != manifest.TypePlain || entry.Data == nil {
			return nil
		}
		file := FileEntry{
			Client:      b.Client,
			BackupID:    b.ID,
			Timestamp:   b.Timestamp,
			Path:        entry.Path,
			DataPath:    entry.Data.Path,
			Size:        entry.Data.Size,
			RecordedMD5: entry.Data.MD5,
			backupPath:  b.Path,
		}
		if entry.Stat != nil {
			file.Compressed = entry.Stat.Compressed()
			file.ModTime = time.Unix(entry.Stat.ModTime, 0)
		}
		return fn(file)
	})
}

// Enumerate walks the whole archive, clients in name order and backups in id
// order, yielding file entries in a stable order. Subtree-level failures go
// to warn and skip only the affected subtree; fn errors abort the walk.
func (a *Archive) Enumerate(ctx context.Context, fn func(FileEntry) error, warn func(error)) error {
	clients, err := a.Clients()
	if err != nil {
		return err
	}

	for _, client := range clients {
		backups, err := a.Backups(client, warn)
		if err != nil {
			warnf(warn, "%v", err)
			continue
		}
		for _, backup := range backups {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := backup.Entries(func(entry FileEntry) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return fn(entry)
			})
			if err != nil && (errors.Is(err, ErrUnreadable) || errors.Is(err, ErrMalformed)) {
				warnf(warn, "%v", err)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func warnf(warn func(error), format string, args ...interface{}) {
	if warn != nil {
		warn(fmt.Errorf(format, args...))
	}
}
