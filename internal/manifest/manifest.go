// Package manifest reads and writes burp's manifest.gz entry format.
//
// A manifest is a sequence of lines, each "<kind><4-hex-digit length><data>\n".
// Several lines make up one entry: a stat record ('r'), the logical path
// ('f', 'd', 'l', ...), the storage path ('t') and the size/checksum record
// ('x') that completes a regular file entry.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FileType classifies a manifest entry.
type FileType int

const (
	TypeUnknown FileType = iota
	TypePlain
	TypeDirectory
	TypeSoftLink
	TypeHardLink
	TypeMetadata
	TypeSpecial
)

// Data describes the stored content of a regular file entry: where its bytes
// live below the backup's data directory, the decompressed size and the md5
// checksum burp recorded at backup time.
type Data struct {
	Path string
	Size int64
	MD5  string
}

// Entry is one complete manifest entry.
type Entry struct {
	Type       FileType
	Path       string
	Stat       *Stat
	Data       *Data
	LinkTarget string
}

// String renders the entry the way "ls -l" would.
func (e *Entry) String() string {
	kind := "-"
	switch e.Type {
	case TypeDirectory:
		kind = "d"
	case TypeSoftLink:
		kind = "l"
	}

	var mode Mode
	var owner, group int64
	if e.Stat != nil {
		mode = e.Stat.Mode
		owner = e.Stat.OwnerID
		group = e.Stat.GroupID
	}
	var size int64
	if e.Data != nil {
		size = e.Data.Size
	}

	out := fmt.Sprintf("%s%s %10d %10d %8d %s", kind, mode, owner, group, size, e.Path)
	if e.Type == TypeSoftLink {
		target := e.LinkTarget
		if target == "" {
			target = "(unknown target)"
		}
		out += " -> " + target
	}
	return out
}

// ErrCorrupt is wrapped into errors reported for unparseable manifest lines.
var ErrCorrupt = errors.New("corrupt manifest")

type line struct {
	kind byte
	data []byte
}

func readLine(r *bufio.Reader) (line, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return line{}, err
	}

	var lengthString [4]byte
	if _, err := io.ReadFull(r, lengthString[:]); err != nil {
		return line{}, fmt.Errorf("read line length: %w", err)
	}
	dataLength, err := strconv.ParseUint(string(lengthString[:]), 16, 16)
	if err != nil {
		return line{}, fmt.Errorf("parse line length %q: %w", lengthString, err)
	}

	data := make([]byte, dataLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return line{}, fmt.Errorf("read line data: %w", err)
	}

	// trailing line break
	if nl, err := r.ReadByte(); err != nil && err != io.EOF {
		return line{}, err
	} else if err == nil && nl != '\n' {
		return line{}, fmt.Errorf("expected line break, found %q", nl)
	}

	return line{kind: kind, data: data}, nil
}

// add merges one manifest line into the entry under construction and reports
// whether the entry is complete.
func (e *Entry) add(l line) (bool, error) {
	switch l.kind {
	case 'r':
		stat, err := ParseStat(l.data)
		if err != nil {
			return false, err
		}
		e.Stat = stat
	case 'm':
		e.Type = TypeMetadata
		e.Path = string(l.data)
	case 'f':
		e.Type = TypePlain
		e.Path = string(l.data)
	case 't':
		if e.Data == nil {
			e.Data = &Data{}
		}
		e.Data.Path = string(l.data)
	case 'L':
		e.Type = TypeHardLink
	case 's':
		e.Type = TypeSpecial
		e.Path = string(l.data)
		return true, nil
	case 'd':
		e.Type = TypeDirectory
		e.Path = string(l.data)
		return true, nil
	case 'l':
		if e.Type == TypeSoftLink {
			e.LinkTarget = string(l.data)
			return true, nil
		}
		e.Type = TypeSoftLink
		e.Path = string(l.data)
	case 'x':
		val := strings.SplitN(string(l.data), ":", 2)
		if len(val) != 2 {
			return false, fmt.Errorf("malformed size/checksum record %q", l.data)
		}
		size, err := strconv.ParseInt(val[0], 10, 64)
		if err != nil {
			return false, fmt.Errorf("malformed size in %q: %w", l.data, err)
		}
		if e.Data == nil {
			e.Data = &Data{}
		}
		e.Data.Size = size
		e.Data.MD5 = val[1]
		return true, nil
	default:
		// burp writes a handful of record kinds this tool has no use for
	}
	return false, nil
}

// Read parses a manifest stream, invoking fn for every complete entry. An
// error returned by fn aborts the read and is returned unchanged.
func Read(r io.Reader, fn func(*Entry) error) error {
	reader := bufio.NewReader(r)
	entry := &Entry{}

	lineno := 0
	for {
		lineno++
		if _, err := reader.Peek(1); err == io.EOF {
			break
		}

		l, err := readLine(reader)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineno, err)
		}
		finished, err := entry.add(l)
		if err != nil {
			return fmt.Errorf("%w: line %d: %v", ErrCorrupt, lineno, err)
		}
		if finished {
			if err := fn(entry); err != nil {
				return err
			}
			entry = &Entry{}
		}
	}
	return nil
}
