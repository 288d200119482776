package manifest

import (
	"fmt"
	"io"
)

// Writer produces manifest streams in the same line format Read consumes.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) writeLine(kind byte, data []byte) error {
	if len(data) > 0xFFFF {
		return fmt.Errorf("manifest line too long: %d bytes", len(data))
	}
	if _, err := fmt.Fprintf(w.w, "%c%04x%s\n", kind, len(data), data); err != nil {
		return fmt.Errorf("write manifest line: %w", err)
	}
	return nil
}

// WriteEntry emits all lines for one entry. The entry must carry a Stat;
// regular files additionally need Data with storage path, size and checksum.
func (w *Writer) WriteEntry(e *Entry) error {
	if e.Stat != nil {
		if err := w.writeLine('r', e.Stat.encode()); err != nil {
			return err
		}
	}

	switch e.Type {
	case TypeDirectory:
		return w.writeLine('d', []byte(e.Path))
	case TypeSpecial:
		return w.writeLine('s', []byte(e.Path))
	case TypeSoftLink:
		if err := w.writeLine('l', []byte(e.Path)); err != nil {
			return err
		}
		return w.writeLine('l', []byte(e.LinkTarget))
	case TypeHardLink:
		if err := w.writeLine('L', nil); err != nil {
			return err
		}
		fallthrough
	default:
		if err := w.writeLine('f', []byte(e.Path)); err != nil {
			return err
		}
		if e.Data == nil {
			return nil
		}
		if err := w.writeLine('t', []byte(e.Data.Path)); err != nil {
			return err
		}
		record := fmt.Sprintf("%d:%s", e.Data.Size, e.Data.MD5)
		return w.writeLine('x', []byte(record))
	}
}
