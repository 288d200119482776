package manifest

import (
	"fmt"
	"strings"
)

// Stat holds the file metadata burp records for every manifest entry. Field
// order matches the space-separated stat line in the manifest.
type Stat struct {
	ContainingDevice int64
	Inode            int64
	Mode             Mode
	NumLinks         int64
	OwnerID          int64
	GroupID          int64
	DeviceID         int64
	Size             int64
	BlockSize        int64
	Blocks           int64
	AccessTime       int64
	ModTime          int64
	ChangeTime       int64
	ChFlags          int64
	Compression      int64
}

// statFieldCount is the minimum number of fields in a stat line. Field 14
// ("win_attr") is parsed but not kept.
const statFieldCount = 16

// ParseStat decodes a stat line ('r' record) into a Stat.
func ParseStat(data []byte) (*Stat, error) {
	fields := strings.Split(string(data), " ")
	if len(fields) < statFieldCount {
		return nil, fmt.Errorf("too few fields in stat line: expected %d, found %d", statFieldCount, len(fields))
	}

	values := make([]int64, statFieldCount)
	for i := 0; i < statFieldCount; i++ {
		v, err := decodeBase64(fields[i])
		if err != nil {
			return nil, fmt.Errorf("stat field %d: %w", i, err)
		}
		values[i] = v
	}

	return &Stat{
		ContainingDevice: values[0],
		Inode:            values[1],
		Mode:             Mode(values[2] & 0xFFFFFFFF),
		NumLinks:         values[3],
		OwnerID:          values[4],
		GroupID:          values[5],
		DeviceID:         values[6],
		Size:             values[7],
		BlockSize:        values[8],
		Blocks:           values[9],
		AccessTime:       values[10],
		ModTime:          values[11],
		ChangeTime:       values[12],
		ChFlags:          values[13],
		Compression:      values[15],
	}, nil
}

// encode renders the stat line for a Writer. Field 14 is always zero.
func (s *Stat) encode() []byte {
	values := []int64{
		s.ContainingDevice,
		s.Inode,
		int64(s.Mode),
		s.NumLinks,
		s.OwnerID,
		s.GroupID,
		s.DeviceID,
		s.Size,
		s.BlockSize,
		s.Blocks,
		s.AccessTime,
		s.ModTime,
		s.ChangeTime,
		s.ChFlags,
		0,
		s.Compression,
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = encodeBase64(v)
	}
	return []byte(strings.Join(parts, " "))
}

// Compressed reports whether the stored bytes of this entry are gzip
// compressed and must be inflated before hashing.
func (s *Stat) Compressed() bool {
	return s.Compression > 0
}

// Mode is a unix file mode as recorded by burp.
type Mode uint32

// String formats the permission bits the way "ls -l" would.
func (m Mode) String() string {
	var b strings.Builder
	formatModePart(uint32(m&0o700)>>6, &b)
	formatModePart(uint32(m&0o70)>>3, &b)
	formatModePart(uint32(m&0o7), &b)
	readable := b.String()
	if m&0o4000 == 0o4000 {
		readable = readable[:2] + "s" + readable[3:]
	}
	return readable
}

func formatModePart(part uint32, dest *strings.Builder) {
	flags := "rwx"
	for i, bit := range []uint32{4, 2, 1} {
		if part&bit != 0 {
			dest.WriteByte(flags[i])
		} else {
			dest.WriteByte('-')
		}
	}
}

// burp's own base64 encoding of integer values: an optional leading '-'
// followed by characters worth 6 bits each, most significant first, no
// padding.
func decodeBase64(value string) (int64, error) {
	var result int64
	negative := false

	val := value
	if strings.HasPrefix(value, "-") {
		negative = true
		val = value[1:]
	}

	for _, c := range val {
		result <<= 6
		switch {
		case c >= 'A' && c <= 'Z':
			result += int64(c - 'A')
		case c >= 'a' && c <= 'z':
			result += int64(c-'a') + 26
		case c >= '0' && c <= '9':
			result += int64(c-'0') + 52
		case c == '+':
			result += 62
		case c == '/':
			result += 63
		default:
			return 0, fmt.Errorf("invalid base64 character %q in %q", c, value)
		}
	}

	if negative {
		result = -result
	}
	return result, nil
}

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func encodeBase64(value int64) string {
	if value == 0 {
		return "A"
	}
	negative := value < 0
	if negative {
		value = -value
	}
	var digits []byte
	for value > 0 {
		digits = append([]byte{base64Alphabet[value&0x3F]}, digits...)
		value >>= 6
	}
	if negative {
		return "-" + string(digits)
	}
	return string(digits)
}
