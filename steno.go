package sstkeys

import (
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StenoMajorVersion is the supported major version of stenographer index
// tables.
const StenoMajorVersion = 2

// Stenographer index key types. The type is the first byte of the key and
// is followed by the big-endian value.
const (
	StenoProtocol byte = 1 // 1-byte IP protocol number
	StenoPort     byte = 2 // 2-byte port
	StenoIPv4     byte = 4 // 4-byte address
	StenoIPv6     byte = 6 // 16-byte address
)

var stenoVersionKey = []byte{0}

// StenoVersion is the version entry of a stenographer index table.
type StenoVersion struct {
	Major uint32
	Minor uint32
}

func (v StenoVersion) String() string {
	return "v" + strconv.FormatUint(uint64(v.Major), 10) + "." + strconv.FormatUint(uint64(v.Minor), 10)
}

// StenoVersion reads the version entry of a stenographer index. The entry is
// stored under key 0x00 and therefore always leads the first data block.
// Tables without a supported version entry fail with ErrVersion.
func (r *Reader) StenoVersion() (StenoVersion, error) {
	if len(r.index) == 0 {
		return StenoVersion{}, errors.Wrap(ErrVersion, "table has no data blocks")
	}

	h := r.index[0].Handle
	b, err := r.ReadBlock(h)
	if err != nil {
		return StenoVersion{}, errors.WithMessagef(err, "data block %s", h)
	}
	defer b.Release()

	it := b.Iter(h.Offset)
	if !it.Next() {
		if err := it.Err(); err != nil {
			return StenoVersion{}, errors.WithMessagef(err, "data block %s", h)
		}
		return StenoVersion{}, errors.Wrap(ErrVersion, "missing version entry")
	}
	if !bytes.Equal(it.Key(), stenoVersionKey) {
		return StenoVersion{}, errors.Wrap(ErrVersion, "missing version entry")
	}

	val := it.Value()
	if len(val) != 8 {
		return StenoVersion{}, errors.Wrapf(ErrVersion, "version entry has %d bytes, expected 8", len(val))
	}

	v := StenoVersion{
		Major: binary.BigEndian.Uint32(val[:4]),
		Minor: binary.BigEndian.Uint32(val[4:]),
	}
	if v.Major != StenoMajorVersion {
		return v, errors.Wrapf(ErrVersion, "major version %d, expected %d", v.Major, StenoMajorVersion)
	}
	return v, nil
}

// --------------------------------------------------------------------

// StenoStats counts packet positions per typed index key. Every value of a
// stenographer index holds a list of 4-byte packet positions.
type StenoStats struct {
	Protocols map[int]int    `json:"protocols"`
	Ports     map[int]int    `json:"ports"`
	IPv4      map[string]int `json:"ipv4"`
	IPv6      map[string]int `json:"ipv6"`
}

func newStenoStats() *StenoStats {
	return &StenoStats{
		Protocols: make(map[int]int),
		Ports:     make(map[int]int),
		IPv4:      make(map[string]int),
		IPv6:      make(map[string]int),
	}
}

// Add counts a single index entry. Untyped keys are ignored.
func (s *StenoStats) Add(key, value []byte) {
	if !validStenoKey(key) {
		return
	}

	n := len(value) / 4
	switch key[0] {
	case StenoProtocol:
		s.Protocols[int(key[1])] += n
	case StenoPort:
		s.Ports[int(binary.BigEndian.Uint16(key[1:]))] += n
	case StenoIPv4:
		s.IPv4[net.IP(key[1:]).String()] += n
	case StenoIPv6:
		s.IPv6[net.IP(key[1:]).String()] += n
	}
}

// StenoStats verifies the index version and aggregates the packet counts of
// all entries within [start, end).
func (r *Reader) StenoStats(ctx context.Context, start, end uint64) (*StenoStats, error) {
	if _, err := r.StenoVersion(); err != nil {
		return nil, err
	}

	ents, err := r.ScanEntries(ctx, start, end)
	if err != nil {
		return nil, err
	}

	stats := newStenoStats()
	for _, ent := range ents {
		stats.Add(ent.Key, ent.Value)
	}
	return stats, nil
}

// --------------------------------------------------------------------

func validStenoKey(key []byte) bool {
	if len(key) == 0 {
		return false
	}

	switch key[0] {
	case StenoProtocol:
		return len(key) == 2
	case StenoPort:
		return len(key) == 3
	case StenoIPv4:
		return len(key) == 1+net.IPv4len
	case StenoIPv6:
		return len(key) == 1+net.IPv6len
	}
	return false
}

// FormatStenoKey renders a typed index key as "proto:6", "port:443",
// "ipv4:10.0.0.1" or "ipv6:2001:db8::1". It returns false for keys of any
// other type or length.
func FormatStenoKey(key []byte) (string, bool) {
	if !validStenoKey(key) {
		return "", false
	}

	switch key[0] {
	case StenoProtocol:
		return "proto:" + strconv.Itoa(int(key[1])), true
	case StenoPort:
		return "port:" + strconv.Itoa(int(binary.BigEndian.Uint16(key[1:]))), true
	case StenoIPv4:
		return "ipv4:" + net.IP(key[1:]).String(), true
	default:
		return "ipv6:" + net.IP(key[1:]).String(), true
	}
}

// ParseStenoKey parses the output of FormatStenoKey.
func ParseStenoKey(s string) ([]byte, error) {
	typ, val, ok := strings.Cut(s, ":")
	if !ok {
		return nil, errors.Errorf("sstkeys: bad steno key %q", s)
	}

	switch typ {
	case "proto":
		n, err := strconv.ParseUint(val, 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "sstkeys: bad steno key %q", s)
		}
		return []byte{StenoProtocol, byte(n)}, nil
	case "port":
		n, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "sstkeys: bad steno key %q", s)
		}
		return binary.BigEndian.AppendUint16([]byte{StenoPort}, uint16(n)), nil
	case "ipv4":
		if ip := net.ParseIP(val).To4(); ip != nil {
			return append([]byte{StenoIPv4}, ip...), nil
		}
	case "ipv6":
		if ip := net.ParseIP(val).To16(); ip != nil {
			return append([]byte{StenoIPv6}, ip...), nil
		}
	}
	return nil, errors.Errorf("sstkeys: bad steno key %q", s)
}
