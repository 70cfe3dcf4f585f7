package sstkeys

import (
	"fmt"

	"github.com/pkg/errors"
)

// magic is the little-endian encoding of 0xdb4775248b80fb57.
var magic = []byte{0x57, 0xfb, 0x80, 0x8b, 0x24, 0x75, 0x47, 0xdb}

const (
	// FooterLen is the fixed size of the table footer.
	FooterLen = 48
	// BlockTrailerLen is the size of the compression tag plus checksum
	// following every block.
	BlockTrailerLen = 5

	maxHandleLen = 20 // two uvarint64s
)

// Compression is the block compression tag.
type Compression byte

// Supported compression tags.
const (
	NoCompression     Compression = 0
	SnappyCompression Compression = 1
	LZ4Compression    Compression = 4
)

func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	case LZ4Compression:
		return "lz4"
	}
	return fmt.Sprintf("unknown(%d)", byte(c))
}

var (
	// ErrIO is matched by every error caused by opening or reading the file.
	ErrIO = errors.New("sstkeys: i/o failure")
	// ErrFormat is returned when the table encoding is structurally invalid.
	ErrFormat = errors.New("sstkeys: invalid table format")
	// ErrCorruption is returned on block checksum mismatches.
	ErrCorruption = errors.New("sstkeys: checksum mismatch")
	// ErrUnsupportedCompression is returned for unknown compression tags.
	ErrUnsupportedCompression = errors.New("sstkeys: unsupported compression")
	// ErrCancelled is returned when a scan is interrupted by its context.
	ErrCancelled = errors.New("sstkeys: scan cancelled")
	// ErrInvalidRange is returned when end < start.
	ErrInvalidRange = errors.New("sstkeys: invalid scan range")
	// ErrVersion is returned for stenographer indexes without a supported
	// version entry.
	ErrVersion = errors.New("sstkeys: unsupported index version")
)

// IOError records a failed file operation.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return "sstkeys: " + e.Op + ": " + e.Err.Error()
	}
	return "sstkeys: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// Kind classifies err into one of: io, format, corruption, compression,
// cancelled, range, version or unknown.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrCorruption):
		return "corruption"
	case errors.Is(err, ErrUnsupportedCompression):
		return "compression"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrInvalidRange):
		return "range"
	case errors.Is(err, ErrVersion):
		return "version"
	case errors.Is(err, ErrIO):
		return "io"
	}
	return "unknown"
}

// CancelError wraps the context error which interrupted a scan.
type CancelError struct {
	Err error
}

func (e *CancelError) Error() string { return ErrCancelled.Error() + ": " + e.Err.Error() }

// Unwrap returns the context error.
func (e *CancelError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCancelled.
func (e *CancelError) Is(target error) bool { return target == ErrCancelled }

func cancelled(err error) error {
	return &CancelError{Err: err}
}
