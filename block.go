package sstkeys

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/leveldb/crc"
	"github.com/golang/snappy"
	"github.com/pierrec/lz4"
	"github.com/pkg/errors"
)

// readBlock reads the block referenced by h, verifies its trailer and
// returns the decompressed payload.
func readBlock(r io.ReaderAt, h BlockHandle, verify bool) ([]byte, error) {
	n := int(h.Length)
	if uint64(n) != h.Length || n < 0 {
		return nil, errors.Wrapf(ErrFormat, "block length %d out of range", h.Length)
	}

	raw := fetchBuffer(n + BlockTrailerLen)
	if err := readFull(r, raw, int64(h.Offset)); err != nil {
		releaseBuffer(raw)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrapf(ErrFormat, "block [%d,%d) truncated", h.Offset, h.End())
		}
		return nil, &IOError{Op: "read block", Err: err}
	}

	if verify {
		stored := binary.LittleEndian.Uint32(raw[n+1:])
		if actual := crc.New(raw[:n+1]).Value(); actual != stored {
			releaseBuffer(raw)
			return nil, errors.Wrapf(ErrCorruption, "block at %d: stored %08x, computed %08x", h.Offset, stored, actual)
		}
	}

	c := Compression(raw[n])
	if c == NoCompression {
		return raw[:n], nil
	}

	defer releaseBuffer(raw)
	return decompress(c, raw[:n])
}

// readFull reads len(p) bytes at off. A full read reported together with
// io.EOF is not an error.
func readFull(r io.ReaderAt, p []byte, off int64) error {
	n, err := r.ReadAt(p, off)
	if err == io.EOF && n == len(p) {
		return nil
	}
	return err
}

func decompress(c Compression, src []byte) ([]byte, error) {
	switch c {
	case SnappyCompression:
		sz, err := snappy.DecodedLen(src)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "snappy: %v", err)
		} else if sz > maxBlockSize {
			return nil, errors.Wrapf(ErrFormat, "snappy: decoded length %d too large", sz)
		}
		plain, err := snappy.Decode(make([]byte, sz), src)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "snappy: %v", err)
		}
		return plain, nil
	case LZ4Compression:
		sz, n := binary.Uvarint(src)
		if n <= 0 || sz > maxBlockSize {
			return nil, errors.Wrap(ErrFormat, "lz4: bad decompressed length")
		}
		plain := make([]byte, int(sz))
		m, err := lz4.UncompressBlock(src[n:], plain)
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "lz4: %v", err)
		}
		if m != len(plain) {
			return nil, errors.Wrapf(ErrFormat, "lz4: decoded %d bytes, expected %d", m, sz)
		}
		return plain, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedCompression, "tag %d", byte(c))
}

// maxBlockSize caps the decompressed size announced by a block header.
const maxBlockSize = 1 << 30

// --------------------------------------------------------------------

var bufPool sync.Pool

func fetchBuffer(sz int) []byte {
	if v := bufPool.Get(); v != nil {
		if p := v.([]byte); sz <= cap(p) {
			return p[:sz]
		}
	}
	return make([]byte, sz)
}

func releaseBuffer(p []byte) {
	if cap(p) != 0 {
		bufPool.Put(p)
	}
}
