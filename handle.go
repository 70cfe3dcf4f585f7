package sstkeys

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// BlockHandle locates a block within the table file. Length excludes the
// block trailer.
type BlockHandle struct {
	Offset uint64
	Length uint64
}

// End returns the end offset of the block payload.
func (h BlockHandle) End() uint64 { return h.Offset + h.Length }

func (h BlockHandle) String() string {
	return fmt.Sprintf("[%d,%d)", h.Offset, h.Offset+h.Length)
}

// fits reports whether the block and its trailer lie within [0, limit).
func (h BlockHandle) fits(limit uint64) bool {
	return h.Offset <= limit && h.Length <= limit-h.Offset && limit-h.Offset-h.Length >= BlockTrailerLen
}

// Overlaps reports whether [Offset, End) strictly intersects [start, end).
// Blocks that merely touch the range are not considered overlapping.
func (h BlockHandle) Overlaps(start, end uint64) bool {
	return start < end && h.Offset < end && h.End() > start
}

// decodeBlockHandle decodes a handle from the head of src and returns the
// number of bytes consumed.
func decodeBlockHandle(src []byte) (BlockHandle, int, error) {
	off, n := binary.Uvarint(src)
	if n <= 0 {
		return BlockHandle{}, 0, errors.Wrap(ErrFormat, "bad block handle offset")
	}
	length, m := binary.Uvarint(src[n:])
	if m <= 0 {
		return BlockHandle{}, 0, errors.Wrap(ErrFormat, "bad block handle length")
	}
	return BlockHandle{Offset: off, Length: length}, n + m, nil
}

// --------------------------------------------------------------------

// Footer is the decoded fixed-size table trailer.
type Footer struct {
	MetaIndex BlockHandle
	Index     BlockHandle
}

// ReadFooter reads and decodes the footer of a table of the given size.
func ReadFooter(r io.ReaderAt, size int64) (Footer, error) {
	if size < FooterLen {
		return Footer{}, errors.Wrapf(ErrFormat, "file too small (%d bytes)", size)
	}

	buf := make([]byte, FooterLen)
	if err := readFull(r, buf, size-FooterLen); err != nil {
		return Footer{}, &IOError{Op: "read footer", Err: err}
	}

	if !bytes.Equal(buf[FooterLen-len(magic):], magic) {
		return Footer{}, errors.Wrapf(ErrFormat, "bad magic %x", buf[FooterLen-len(magic):])
	}

	handles := buf[:2*maxHandleLen]
	meta, n, err := decodeBlockHandle(handles)
	if err != nil {
		return Footer{}, errors.WithMessage(err, "footer metaindex")
	}
	index, _, err := decodeBlockHandle(handles[n:])
	if err != nil {
		return Footer{}, errors.WithMessage(err, "footer index")
	}

	ft := Footer{MetaIndex: meta, Index: index}
	if err := ft.validate(uint64(size)); err != nil {
		return Footer{}, err
	}
	return ft, nil
}

func (f Footer) validate(size uint64) error {
	limit := size - FooterLen
	for _, h := range []BlockHandle{f.MetaIndex, f.Index} {
		if !h.fits(limit) {
			return errors.Wrapf(ErrFormat, "block handle %s points past end of data (%d)", h, limit)
		}
	}
	return nil
}
