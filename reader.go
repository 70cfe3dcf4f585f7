package sstkeys

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Reader instances decode the footer and index of a table and read its
// blocks on demand. All reads are positional; a Reader holds no mutable
// state after construction and is safe for concurrent use if r is.
type Reader struct {
	r    io.ReaderAt
	size int64
	o    *Options

	footer Footer
	index  []IndexEntry
}

// NewReader opens a reader over a table of the given size.
func NewReader(r io.ReaderAt, size int64, o *Options) (*Reader, error) {
	o = o.norm()

	footer, err := ReadFooter(r, size)
	if err != nil {
		return nil, err
	}
	o.Logger.WithFields(logrus.Fields{
		"metaindex": footer.MetaIndex,
		"index":     footer.Index,
	}).Debug("read footer")

	payload, err := readBlock(r, footer.Index, !o.SkipChecksums)
	if err != nil {
		return nil, errors.WithMessage(err, "index block")
	}
	index, err := DecodeIndex(payload)
	releaseBuffer(payload)
	if err != nil {
		return nil, err
	}

	// data blocks must not reach into the footer
	limit := uint64(size) - FooterLen
	for i, ent := range index {
		if h := ent.Handle; !h.fits(limit) {
			return nil, errors.Wrapf(ErrFormat, "index entry %d: block %s points past end of data (%d)", i, h, limit)
		}
	}
	o.Logger.WithField("blocks", len(index)).Debug("decoded index")

	return &Reader{
		r:    r,
		size: size,
		o:    o,

		footer: footer,
		index:  index,
	}, nil
}

// Footer returns the decoded footer.
func (r *Reader) Footer() Footer { return r.footer }

// Size returns the table file size.
func (r *Reader) Size() int64 { return r.size }

// NumBlocks returns the number of data blocks.
func (r *Reader) NumBlocks() int { return len(r.index) }

// Index returns the decoded index entries in file order. The returned slice
// must not be modified.
func (r *Reader) Index() []IndexEntry { return r.index }

// MetaIndex reads and decodes the metaindex block.
func (r *Reader) MetaIndex() ([]MetaEntry, error) {
	payload, err := readBlock(r.r, r.footer.MetaIndex, !r.o.SkipChecksums)
	if err != nil {
		return nil, errors.WithMessage(err, "metaindex block")
	}
	defer releaseBuffer(payload)

	return decodeMetaIndex(payload)
}

// ReadBlock reads, verifies and decompresses the block at h. Callers should
// Release the block once done.
func (r *Reader) ReadBlock(h BlockHandle) (*Block, error) {
	payload, err := readBlock(r.r, h, !r.o.SkipChecksums)
	if err != nil {
		return nil, err
	}

	b, err := NewBlock(payload)
	if err != nil {
		releaseBuffer(payload)
		return nil, errors.WithMessagef(err, "block at %d", h.Offset)
	}
	b.extent = h.Length
	return b, nil
}
