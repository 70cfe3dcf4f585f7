package sstkeys

import (
	"encoding/binary"
	"math/bits"

	"github.com/pkg/errors"
)

// Entry is a single decoded key/value pair together with its absolute
// position within the table file.
type Entry struct {
	Key    []byte
	Value  []byte
	Offset uint64
}

// Block is a decoded block payload with its restart table.
type Block struct {
	payload  []byte
	data     []byte // entries region
	restarts []uint32

	plain  uint64 // decoded payload length
	extent uint64 // stored length within the file
}

// NewBlock parses the restart table at the tail of a decoded block payload.
func NewBlock(payload []byte) (*Block, error) {
	if len(payload) < 4 {
		return nil, errors.Wrapf(ErrFormat, "block too short (%d bytes)", len(payload))
	}

	tail := len(payload) - 4
	num := binary.LittleEndian.Uint32(payload[tail:])
	if uint64(num) > uint64(tail/4) {
		return nil, errors.Wrapf(ErrFormat, "restart count %d exceeds block size %d", num, len(payload))
	}

	limit := tail - int(num)*4
	b := &Block{
		payload:  payload,
		data:     payload[:limit],
		restarts: make([]uint32, num),
		plain:    uint64(len(payload)),
		extent:   uint64(len(payload)),
	}
	if num == 0 && limit != 0 {
		return nil, errors.Wrap(ErrFormat, "block has entries but no restart points")
	}

	for i := range b.restarts {
		off := binary.LittleEndian.Uint32(payload[limit+i*4:])
		switch {
		case i == 0 && off != 0:
			return nil, errors.Wrapf(ErrFormat, "first restart point is %d, not 0", off)
		case i != 0 && off <= b.restarts[i-1]:
			return nil, errors.Wrapf(ErrFormat, "restart points not increasing (%d after %d)", off, b.restarts[i-1])
		case i != 0 && int(off) >= limit:
			return nil, errors.Wrapf(ErrFormat, "restart point %d beyond entries (%d)", off, limit)
		}
		b.restarts[i] = off
	}
	return b, nil
}

// NumRestarts returns the number of restart points.
func (b *Block) NumRestarts() int { return len(b.restarts) }

// Restarts returns the restart offsets, relative to the block start.
func (b *Block) Restarts() []uint32 { return b.restarts }

// Iter returns an iterator over the block entries. base is the absolute file
// offset of the block, added to every entry offset.
func (b *Block) Iter(base uint64) *BlockIterator {
	return &BlockIterator{b: b, base: base}
}

// position maps a position within the decoded payload onto the stored
// extent of the block. It is the identity for uncompressed blocks and
// always returns a value in [0, extent) for pos < plain.
func (b *Block) position(pos int) uint64 {
	if b.plain == b.extent {
		return uint64(pos)
	}
	hi, lo := bits.Mul64(uint64(pos), b.extent)
	q, _ := bits.Div64(hi, lo, b.plain)
	return q
}

// Release releases the block payload. The block and any keys or values
// obtained from its iterators must not be used after this call.
func (b *Block) Release() {
	releaseBuffer(b.payload)
	b.payload, b.data = nil, nil
}

// --------------------------------------------------------------------

// BlockIterator walks the entries of a block in storage order. It cannot be
// rewound: a fresh iterator is required to re-scan.
type BlockIterator struct {
	b    *Block
	base uint64

	pos  int // start of the next entry
	rpos int // next restart point to pass

	off int // start of the current entry
	key []byte
	val []byte
	err error
}

// Next advances to the next entry and returns true if successful.
func (it *BlockIterator) Next() bool {
	if it.err != nil || it.pos >= len(it.b.data) {
		return false
	}

	off := it.pos
	atRestart := false
	for it.rpos < len(it.b.restarts) && int(it.b.restarts[it.rpos]) <= off {
		if r := int(it.b.restarts[it.rpos]); r != off {
			return it.fail(errors.Wrapf(ErrFormat, "entry at %d spans restart point %d", it.off, r))
		}
		atRestart = true
		it.rpos++
	}

	p := off
	shared, n := binary.Uvarint(it.b.data[p:])
	if n <= 0 {
		return it.fail(errors.Wrapf(ErrFormat, "bad shared length at %d", p))
	}
	p += n

	unshared, n := binary.Uvarint(it.b.data[p:])
	if n <= 0 {
		return it.fail(errors.Wrapf(ErrFormat, "bad unshared length at %d", p))
	}
	p += n

	vlen, n := binary.Uvarint(it.b.data[p:])
	if n <= 0 {
		return it.fail(errors.Wrapf(ErrFormat, "bad value length at %d", p))
	}
	p += n

	switch {
	case atRestart && shared != 0:
		return it.fail(errors.Wrapf(ErrFormat, "entry at restart point %d shares %d bytes", off, shared))
	case shared > uint64(len(it.key)):
		return it.fail(errors.Wrapf(ErrFormat, "entry at %d shares %d bytes of a %d byte key", off, shared, len(it.key)))
	case unshared > uint64(len(it.b.data)-p):
		return it.fail(errors.Wrapf(ErrFormat, "key of entry at %d overruns block", off))
	case vlen > uint64(len(it.b.data)-p-int(unshared)):
		return it.fail(errors.Wrapf(ErrFormat, "value of entry at %d overruns block", off))
	}

	kend := p + int(unshared)
	vend := kend + int(vlen)
	it.key = append(it.key[:shared], it.b.data[p:kend]...)
	it.val = it.b.data[kend:vend]
	it.off = off
	it.pos = vend
	return true
}

// Key returns the key of the current entry. The slice is only valid until
// the next call to Next.
func (it *BlockIterator) Key() []byte { return it.key }

// Value returns the value of the current entry. Values point into the block
// payload and must be copied if used beyond the block's lifetime.
func (it *BlockIterator) Value() []byte { return it.val }

// Offset returns the absolute file offset of the current entry. Entries of
// compressed blocks are scaled proportionally into the stored extent of
// their block, so offsets never leave [base, base+extent) and preserve
// storage order.
func (it *BlockIterator) Offset() uint64 { return it.base + it.b.position(it.off) }

// Entry returns a copy of the current entry.
func (it *BlockIterator) Entry() Entry {
	return Entry{
		Key:    append([]byte(nil), it.key...),
		Value:  append([]byte(nil), it.val...),
		Offset: it.Offset(),
	}
}

// Err exposes decode errors, if any.
func (it *BlockIterator) Err() error { return it.err }

func (it *BlockIterator) fail(err error) bool {
	it.err = err
	return false
}

// --------------------------------------------------------------------

// IndexEntry references a data block. Separator is greater than or equal
// to the last key of the block and less than the first key of the next.
type IndexEntry struct {
	Separator []byte
	Handle    BlockHandle
}

// DecodeIndex decodes an index block payload into its entries, in file order.
func DecodeIndex(payload []byte) ([]IndexEntry, error) {
	block, err := NewBlock(payload)
	if err != nil {
		return nil, errors.WithMessage(err, "index block")
	}

	var index []IndexEntry
	it := block.Iter(0)
	for it.Next() {
		h, _, err := decodeBlockHandle(it.Value())
		if err != nil {
			return nil, errors.WithMessagef(err, "index entry %d", len(index))
		}
		index = append(index, IndexEntry{
			Separator: append([]byte(nil), it.Key()...),
			Handle:    h,
		})
	}
	if err := it.Err(); err != nil {
		return nil, errors.WithMessage(err, "index block")
	}
	return index, nil
}

// MetaEntry is a named metaindex reference, e.g. a filter block.
type MetaEntry struct {
	Name   string
	Handle BlockHandle
}

func decodeMetaIndex(payload []byte) ([]MetaEntry, error) {
	block, err := NewBlock(payload)
	if err != nil {
		return nil, errors.WithMessage(err, "metaindex block")
	}

	var meta []MetaEntry
	it := block.Iter(0)
	for it.Next() {
		h, _, err := decodeBlockHandle(it.Value())
		if err != nil {
			return nil, errors.WithMessagef(err, "metaindex entry %q", it.Key())
		}
		meta = append(meta, MetaEntry{Name: string(it.Key()), Handle: h})
	}
	if err := it.Err(); err != nil {
		return nil, errors.WithMessage(err, "metaindex block")
	}
	return meta, nil
}
