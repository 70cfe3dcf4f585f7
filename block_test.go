package sstkeys_test

import (
	"encoding/binary"

	"github.com/bsm/sstkeys"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Block", func() {
	build := func(interval int, kvs ...string) []byte {
		bb := &blockBuf{interval: interval}
		for i := 0; i < len(kvs); i += 2 {
			bb.add([]byte(kvs[i]), []byte(kvs[i+1]))
		}
		return bb.finish()
	}

	restartTable := func(entries []byte, restarts ...uint32) []byte {
		out := append([]byte(nil), entries...)
		for _, r := range restarts {
			out = binary.LittleEndian.AppendUint32(out, r)
		}
		return binary.LittleEndian.AppendUint32(out, uint32(len(restarts)))
	}

	It("should parse restart tables", func() {
		b, err := sstkeys.NewBlock(build(2, "apple", "1", "apricot", "2", "banana", "3", "blueberry", "4", "cherry", "5"))
		Expect(err).NotTo(HaveOccurred())
		Expect(b.NumRestarts()).To(Equal(3))
		Expect(b.Restarts()[0]).To(Equal(uint32(0)))
	})

	It("should accept empty blocks", func() {
		b, err := sstkeys.NewBlock(build(1))
		Expect(err).NotTo(HaveOccurred())
		Expect(b.NumRestarts()).To(Equal(1))
		Expect(b.Iter(0).Next()).To(BeFalse())
	})

	It("should reject invalid restart tables", func() {
		_, err := sstkeys.NewBlock([]byte{1, 0})
		Expect(err).To(MatchError(sstkeys.ErrFormat))

		_, err = sstkeys.NewBlock(restartTable(nil, 0, 4, 8))
		Expect(err).To(MatchError(sstkeys.ErrFormat))

		entries := build(1, "a", "1", "b", "2", "c", "3")
		entries = entries[:len(entries)-16] // strip restarts (3) and count
		Expect(entries).To(HaveLen(15))

		_, err = sstkeys.NewBlock(restartTable(entries))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("no restart points"))

		_, err = sstkeys.NewBlock(restartTable(entries, 5, 10))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("first restart point is 5"))

		_, err = sstkeys.NewBlock(restartTable(entries, 0, 10, 5))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("not increasing"))

		_, err = sstkeys.NewBlock(restartTable(entries, 0, 5, 15))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("beyond entries"))

		// count larger than the block
		_, err = sstkeys.NewBlock([]byte{0, 0, 0, 0, 9, 0, 0, 0})
		Expect(err).To(MatchError(sstkeys.ErrFormat))
	})

	Describe("BlockIterator", func() {
		It("should reconstruct prefix-compressed keys", func() {
			b, err := sstkeys.NewBlock(build(3, "apple", "1", "apricot", "22", "banana", "333", "blueberry", "4", "cherry", "5"))
			Expect(err).NotTo(HaveOccurred())

			it := b.Iter(1000)
			Expect(it.Next()).To(BeTrue())
			Expect(string(it.Key())).To(Equal("apple"))
			Expect(string(it.Value())).To(Equal("1"))
			Expect(it.Offset()).To(Equal(uint64(1000)))

			// shared=2 ("ap"), unshared=5, value=2
			Expect(it.Next()).To(BeTrue())
			Expect(string(it.Key())).To(Equal("apricot"))
			Expect(string(it.Value())).To(Equal("22"))
			Expect(it.Offset()).To(Equal(uint64(1000 + 3 + 5 + 1)))

			Expect(it.Next()).To(BeTrue())
			Expect(it.Entry()).To(Equal(sstkeys.Entry{Key: []byte("banana"), Value: []byte("333"), Offset: 1000 + 9 + 10}))

			Expect(it.Next()).To(BeTrue())
			Expect(string(it.Key())).To(Equal("blueberry"))
			Expect(it.Next()).To(BeTrue())
			Expect(string(it.Key())).To(Equal("cherry"))

			Expect(it.Next()).To(BeFalse())
			Expect(it.Err()).NotTo(HaveOccurred())
			Expect(it.Next()).To(BeFalse())
		})

		It("should reject shared prefixes at restart points", func() {
			payload := restartTable([]byte{1, 1, 0, 'a'}, 0)
			b, err := sstkeys.NewBlock(payload)
			Expect(err).NotTo(HaveOccurred())

			it := b.Iter(0)
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err()).To(MatchError(sstkeys.ErrFormat))
			Expect(it.Err().Error()).To(ContainSubstring("restart point 0 shares 1 bytes"))
		})

		It("should reject shared prefixes longer than the previous key", func() {
			payload := restartTable([]byte{0, 1, 0, 'a', 3, 1, 0, 'b'}, 0)
			b, err := sstkeys.NewBlock(payload)
			Expect(err).NotTo(HaveOccurred())

			it := b.Iter(0)
			Expect(it.Next()).To(BeTrue())
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err()).To(MatchError(sstkeys.ErrFormat))
			Expect(it.Err().Error()).To(ContainSubstring("shares 3 bytes of a 1 byte key"))
		})

		It("should reject overruns", func() {
			// unterminated varint
			b, err := sstkeys.NewBlock(restartTable([]byte{0, 0x80}, 0))
			Expect(err).NotTo(HaveOccurred())
			it := b.Iter(0)
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err()).To(MatchError(sstkeys.ErrFormat))

			// key longer than block
			b, err = sstkeys.NewBlock(restartTable([]byte{0, 9, 0, 'a'}, 0))
			Expect(err).NotTo(HaveOccurred())
			it = b.Iter(0)
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err().Error()).To(ContainSubstring("key of entry at 0 overruns block"))

			// value longer than block
			b, err = sstkeys.NewBlock(restartTable([]byte{0, 1, 9, 'a'}, 0))
			Expect(err).NotTo(HaveOccurred())
			it = b.Iter(0)
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err().Error()).To(ContainSubstring("value of entry at 0 overruns block"))
		})

		It("should reject entries spanning restart points", func() {
			entries := []byte{0, 1, 2, 'a', 'x', 'y', 0, 1, 0, 'b'}
			b, err := sstkeys.NewBlock(restartTable(entries, 0, 5))
			Expect(err).NotTo(HaveOccurred())

			it := b.Iter(0)
			Expect(it.Next()).To(BeTrue())
			Expect(it.Next()).To(BeFalse())
			Expect(it.Err()).To(MatchError(sstkeys.ErrFormat))
			Expect(it.Err().Error()).To(ContainSubstring("spans restart point 5"))
		})
	})

	Describe("DecodeIndex", func() {
		It("should decode entries", func() {
			bb := &blockBuf{interval: 1}
			bb.add([]byte("key-b"), encodeHandle(nil, sstkeys.BlockHandle{Offset: 0, Length: 300}))
			bb.add([]byte("key-d"), encodeHandle(nil, sstkeys.BlockHandle{Offset: 305, Length: 1 << 20}))

			index, err := sstkeys.DecodeIndex(bb.finish())
			Expect(err).NotTo(HaveOccurred())
			Expect(index).To(Equal([]sstkeys.IndexEntry{
				{Separator: []byte("key-b"), Handle: sstkeys.BlockHandle{Offset: 0, Length: 300}},
				{Separator: []byte("key-d"), Handle: sstkeys.BlockHandle{Offset: 305, Length: 1 << 20}},
			}))
		})

		It("should reject truncated handles", func() {
			bb := &blockBuf{interval: 1}
			bb.add([]byte("key-b"), []byte{0x80, 0x80})

			_, err := sstkeys.DecodeIndex(bb.finish())
			Expect(err).To(MatchError(sstkeys.ErrFormat))
			Expect(err.Error()).To(ContainSubstring("index entry 0"))
		})

		It("should reject malformed blocks", func() {
			_, err := sstkeys.DecodeIndex([]byte{1})
			Expect(err).To(MatchError(sstkeys.ErrFormat))
		})
	})
})
