package sstkeys_test

import (
	"bytes"

	"github.com/bsm/sstkeys"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("BlockHandle", func() {
	It("should detect strict overlaps", func() {
		h := sstkeys.BlockHandle{Offset: 100, Length: 50}
		Expect(h.End()).To(Equal(uint64(150)))
		Expect(h.String()).To(Equal("[100,150)"))

		Expect(h.Overlaps(0, 101)).To(BeTrue())
		Expect(h.Overlaps(149, 200)).To(BeTrue())
		Expect(h.Overlaps(120, 130)).To(BeTrue())
		Expect(h.Overlaps(0, 1000)).To(BeTrue())

		Expect(h.Overlaps(0, 100)).To(BeFalse())
		Expect(h.Overlaps(150, 200)).To(BeFalse())
		Expect(h.Overlaps(120, 120)).To(BeFalse())
	})
})

var _ = Describe("ReadFooter", func() {
	var subject *fixture

	BeforeEach(func() {
		subject = twoBlockFixture()
	})

	It("should decode handles", func() {
		ft, err := sstkeys.ReadFooter(bytes.NewReader(subject.Data), int64(len(subject.Data)))
		Expect(err).NotTo(HaveOccurred())
		Expect(ft.MetaIndex).To(Equal(subject.Meta))
		Expect(ft.Index).To(Equal(subject.Index))
	})

	It("should reject small files", func() {
		data := subject.Data[len(subject.Data)-47:]
		_, err := sstkeys.ReadFooter(bytes.NewReader(data), int64(len(data)))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("file too small (47 bytes)"))
	})

	It("should reject bad magic", func() {
		subject.Data[len(subject.Data)-1]++
		_, err := sstkeys.ReadFooter(bytes.NewReader(subject.Data), int64(len(subject.Data)))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("bad magic"))
	})

	It("should reject handles beyond the end of file", func() {
		// keep the first data block, then append the original footer
		data := append([]byte(nil), subject.Data[:100]...)
		data = append(data, subject.Data[len(subject.Data)-sstkeys.FooterLen:]...)

		_, err := sstkeys.ReadFooter(bytes.NewReader(data), int64(len(data)))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
		Expect(err.Error()).To(ContainSubstring("points past end of data"))
	})

	It("should reject malformed handles", func() {
		data := make([]byte, sstkeys.FooterLen)
		for i := 0; i < 40; i++ {
			data[i] = 0xff // unterminated varint
		}
		copy(data[40:], tableMagic)

		_, err := sstkeys.ReadFooter(bytes.NewReader(data), int64(len(data)))
		Expect(err).To(MatchError(sstkeys.ErrFormat))
	})
})
