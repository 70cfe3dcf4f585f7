package sstkeys

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Scan opens the table at path and returns the serialized keys of all
// entries whose absolute file offset lies within [start, end).
func Scan(path string, start, end uint64) (string, error) {
	return ScanFile(context.Background(), path, start, end, nil)
}

// ScanFile is like Scan, but accepts a context and options. The file is
// opened and closed within the call.
func ScanFile(ctx context.Context, path string, start, end uint64, o *Options) (string, error) {
	if end < start {
		return "", errors.Wrapf(ErrInvalidRange, "[%d,%d)", start, end)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", &IOError{Op: "stat", Path: path, Err: err}
	}

	r, err := NewReader(f, fi.Size(), o)
	if err != nil {
		return "", errors.WithMessage(err, path)
	}

	keys, err := r.Scan(ctx, start, end)
	if err != nil {
		return "", errors.WithMessage(err, path)
	}
	return EncodeKeys(keys, r.o.KeyEncoding)
}

// --------------------------------------------------------------------

// Candidates returns the handles of all data blocks overlapping [start, end),
// in file order.
func (r *Reader) Candidates(start, end uint64) []BlockHandle {
	var cands []BlockHandle
	for _, ent := range r.index {
		if ent.Handle.Overlaps(start, end) {
			cands = append(cands, ent.Handle)
		}
	}
	return cands
}

// Scan returns the keys of all entries whose absolute file offset lies
// within [start, end), in index order. Any block failure aborts the scan.
func (r *Reader) Scan(ctx context.Context, start, end uint64) ([][]byte, error) {
	ents, err := r.scan(ctx, start, end, false)
	if err != nil {
		return nil, err
	}

	keys := make([][]byte, len(ents))
	for i, ent := range ents {
		keys[i] = ent.Key
	}
	return keys, nil
}

// ScanEntries is like Scan but returns full entries, including values.
func (r *Reader) ScanEntries(ctx context.Context, start, end uint64) ([]Entry, error) {
	return r.scan(ctx, start, end, true)
}

func (r *Reader) scan(ctx context.Context, start, end uint64, values bool) ([]Entry, error) {
	if end < start {
		return nil, errors.Wrapf(ErrInvalidRange, "[%d,%d)", start, end)
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	cands := r.Candidates(start, end)
	r.o.Logger.WithFields(logrus.Fields{
		"start":      start,
		"end":        end,
		"candidates": len(cands),
	}).Debug("selected blocks")

	if r.o.Concurrency > 1 && len(cands) > 1 {
		return r.scanParallel(ctx, cands, start, end, values)
	}

	var res []Entry
	for _, h := range cands {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}

		ents, err := r.scanBlock(h, start, end, values)
		if err != nil {
			return nil, err
		}
		res = append(res, ents...)
	}
	return res, nil
}

func (r *Reader) scanParallel(ctx context.Context, cands []BlockHandle, start, end uint64, values bool) ([]Entry, error) {
	slots := make([][]Entry, len(cands))

	// blocks past the lowest failed one are skipped, earlier ones always run
	var mu sync.Mutex
	failed := len(cands)
	var failure error

	var g errgroup.Group
	g.SetLimit(r.o.Concurrency)
	for i, h := range cands {
		i, h := i, h
		g.Go(func() error {
			mu.Lock()
			skip := i > failed
			mu.Unlock()
			if skip {
				return nil
			}

			var err error
			if err = ctx.Err(); err != nil {
				err = cancelled(err)
			} else {
				slots[i], err = r.scanBlock(h, start, end, values)
			}
			if err == nil {
				return nil
			}

			mu.Lock()
			if i < failed {
				failed, failure = i, err
			}
			mu.Unlock()
			return err
		})
	}

	// Wait reports whichever failure finished first; the lowest block wins
	if err := g.Wait(); err != nil {
		return nil, failure
	}

	var res []Entry
	for _, ents := range slots {
		res = append(res, ents...)
	}
	return res, nil
}

func (r *Reader) scanBlock(h BlockHandle, start, end uint64, values bool) ([]Entry, error) {
	b, err := r.ReadBlock(h)
	if err != nil {
		return nil, errors.WithMessagef(err, "data block %s", h)
	}
	defer b.Release()

	var ents []Entry
	it := b.Iter(h.Offset)
	for it.Next() {
		if off := it.Offset(); off < start || off >= end {
			continue
		}

		ent := Entry{Key: append([]byte(nil), it.Key()...), Offset: it.Offset()}
		if values {
			ent.Value = append([]byte(nil), it.Value()...)
		}
		ents = append(ents, ent)
	}
	if err := it.Err(); err != nil {
		return nil, errors.WithMessagef(err, "data block %s", h)
	}

	r.o.Logger.WithFields(logrus.Fields{
		"block":    h.String(),
		"restarts": b.NumRestarts(),
		"matched":  len(ents),
	}).Debug("decoded block")
	return ents, nil
}
