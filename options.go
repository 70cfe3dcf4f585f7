package sstkeys

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Options define reader and scan specific options.
type Options struct {
	// Concurrency is the maximum number of candidate blocks which are
	// read and decoded in parallel. Results are always emitted in file order.
	// Default: 1.
	Concurrency int

	// SkipChecksums disables block checksum verification.
	// Default: false.
	SkipChecksums bool

	// KeyEncoding is the encoding used by the result serializer.
	// Default: TextKeys.
	KeyEncoding KeyEncoding

	// Logger receives debug traces.
	// Default: discards all output.
	Logger logrus.FieldLogger
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Concurrency < 1 {
		oo.Concurrency = 1
	}
	if !oo.KeyEncoding.isValid() {
		oo.KeyEncoding = TextKeys
	}
	if oo.Logger == nil {
		oo.Logger = discardLogger
	}

	return &oo
}

var discardLogger = func() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}()
