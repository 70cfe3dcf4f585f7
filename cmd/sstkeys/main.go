// The sstkeys CLI tool prints the keys stored within a byte range of a
// LevelDB-format SSTable file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/bsm/sstkeys"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var versionGitCommit string

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	app := newApp(os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		logrus.WithField("kind", sstkeys.Kind(err)).Error(err)
		os.Exit(1)
	}
}

func newApp(stdout io.Writer) *cli.App {
	return &cli.App{
		Name:      "sstkeys",
		Usage:     "Extract keys from SSTable files by byte offset",
		Version:   versionGitCommit,
		Writer:    stdout,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "info", Usage: "Set log level (panic, fatal, error, warn, info, debug, trace)", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			level, err := logrus.ParseLevel(c.String("log-level"))
			if err != nil {
				return errors.Wrap(err, "parse log level")
			}
			logrus.SetLevel(level)
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "scan",
				Usage:     "Print the keys of all entries within [start, end) as a JSON array",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "start", Value: 0, Usage: "Start offset (inclusive)", EnvVars: []string{"START"}},
					&cli.Uint64Flag{Name: "end", Usage: "End offset (exclusive), defaults to the end of the table", EnvVars: []string{"END"}},
					&cli.StringFlag{Name: "encoding", Value: "text", Usage: "Key encoding (text, base64, hex, steno)", EnvVars: []string{"ENCODING"}},
					&cli.IntFlag{Name: "concurrency", Value: 1, Usage: "Number of blocks decoded in parallel", EnvVars: []string{"CONCURRENCY"}},
					&cli.BoolFlag{Name: "skip-checksums", Usage: "Do not verify block checksums", EnvVars: []string{"SKIP_CHECKSUMS"}},
				},
				Action: runScan,
			},
			{
				Name:      "steno",
				Usage:     "Print packet counts per protocol, port and address of a stenographer index as JSON",
				ArgsUsage: "PATH",
				Flags: []cli.Flag{
					&cli.Uint64Flag{Name: "start", Value: 0, Usage: "Start offset (inclusive)", EnvVars: []string{"START"}},
					&cli.Uint64Flag{Name: "end", Usage: "End offset (exclusive), defaults to the end of the table", EnvVars: []string{"END"}},
				},
				Action: runSteno,
			},
			{
				Name:      "info",
				Usage:     "Print footer, metaindex and block statistics",
				ArgsUsage: "PATH",
				Action:    runInfo,
			},
			{
				Name:      "blocks",
				Usage:     "Print one line per data block: ordinal, offset, length and separator key",
				ArgsUsage: "PATH",
				Action:    runBlocks,
			},
		},
	}
}

func pathArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one PATH argument, got %d", c.NArg())
	}
	return c.Args().First(), nil
}

func runScan(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}

	enc, err := sstkeys.ParseKeyEncoding(c.String("encoding"))
	if err != nil {
		return err
	}

	end := c.Uint64("end")
	if !c.IsSet("end") {
		fi, err := os.Stat(path)
		if err != nil {
			return &sstkeys.IOError{Op: "stat", Path: path, Err: err}
		}
		end = uint64(fi.Size())
	}

	opt := &sstkeys.Options{
		Concurrency:   c.Int("concurrency"),
		SkipChecksums: c.Bool("skip-checksums"),
		KeyEncoding:   enc,
		Logger:        logrus.WithField("path", path),
	}
	out, err := sstkeys.ScanFile(c.Context, path, c.Uint64("start"), end, opt)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(c.App.Writer, out)
	return err
}

func openReader(path string) (*sstkeys.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, &sstkeys.IOError{Op: "open", Path: path, Err: err}
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, &sstkeys.IOError{Op: "stat", Path: path, Err: err}
	}

	r, err := sstkeys.NewReader(f, fi.Size(), &sstkeys.Options{
		Logger: logrus.WithField("path", path),
	})
	if err != nil {
		f.Close()
		return nil, nil, errors.WithMessage(err, path)
	}
	return r, f, nil
}

func runSteno(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}

	r, f, err := openReader(path)
	if err != nil {
		return err
	}
	defer f.Close()

	end := c.Uint64("end")
	if !c.IsSet("end") {
		end = uint64(r.Size())
	}

	stats, err := r.StenoStats(c.Context, c.Uint64("start"), end)
	if err != nil {
		return errors.WithMessage(err, path)
	}

	out, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.App.Writer, string(out))
	return err
}

func runInfo(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}

	r, f, err := openReader(path)
	if err != nil {
		return err
	}
	defer f.Close()

	meta, err := r.MetaIndex()
	if err != nil {
		return err
	}

	var dataBytes uint64
	for _, ent := range r.Index() {
		dataBytes += ent.Handle.Length + sstkeys.BlockTrailerLen
	}

	w := c.App.Writer
	ft := r.Footer()
	fmt.Fprintf(w, "size:       %s (%d bytes)\n", humanize.IBytes(uint64(r.Size())), r.Size())
	fmt.Fprintf(w, "blocks:     %d (%s)\n", r.NumBlocks(), humanize.IBytes(dataBytes))
	fmt.Fprintf(w, "index:      %s\n", ft.Index)
	fmt.Fprintf(w, "metaindex:  %s\n", ft.MetaIndex)
	for _, m := range meta {
		fmt.Fprintf(w, "  %-40s %s\n", m.Name, m.Handle)
	}

	switch v, err := r.StenoVersion(); {
	case err == nil:
		fmt.Fprintf(w, "steno:      %s\n", v)
	case errors.Is(err, sstkeys.ErrVersion):
		logrus.WithField("path", path).Debug(err)
	default:
		return err
	}
	return nil
}

func runBlocks(c *cli.Context) error {
	path, err := pathArg(c)
	if err != nil {
		return err
	}

	r, f, err := openReader(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for i, ent := range r.Index() {
		sep, err := sstkeys.EncodeKeys([][]byte{ent.Separator}, sstkeys.TextKeys)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%d\t%d\t%d\t%s\n", i, ent.Handle.Offset, ent.Handle.Length, sep[1:len(sep)-1])
	}
	return nil
}
