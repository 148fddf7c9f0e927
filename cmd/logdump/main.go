package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/KevoDB/reveldb/pkg/wal"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "logdump - print and verify reveldb log files\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: logdump [-verify] [-archive out.zst] FILE\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "FILE may be a zstd archive written by -archive (.zst suffix).\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Options:\n")
		flag.PrintDefaults()
	}

	verify := flag.Bool("verify", false, "Only verify the log and print a summary")
	archive := flag.String("archive", "", "Write a zstd compressed copy of the log to this path")
	level := flag.Int("level", int(zstd.SpeedDefault), "Compression level for -archive: 1 fastest, 2 default, 3 better, 4 best")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	encLevel, err := parseLevel(*level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(2)
	}

	code, err := run(os.Stdout, flag.Arg(0), *verify, *archive, encLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
	os.Exit(code)
}

// parseLevel maps the -level flag onto the zstd encoder levels.
func parseLevel(n int) (zstd.EncoderLevel, error) {
	if n < int(zstd.SpeedFastest) || n > int(zstd.SpeedBestCompression) {
		return 0, fmt.Errorf("compression level %d out of range %d-%d",
			n, int(zstd.SpeedFastest), int(zstd.SpeedBestCompression))
	}
	return zstd.EncoderLevel(n), nil
}

// run dumps or verifies path and optionally archives it.
// It returns 1 if the log is damaged or cannot be read.
func run(out io.Writer, path string, verifyOnly bool, archivePath string, level zstd.EncoderLevel) (int, error) {
	f, err := openLog(path)
	if err != nil {
		return 1, err
	}
	defer f.Close()

	var w io.Writer = out
	if verifyOnly {
		w = nil
	}

	sum, err := dump(w, f)
	if err != nil {
		return 1, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fmt.Fprintf(out, "%s: %d records, %d entries, %d fragments, %d bytes\n",
		path, sum.Records, sum.Entries, sum.Fragments, sum.Size)

	code := 0
	if sum.isCorrupt() {
		fmt.Fprintf(out, "DAMAGED: %s\n", sum.Err)
		fmt.Fprintf(out, "last good entry ends at offset %d\n", sum.GoodOffset)
		code = 1
	} else {
		fmt.Fprintf(out, "OK\n")
	}

	if archivePath != "" {
		n, err := archiveLog(path, archivePath, level)
		if err != nil {
			return 1, err
		}
		fmt.Fprintf(out, "archived %d bytes to %s\n", n, archivePath)
	}

	return code, nil
}

// openLog opens a log file, decompressing it if it is a zstd archive.
func openLog(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".zst") {
		return f, nil
	}

	rc, err := wal.OpenArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &archiveReader{ReadCloser: rc, file: f}, nil
}

type archiveReader struct {
	io.ReadCloser
	file *os.File
}

func (a *archiveReader) Close() error {
	a.ReadCloser.Close()
	return a.file.Close()
}

func archiveLog(src, dst string, level zstd.EncoderLevel) (int64, error) {
	in, err := openLog(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}

	n, err := wal.Archive(out, in, level)
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return n, err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return n, fmt.Errorf("failed to sync archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return n, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return n, fmt.Errorf("failed to rename archive: %w", err)
	}
	return n, nil
}
