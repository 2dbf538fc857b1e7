package parsers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// ErrUnreadableSnapshot is returned when the snapshot path cannot be opened.
var ErrUnreadableSnapshot = errors.New("unreadable snapshot")

// Compression identifies the container format of a snapshot file.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// DetectCompression infers the compression from the file extension.
func DetectCompression(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return CompressionGzip
	case ".zst", ".zstd":
		return CompressionZstd
	case ".lz4":
		return CompressionLZ4
	default:
		return CompressionNone
	}
}

// OpenSnapshot opens a relationship snapshot, transparently decompressing
// .gz, .zst and .lz4 files.
func OpenSnapshot(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableSnapshot, path, err)
	}

	rc, err := wrapDecompressor(f, DetectCompression(path))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadableSnapshot, path, err)
	}
	return rc, nil
}

func wrapDecompressor(f *os.File, c Compression) (io.ReadCloser, error) {
	switch c {
	case CompressionGzip:
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		return &stackedCloser{Reader: zr, closers: []io.Closer{zr, f}}, nil

	case CompressionZstd:
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		return &stackedCloser{Reader: dec, closers: []io.Closer{dec.IOReadCloser(), f}}, nil

	case CompressionLZ4:
		return &stackedCloser{Reader: lz4.NewReader(f), closers: []io.Closer{f}}, nil

	default:
		return f, nil
	}
}

// stackedCloser closes the decompressor before the underlying file.
type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
