package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"

	"go.uber.org/zap"
)

// DefaultMaxMalformedRatio is the fraction of data lines that may be skipped
// before a pass fails.
const DefaultMaxMalformedRatio = 0.01

// maxLineBytes bounds a single snapshot line.
const maxLineBytes = 1 << 20

// ReadOptions configures the error budget and logging of a Reader.
type ReadOptions struct {
	// MaxMalformedRatio is the largest tolerated skipped/data-lines ratio,
	// checked once the stream is exhausted.
	MaxMalformedRatio float64

	// MaxMalformed fails the pass as soon as more lines than this were skipped.
	// Zero disables the absolute cap; the ratio still applies.
	MaxMalformed int

	// Logger receives one warning per skipped line.
	Logger *zap.Logger
}

// DefaultReadOptions returns options with the default error budget.
func DefaultReadOptions() ReadOptions {
	return ReadOptions{MaxMalformedRatio: DefaultMaxMalformedRatio}
}

// ReadStats summarizes the most recent pass.
type ReadStats struct {
	// DataLines counts non-blank lines after the header.
	DataLines int

	// Skipped counts malformed lines that were dropped.
	Skipped int
}

// Reader turns tab-separated relationship snapshots into record sequences.
// A Reader is not safe for concurrent passes; use one per goroutine.
type Reader struct {
	opts  ReadOptions
	stats ReadStats
}

// NewReader creates a Reader. A nil logger is replaced by a no-op logger.
func NewReader(opts ReadOptions) *Reader {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Reader{opts: opts}
}

// Stats returns the statistics of the last pass.
func (r *Reader) Stats() ReadStats {
	return r.stats
}

// Records returns a lazy sequence over the records of src.
//
// Malformed lines are logged and skipped. A fatal condition (missing header
// column, read failure, exhausted error budget) is yielded once as a non-nil
// error and ends the sequence.
func (r *Reader) Records(src io.Reader) iter.Seq2[Relationship, error] {
	return func(yield func(Relationship, error) bool) {
		r.stats = ReadStats{}

		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

		if !scanner.Scan() {
			err := scanner.Err()
			if err == nil {
				err = ErrEmptySnapshot
			}
			yield(Relationship{}, fmt.Errorf("reading header: %w", err))
			return
		}

		header, err := ParseHeader(scanner.Text())
		if err != nil {
			yield(Relationship{}, err)
			return
		}

		lineNo := 1
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if line == "" || line == "\r" {
				continue
			}
			r.stats.DataLines++

			rec, err := header.ParseLine(line, lineNo)
			if err != nil {
				r.stats.Skipped++
				r.opts.Logger.Warn("skipping malformed relationship line",
					zap.Int("line", lineNo),
					zap.Error(err),
				)
				if r.opts.MaxMalformed > 0 && r.stats.Skipped > r.opts.MaxMalformed {
					yield(Relationship{}, fmt.Errorf("%w: %d lines skipped, limit %d",
						ErrTooManyMalformed, r.stats.Skipped, r.opts.MaxMalformed))
					return
				}
				continue
			}

			if !yield(rec, nil) {
				return
			}
		}

		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				err = fmt.Errorf("line %d exceeds %d bytes: %w", lineNo+1, maxLineBytes, err)
			}
			yield(Relationship{}, fmt.Errorf("reading snapshot: %w", err))
			return
		}

		if r.overBudget() {
			yield(Relationship{}, fmt.Errorf("%w: %d of %d lines skipped, max ratio %.4f",
				ErrTooManyMalformed, r.stats.Skipped, r.stats.DataLines, r.opts.MaxMalformedRatio))
		}
	}
}

func (r *Reader) overBudget() bool {
	if r.stats.Skipped == 0 || r.stats.DataLines == 0 {
		return false
	}
	ratio := float64(r.stats.Skipped) / float64(r.stats.DataLines)
	return ratio > r.opts.MaxMalformedRatio
}

// Source opens a fresh stream of the same snapshot for every pass.
type Source interface {
	// Open returns a new reader positioned at the header line.
	Open() (io.ReadCloser, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// FileSource is a snapshot file on disk, optionally compressed.
type FileSource string

// Open opens the file, decompressing by extension.
func (f FileSource) Open() (io.ReadCloser, error) {
	return OpenSnapshot(string(f))
}

// Name returns the file path.
func (f FileSource) Name() string {
	return string(f)
}
