package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/Benny93/taxon-go/internal/ontology"
)

type expandOptions struct {
	Column string
	Target string
	Levels int
}

type expandStats struct {
	RowsIn    int
	RowsOut   int
	Unmatched int
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// expandInto runs expandTSV and closes out. A failed close fails the
// expansion, since buffered rows may not have reached the file.
func expandInto(o *ontology.Ontology, in io.Reader, out io.WriteCloser, opts expandOptions) (expandStats, error) {
	stats, err := expandTSV(o, in, out, opts)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing output: %w", cerr)
	}
	return stats, err
}

// expandTSV copies a tab-separated dataset from in to out, appending the
// Target column. Each input row is repeated once per ancestor of its code;
// a row whose code has no ancestors is written once with an empty Target.
func expandTSV(o *ontology.Ontology, in io.Reader, out io.Writer, opts expandOptions) (expandStats, error) {
	var stats expandStats

	r := csv.NewReader(in)
	r.Comma = '\t'
	r.LazyQuotes = true

	w := csv.NewWriter(out)
	w.Comma = '\t'

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return stats, fmt.Errorf("dataset has no header")
	}
	if err != nil {
		return stats, err
	}
	col := slices.Index(header, opts.Column)
	if col < 0 {
		return stats, fmt.Errorf("column %q not found in header", opts.Column)
	}
	if slices.Contains(header, opts.Target) {
		return stats, fmt.Errorf("column %q already exists", opts.Target)
	}
	if err := w.Write(append(slices.Clone(header), opts.Target)); err != nil {
		return stats, err
	}

	// Datasets repeat codes heavily.
	cache := make(map[string][]string)

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		stats.RowsIn++

		code := rec[col]
		parents, ok := cache[code]
		if !ok {
			parents, err = o.GetParents(code, opts.Levels)
			if err != nil {
				return stats, err
			}
			cache[code] = parents
		}

		if len(parents) == 0 {
			stats.Unmatched++
			parents = []string{""}
		}
		for _, p := range parents {
			if err := w.Write(append(slices.Clone(rec), p)); err != nil {
				return stats, err
			}
			stats.RowsOut++
		}
	}

	w.Flush()
	return stats, w.Error()
}
