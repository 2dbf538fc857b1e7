// Package ingestion loads relationship snapshots into queryable ontologies.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Benny93/taxon-go/internal/config"
	"github.com/Benny93/taxon-go/internal/graph"
	"github.com/Benny93/taxon-go/internal/ontology"
	"github.com/Benny93/taxon-go/internal/parsers"
)

// progressEvery is the number of records between progress reports.
const progressEvery = 50_000

// PipelineResult summarizes a load.
type PipelineResult struct {
	Snapshot      string  `json:"snapshot" yaml:"snapshot"`
	DataLines     int     `json:"data_lines" yaml:"data_lines"`
	SkippedLines  int     `json:"skipped_lines" yaml:"skipped_lines"`
	Records       int     `json:"records" yaml:"records"`
	Ignored       int     `json:"ignored" yaml:"ignored"`
	Activated     int     `json:"activated" yaml:"activated"`
	Deactivated   int     `json:"deactivated" yaml:"deactivated"`
	AbsentRemoval int     `json:"absent_inactivations" yaml:"absent_inactivations"`
	Nodes         int     `json:"nodes" yaml:"nodes"`
	Edges         int     `json:"edges" yaml:"edges"`
	DurationSecs  float64 `json:"duration_secs" yaml:"duration_secs"`
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// RunPipeline opens the configured snapshot, folds it once and returns the
// resulting Ontology. Any configuration, read or budget error aborts the load.
func RunPipeline(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	progress ProgressCallback,
) (*ontology.Ontology, *PipelineResult, error) {
	start := time.Now()
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.RequireSnapshot(); err != nil {
		return nil, nil, err
	}
	if progress == nil {
		progress = func(string, float64) {}
	}

	progress("Opening snapshot", 0.0)
	src := parsers.FileSource(cfg.Snapshot)
	rc, err := src.Open()
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rc.Close() }()

	var size int64
	if parsers.DetectCompression(cfg.Snapshot) == parsers.CompressionNone {
		if info, err := os.Stat(cfg.Snapshot); err == nil {
			size = info.Size()
		}
	}
	counter := &countingReader{r: rc}
	progress("Opening snapshot", 1.0)

	readOpts := cfg.ReadOptions()
	readOpts.Logger = logger
	reader := parsers.NewReader(readOpts)

	progress("Reconciling relationships", 0.0)
	records := withProgress(ctx, reader.Records(counter), func(n int) {
		if size > 0 {
			progress("Reconciling relationships", min(float64(counter.n)/float64(size), 1.0))
		}
	})

	o, stats, err := ontology.Build(records, graph.BuildOptions{
		Types:  cfg.Types(),
		Root:   cfg.RootConcept,
		Logger: logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", src.Name(), err)
	}
	progress("Reconciling relationships", 1.0)

	read := reader.Stats()
	st := o.Stats()
	result := &PipelineResult{
		Snapshot:      src.Name(),
		DataLines:     read.DataLines,
		SkippedLines:  read.Skipped,
		Records:       stats.Records,
		Ignored:       stats.Ignored,
		Activated:     stats.Activated,
		Deactivated:   stats.Deactivated,
		AbsentRemoval: stats.Absent,
		Nodes:         st.Nodes,
		Edges:         st.Edges,
		DurationSecs:  time.Since(start).Seconds(),
	}

	logger.Info("ontology loaded",
		zap.String("snapshot", result.Snapshot),
		zap.Int("records", result.Records),
		zap.Int("skipped_lines", result.SkippedLines),
		zap.Int("absent_inactivations", result.AbsentRemoval),
		zap.Int("nodes", result.Nodes),
		zap.Int("edges", result.Edges),
		zap.Float64("duration_secs", result.DurationSecs),
	)

	return o, result, nil
}

// withProgress passes records through, reporting every progressEvery records
// and stopping with the context error once ctx is done.
func withProgress(ctx context.Context, seq iter.Seq2[parsers.Relationship, error], report func(n int)) iter.Seq2[parsers.Relationship, error] {
	return func(yield func(parsers.Relationship, error) bool) {
		n := 0
		for rec, err := range seq {
			if err == nil {
				n++
				if n%progressEvery == 0 {
					if ctxErr := ctx.Err(); ctxErr != nil {
						yield(parsers.Relationship{}, ctxErr)
						return
					}
					report(n)
				}
			}
			if !yield(rec, err) {
				return
			}
		}
		if err := ctx.Err(); err != nil {
			yield(parsers.Relationship{}, err)
		}
	}
}

// countingReader counts bytes read from the snapshot stream.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
