package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/taxon-go/internal/config"
	"github.com/Benny93/taxon-go/internal/parsers"
)

const header = "id\teffectiveTime\tactive\tmoduleId\tsourceId\tdestinationId\trelationshipGroup\ttypeId\tcharacteristicTypeId\tmodifierId"

func row(id, effectiveTime, active, source, destination, typeID string) string {
	return strings.Join([]string{
		id, effectiveTime, active, "900000000000207008", source, destination, "0", typeID,
		"900000000000011006", "900000000000451002",
	}, "\t")
}

func writeSnapshot(t *testing.T, dir, name string, rows ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := header + "\n" + strings.Join(rows, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(snapshot string) *config.Config {
	cfg := config.Default()
	cfg.Snapshot = snapshot
	return cfg
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	t.Run("LoadsSnapshot", func(t *testing.T) {
		t.Parallel()
		path := writeSnapshot(t, t.TempDir(), "sct2_Relationship_Snapshot.txt",
			row("1", "20020131", "1", "100", "200", "116680003"),
			row("2", "20020131", "1", "200", "138875005", "116680003"),
			row("3", "20020131", "1", "100", "246061005", "363698007"),
			row("4", "20020131", "1", "300", "200", "116680003"),
			row("4", "20210731", "0", "300", "200", "116680003"),
			row("5", "20210731", "0", "400", "200", "116680003"),
		)

		var phases []string
		o, result, err := RunPipeline(t.Context(), testConfig(path), nil, func(phase string, pct float64) {
			if pct == 1.0 {
				phases = append(phases, phase)
			}
		})
		require.NoError(t, err)

		parents, err := o.GetParents("100", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"138875005", "200"}, parents)
		assert.Equal(t, []string{"100"}, o.GetChildren("200"))

		assert.Equal(t, 6, result.Records)
		assert.Equal(t, 1, result.Ignored)
		assert.Equal(t, 3, result.Activated)
		assert.Equal(t, 1, result.Deactivated)
		assert.Equal(t, 1, result.AbsentRemoval)
		assert.Equal(t, 2, result.Edges)
		assert.Equal(t, 0, result.SkippedLines)
		assert.Equal(t, []string{"Opening snapshot", "Reconciling relationships"}, phases)
	})

	t.Run("GzipSnapshot", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rel.txt.gz")
		f, err := os.Create(path)
		require.NoError(t, err)
		w := gzip.NewWriter(f)
		_, err = w.Write([]byte(header + "\n" + row("1", "20020131", "1", "100", "200", "116680003") + "\n"))
		require.NoError(t, err)
		require.NoError(t, w.Close())
		require.NoError(t, f.Close())

		o, _, err := RunPipeline(t.Context(), testConfig(path), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"100"}, o.GetChildren("200"))
	})

	t.Run("MissingSnapshotPath", func(t *testing.T) {
		t.Parallel()
		_, _, err := RunPipeline(t.Context(), testConfig(""), nil, nil)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("UnreadableSnapshot", func(t *testing.T) {
		t.Parallel()
		missing := filepath.Join(t.TempDir(), "missing.txt")
		_, _, err := RunPipeline(t.Context(), testConfig(missing), nil, nil)
		assert.ErrorIs(t, err, parsers.ErrUnreadableSnapshot)
		assert.Contains(t, err.Error(), missing)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "rel.txt")
		require.NoError(t, os.WriteFile(path, []byte("id\tactive\tsourceId\n1\t1\t100\n"), 0o644))

		_, _, err := RunPipeline(t.Context(), testConfig(path), nil, nil)
		assert.ErrorIs(t, err, parsers.ErrMissingColumn)
		assert.Contains(t, err.Error(), "effectiveTime")
	})

	t.Run("MalformedBudgetExceeded", func(t *testing.T) {
		t.Parallel()
		path := writeSnapshot(t, t.TempDir(), "rel.txt",
			row("1", "20020131", "1", "100", "200", "116680003"),
			"truncated\tline",
		)

		_, _, err := RunPipeline(t.Context(), testConfig(path), nil, nil)
		assert.ErrorIs(t, err, parsers.ErrTooManyMalformed)
	})

	t.Run("MalformedWithinBudget", func(t *testing.T) {
		t.Parallel()
		path := writeSnapshot(t, t.TempDir(), "rel.txt",
			row("1", "20020131", "1", "100", "200", "116680003"),
			"truncated\tline",
		)
		cfg := testConfig(path)
		cfg.MaxMalformedRatio = 0.5

		_, result, err := RunPipeline(t.Context(), cfg, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.SkippedLines)
		assert.Equal(t, 2, result.DataLines)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		t.Parallel()
		path := writeSnapshot(t, t.TempDir(), "rel.txt",
			row("1", "20020131", "1", "100", "200", "116680003"),
		)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, _, err := RunPipeline(ctx, testConfig(path), nil, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
