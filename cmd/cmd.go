// Package cmd provides CLI command implementations for taxon.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/Benny93/taxon-go/internal/config"
	"github.com/Benny93/taxon-go/internal/ingestion"
	"github.com/Benny93/taxon-go/internal/logging"
	"github.com/Benny93/taxon-go/internal/ontology"
	"github.com/Benny93/taxon-go/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Globals are the flags shared by every command. Flags override the config
// file and TAXON_* environment variables.
type Globals struct {
	Config       string   `short:"c" type:"path" env:"TAXON_CONFIG" help:"YAML configuration file"`
	Snapshot     string   `short:"s" type:"path" help:"Relationship snapshot file (.txt, .gz, .zst, .lz4)"`
	Root         string   `help:"Root concept code"`
	RelationType []string `short:"t" name:"relation-type" help:"Relationship type id to follow (repeatable, 'all' follows every type)"`
	LogLevel     string   `name:"log-level" help:"Log level: debug, info, warn, error"`
	Verbose      bool     `short:"v" help:"Enable verbose output"`
	Quiet        bool     `short:"q" help:"Suppress non-essential output"`

	stdout io.Writer `kong:"-"`
	stderr io.Writer `kong:"-"`
}

func (g *Globals) out() io.Writer {
	if g.stdout != nil {
		return g.stdout
	}
	return os.Stdout
}

func (g *Globals) errOut() io.Writer {
	if g.stderr != nil {
		return g.stderr
	}
	return os.Stderr
}

// loadConfig reads the config file and environment, then applies flags.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	if g.Snapshot != "" {
		cfg.Snapshot = g.Snapshot
	}
	if g.Root != "" {
		cfg.RootConcept = g.Root
	}
	if len(g.RelationType) > 0 {
		cfg.RelationTypes = g.RelationType
	}
	if g.LogLevel != "" {
		cfg.LogLevel = g.LogLevel
	}
	if g.Verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (g *Globals) newLogger(cfg *config.Config) (*zap.Logger, error) {
	if g.Quiet {
		return logging.Quiet(), nil
	}
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

// load builds the ontology from the configured snapshot.
func (g *Globals) load(ctx context.Context, progress ingestion.ProgressCallback) (*ontology.Ontology, *ingestion.PipelineResult, *zap.Logger, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := g.newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	o, result, err := ingestion.RunPipeline(ctx, cfg, logger, progress)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	return o, result, logger, nil
}

// OutputFlags selects how query results are printed.
type OutputFlags struct {
	Format string `short:"o" enum:"text,json,yaml" default:"text" help:"Output format (text, json, yaml)"`
}

// emit writes v as JSON or YAML, or calls text for the default format.
func (f OutputFlags) emit(w io.Writer, v any, text func(io.Writer)) error {
	switch f.Format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(w)
		return nil
	}
}

// codesResult is the structured output of the list-valued queries.
type codesResult struct {
	Code   string   `json:"code" yaml:"code"`
	Levels *int     `json:"levels,omitempty" yaml:"levels,omitempty"`
	Depth  *int     `json:"depth,omitempty" yaml:"depth,omitempty"`
	Codes  []string `json:"codes" yaml:"codes"`
}

func printCodes(w io.Writer, heading string, codes []string) {
	color.New(color.FgCyan, color.Bold).Fprintln(w, heading)
	if len(codes) == 0 {
		color.New(color.FgYellow).Fprintln(w, "(none)")
		return
	}
	for _, c := range codes {
		fmt.Fprintln(w, c)
	}
}

// ParentsCmd prints the ancestors of a concept.
type ParentsCmd struct {
	Code   string `arg:"" help:"Concept code"`
	Levels int    `short:"l" default:"1" help:"Number of parent levels to climb"`
	OutputFlags
}

// Run executes the parents command.
func (c *ParentsCmd) Run(g *Globals) error {
	o, _, logger, err := g.load(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	parents, err := o.GetParents(c.Code, c.Levels)
	if err != nil {
		return err
	}

	levels := c.Levels
	return c.emit(g.out(), codesResult{Code: c.Code, Levels: &levels, Codes: parents}, func(w io.Writer) {
		printCodes(w, fmt.Sprintf("## Ancestors of %s (levels: %d): %d", c.Code, c.Levels, len(parents)), parents)
	})
}

// ChildrenCmd prints the direct children of a concept.
type ChildrenCmd struct {
	Code string `arg:"" help:"Concept code"`
	OutputFlags
}

// Run executes the children command.
func (c *ChildrenCmd) Run(g *Globals) error {
	o, _, logger, err := g.load(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	children := o.GetChildren(c.Code)
	return c.emit(g.out(), codesResult{Code: c.Code, Codes: children}, func(w io.Writer) {
		printCodes(w, fmt.Sprintf("## Children of %s: %d", c.Code, len(children)), children)
	})
}

// SubtreeCmd prints a concept and its descendants.
type SubtreeCmd struct {
	Code  string `arg:"" help:"Concept code"`
	Depth int    `short:"d" default:"1" help:"Depth limit (0 prints the code only)"`
	OutputFlags
}

// Run executes the subtree command.
func (c *SubtreeCmd) Run(g *Globals) error {
	o, _, logger, err := g.load(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	codes, err := o.Subtree(c.Code, c.Depth)
	if err != nil {
		return err
	}

	depth := c.Depth
	return c.emit(g.out(), codesResult{Code: c.Code, Depth: &depth, Codes: codes}, func(w io.Writer) {
		printCodes(w, fmt.Sprintf("## Subtree of %s (depth: %d): %d", c.Code, c.Depth, len(codes)), codes)
	})
}

// SubsumesCmd tests whether one concept subsumes another.
type SubsumesCmd struct {
	A string `arg:"" help:"First concept code"`
	B string `arg:"" help:"Second concept code"`
	OutputFlags
}

// Run executes the subsumes command.
func (c *SubsumesCmd) Run(g *Globals) error {
	o, _, logger, err := g.load(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	outcome := o.Subsumes(c.A, c.B)
	result := struct {
		A       string               `json:"a" yaml:"a"`
		B       string               `json:"b" yaml:"b"`
		Outcome ontology.Subsumption `json:"outcome" yaml:"outcome"`
	}{c.A, c.B, outcome}

	return c.emit(g.out(), result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s %s\n", c.A, color.New(color.Bold).Sprint(outcome), c.B)
	})
}

// StatsCmd loads the snapshot and reports load and graph statistics.
type StatsCmd struct {
	OutputFlags
}

// Run executes the stats command.
func (c *StatsCmd) Run(g *Globals) error {
	var progress ingestion.ProgressCallback
	if !g.Quiet && c.Format == "text" {
		progress = func(phase string, pct float64) {
			fmt.Fprintf(g.errOut(), "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	o, result, logger, err := g.load(context.Background(), progress)
	if progress != nil {
		fmt.Fprintln(g.errOut()) // Newline after progress
	}
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	st := o.Stats()
	out := struct {
		Load  *ingestion.PipelineResult `json:"load" yaml:"load"`
		Graph ontology.Stats            `json:"graph" yaml:"graph"`
	}{result, st}

	return c.emit(g.out(), out, func(w io.Writer) {
		color.New(color.FgGreen).Fprintf(w, "✓ Loaded %s\n", result.Snapshot)
		fmt.Fprintf(w, "  Data lines:        %d\n", result.DataLines)
		fmt.Fprintf(w, "  Skipped lines:     %d\n", result.SkippedLines)
		fmt.Fprintf(w, "  Filtered by type:  %d\n", result.Ignored)
		fmt.Fprintf(w, "  Activations:       %d\n", result.Activated)
		fmt.Fprintf(w, "  Inactivations:     %d\n", result.Deactivated)
		fmt.Fprintf(w, "  Absent removals:   %d\n", result.AbsentRemoval)
		fmt.Fprintf(w, "  Root:              %s\n", st.Root)
		fmt.Fprintf(w, "  Concepts:          %d\n", st.Nodes)
		fmt.Fprintf(w, "  Active edges:      %d\n", st.Edges)
		fmt.Fprintf(w, "  With parents:      %d\n", st.IndexedConcepts)
		fmt.Fprintf(w, "  Duration:          %.2fs\n", result.DurationSecs)
	})
}

// ExpandCmd adds the ancestors of each row's code to a TSV dataset, one
// output row per ancestor.
type ExpandCmd struct {
	Input  string `arg:"" type:"existingfile" help:"Input TSV dataset"`
	Output string `arg:"" help:"Output TSV path ('-' for stdout)"`
	Column string `default:"code" help:"Column holding concept codes"`
	Target string `default:"code_wp" help:"Name of the added ancestor column"`
	Levels int    `short:"l" default:"1" help:"Number of parent levels to climb"`
}

// Run executes the expand command.
func (c *ExpandCmd) Run(g *Globals) error {
	if c.Levels < 0 {
		return ontology.ErrNegativeLevels
	}

	o, _, logger, err := g.load(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	in, err := os.Open(c.Input)
	if err != nil {
		return fmt.Errorf("opening %s: %w", c.Input, err)
	}
	defer func() { _ = in.Close() }()

	var out io.WriteCloser = nopWriteCloser{g.out()}
	if c.Output != "-" {
		f, err := os.Create(c.Output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.Output, err)
		}
		out = f
	}

	stats, err := expandInto(o, in, out, expandOptions{
		Column: c.Column,
		Target: c.Target,
		Levels: c.Levels,
	})
	if err != nil {
		return fmt.Errorf("expanding %s: %w", c.Input, err)
	}

	logger.Info("dataset expanded",
		zap.String("input", c.Input),
		zap.String("output", c.Output),
		zap.Int("rows_in", stats.RowsIn),
		zap.Int("rows_out", stats.RowsOut),
		zap.Int("codes_without_parents", stats.Unmatched),
	)
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	o, _, logger, err := g.load(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	server := mcp.NewServer(ontology.NewHolder(o), logger)

	// Note: No output to stdout - MCP server uses stdio for JSON-RPC only
	err = server.ServeStdio(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ServeCmd starts the MCP server with optional snapshot watching.
type ServeCmd struct {
	Watch    bool          `short:"w" help:"Reload the ontology when the snapshot changes"`
	Debounce time.Duration `default:"2s" help:"Quiet period before a changed snapshot is reloaded"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	logger, err := g.newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	o, _, err := ingestion.RunPipeline(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	holder := ontology.NewHolder(o)
	server := mcp.NewServer(holder, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	grp, ctx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		// Stdin closing ends the session and stops the watcher.
		defer cancel()
		return server.ServeStdio(ctx)
	})

	if c.Watch {
		grp.Go(func() error {
			return ingestion.WatchSnapshot(ctx, cfg, holder, logger, ingestion.WatchOptions{
				Debounce: c.Debounce,
			})
		})
		logger.Info("MCP server started with snapshot watching", zap.String("snapshot", cfg.Snapshot))
	} else {
		logger.Info("MCP server started")
	}

	if err := grp.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// CLI is the root Kong command structure.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Parents  ParentsCmd  `cmd:"" help:"Show ancestors of a concept up to N levels"`
	Children ChildrenCmd `cmd:"" help:"Show direct children of a concept"`
	Subtree  SubtreeCmd  `cmd:"" help:"Show a concept and its descendants up to a depth"`
	Subsumes SubsumesCmd `cmd:"" help:"Test whether concept A subsumes concept B"`
	Stats    StatsCmd    `cmd:"" help:"Load the snapshot and print statistics"`
	Expand   ExpandCmd   `cmd:"" help:"Add ancestor codes to a TSV dataset"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server with optional snapshot watching"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("taxon"),
		kong.Description("SNOMED CT hierarchy engine over RF2 relationship snapshots"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
		kong.Bind(&c.Globals),
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run()
}
