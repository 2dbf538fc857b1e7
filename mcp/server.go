// Package mcp exposes ontology queries over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/Benny93/taxon-go/internal/ontology"
	"github.com/Benny93/taxon-go/internal/parsers"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

const (
	defaultLevels = 1
	defaultDepth  = 1

	// maxListed caps codes printed per answer; counts are always exact.
	maxListed = 500
)

// OntologySource returns the ontology to query. ontology.Holder implements it,
// so a reloaded snapshot is picked up by the next call.
type OntologySource interface {
	Load() *ontology.Ontology
}

// Server represents the MCP server.
type Server struct {
	source OntologySource
	server *mcp.Server
	logger *zap.Logger
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server.
func NewServer(source OntologySource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		source: source,
		logger: logger,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "taxon",
		Version: Version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "sct_parents",
			Description: "Ancestors of a concept up to a number of levels (closure over all levels, not only the last one).",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"code":   {Type: "string", Description: "Concept code"},
					"levels": {Type: "integer", Description: "Number of parent hops (default 1)"},
				},
				Required: []string{"code"},
			},
		},
		{
			Name:        "sct_children",
			Description: "Direct children of a concept.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"code": {Type: "string", Description: "Concept code"},
				},
				Required: []string{"code"},
			},
		},
		{
			Name:        "sct_subtree",
			Description: "A concept and all its descendants down to a depth limit.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"code":  {Type: "string", Description: "Concept code"},
					"depth": {Type: "integer", Description: "Depth limit (default 1, 0 returns the code only)"},
				},
				Required: []string{"code"},
			},
		},
		{
			Name:        "sct_subsumes",
			Description: "Test whether concept a subsumes concept b.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"a": {Type: "string", Description: "First concept code"},
					"b": {Type: "string", Description: "Second concept code"},
				},
				Required: []string{"a", "b"},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "sct://overview",
			Name:        "Ontology Overview",
			Description: "Root concept, relation types and graph size",
			MimeType:    "text/plain",
		},
		{
			URI:         "sct://schema",
			Name:        "Snapshot Schema",
			Description: "Columns read from the relationship snapshot and query semantics",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	o := s.source.Load()
	if o == nil {
		return "", fmt.Errorf("no ontology loaded")
	}

	switch name {
	case "sct_parents":
		code, _ := args["code"].(string)
		levels, err := intArg(args, "levels", defaultLevels)
		if err != nil {
			return "", err
		}
		return handleParents(o, code, levels)
	case "sct_children":
		code, _ := args["code"].(string)
		return handleChildren(o, code)
	case "sct_subtree":
		code, _ := args["code"].(string)
		depth, err := intArg(args, "depth", defaultDepth)
		if err != nil {
			return "", err
		}
		return handleSubtree(o, code, depth)
	case "sct_subsumes":
		a, _ := args["a"].(string)
		b, _ := args["b"].(string)
		return handleSubsumes(o, a, b)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "sct://overview":
		o := s.source.Load()
		if o == nil {
			return "", fmt.Errorf("no ontology loaded")
		}
		return getOverview(o), nil
	case "sct://schema":
		return getSchema(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run serves MCP over the given streams until stdin closes or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}
	return s.server.Run(ctx, &mcp.IOTransport{
		Reader: io.NopCloser(stdin),
		Writer: nopWriteCloser{stdout},
	})
}

// ServeStdio runs the SDK server over the process stdio transport.
func (s *Server) ServeStdio(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Tool Handlers

func handleParents(o *ontology.Ontology, code string, levels int) (string, error) {
	if code == "" {
		return "No code provided", nil
	}
	parents, err := o.GetParents(code, levels)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Ancestors of **%s** (levels: %d): %d\n\n", code, levels, len(parents))
	writeCodes(&sb, parents)
	if len(parents) == 0 {
		sb.WriteString("No active parents recorded for this code.\n")
	}
	sb.WriteString("\nNext: Use `sct_subtree` on an ancestor to inspect its descendants.")
	return sb.String(), nil
}

func handleChildren(o *ontology.Ontology, code string) (string, error) {
	if code == "" {
		return "No code provided", nil
	}
	children := o.GetChildren(code)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Direct children of **%s**: %d\n\n", code, len(children))
	writeCodes(&sb, children)
	if len(children) == 0 {
		sb.WriteString("No active children recorded for this code.\n")
	}
	return sb.String(), nil
}

func handleSubtree(o *ontology.Ontology, code string, depth int) (string, error) {
	if code == "" {
		return "No code provided", nil
	}
	codes, err := o.Subtree(code, depth)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Subtree of **%s** (depth: %d): %d codes, including the code itself\n\n", code, depth, len(codes))
	writeCodes(&sb, codes)
	if len(codes) == 0 {
		sb.WriteString("Code not found in the hierarchy.\n")
	}
	return sb.String(), nil
}

func handleSubsumes(o *ontology.Ontology, a, b string) (string, error) {
	if a == "" || b == "" {
		return "Both codes a and b are required", nil
	}
	return fmt.Sprintf("%s %s %s", a, o.Subsumes(a, b), b), nil
}

func writeCodes(sb *strings.Builder, codes []string) {
	for i, c := range codes {
		if i == maxListed {
			fmt.Fprintf(sb, "- ... %d more\n", len(codes)-maxListed)
			break
		}
		fmt.Fprintf(sb, "- %s\n", c)
	}
}

// Resource Handlers

func getOverview(o *ontology.Ontology) string {
	st := o.Stats()
	types := "all"
	if len(st.RelationTypes) > 0 {
		types = strings.Join(st.RelationTypes, ", ")
	}

	var sb strings.Builder
	sb.WriteString("# Ontology Overview\n\n")
	fmt.Fprintf(&sb, "**Root:** %s\n", st.Root)
	fmt.Fprintf(&sb, "**Relation types:** %s\n", types)
	fmt.Fprintf(&sb, "**Concepts:** %d\n", st.Nodes)
	fmt.Fprintf(&sb, "**Active edges:** %d\n", st.Edges)
	fmt.Fprintf(&sb, "**Concepts with parents:** %d\n", st.IndexedConcepts)
	return sb.String()
}

func getSchema() string {
	var sb strings.Builder
	sb.WriteString("# Relationship Snapshot Schema\n\n")
	sb.WriteString("Tab-separated, header-driven (case-insensitive). Required columns:\n\n")
	for _, c := range parsers.RequiredColumns {
		fmt.Fprintf(&sb, "- `%s`\n", c)
	}
	sb.WriteString("\n## Queries\n\n")
	sb.WriteString("| Tool | Result |\n")
	sb.WriteString("|------|--------|\n")
	sb.WriteString("| `sct_parents` | ancestors within N hops, code excluded unless reached through a cycle |\n")
	sb.WriteString("| `sct_children` | direct children |\n")
	sb.WriteString("| `sct_subtree` | code plus descendants within N hops |\n")
	sb.WriteString("| `sct_subsumes` | equivalent / subsumes / subsumed-by / not-subsumed |\n")
	return sb.String()
}

// registerTools registers every ListTools entry with the SDK server.
func (s *Server) registerTools() {
	for _, tool := range s.ListTools() {
		name := tool.Name
		s.server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args := map[string]any{}
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return nil, fmt.Errorf("decode %s arguments: %w", name, err)
				}
			}
			text, err := s.CallTool(ctx, name, args)
			if err != nil {
				s.logger.Debug("tool call failed", zap.String("tool", name), zap.Error(err))
				return &mcp.CallToolResult{
					IsError: true,
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
			}, nil
		})
	}
}

// registerResources registers every ListResources entry with the SDK server.
func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		s.server.AddResource(&mcp.Resource{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, req.Params.URI)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{{
					URI:      req.Params.URI,
					MIMEType: "text/plain",
					Text:     text,
				}},
			}, nil
		})
	}
}

// Helper functions

// intArg reads an integer argument. JSON numbers arrive as float64, so
// fractional or out of range values are rejected rather than truncated.
func intArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		if n != math.Trunc(n) || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, fmt.Errorf("%s must be a whole number, got %v", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be a whole number, got %T", key, v)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
