package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/rootfinder/internal/engine"
	"github.com/rendis/rootfinder/internal/history"
	"github.com/rendis/rootfinder/internal/store"
	"github.com/rendis/rootfinder/internal/validation"
	"github.com/rendis/rootfinder/pkg/schema"
)

// History is the part of history.Service the tools use.
type History interface {
	RecordCalculation(ctx context.Context, req schema.SolveRequest, r schema.MethodResult) (*store.Calculation, error)
	RecordComparison(ctx context.Context, res *schema.ComparisonResult) (*store.ComparisonSession, error)
	ListCalculations(ctx context.Context, q history.Query) (*history.Listing, error)
	ListComparisons(ctx context.Context, expression string, limit int) ([]*store.ComparisonSession, error)
	GetCalculation(ctx context.Context, id string) (*store.Calculation, error)
	GetComparison(ctx context.Context, id string) (*store.ComparisonSession, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (store.Counts, error)
}

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Comparator *engine.Comparator
	Validator  validation.Validator
	History    History // optional; nil disables persistence and the history tools
	Logger     *slog.Logger
	Version    string
}

// Server wraps an MCP server with the root-finding tool handlers.
type Server struct {
	comparator *engine.Comparator
	validator  validation.Validator
	history    History
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewServer creates a Server with all 7 tools registered.
func NewServer(deps ServerDeps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	comparator := deps.Comparator
	if comparator == nil {
		comparator = engine.NewComparator(engine.NewWorkerPool(3), engine.WithLogger(logger))
	}
	validator := deps.Validator
	if validator == nil {
		v, err := validation.NewJSONSchemaValidator()
		if err != nil {
			return nil, err
		}
		validator = v
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		comparator: comparator,
		validator:  validator,
		history:    deps.History,
		logger:     logger,
	}

	mcpSrv := server.NewMCPServer(
		"rootfinder",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Rootfinder solves f(x) = 0 numerically. Use rootfinder.solve to run one method, rootfinder.compare to run bisection, Newton-Raphson and secant side by side, rootfinder.functions to list built-in test problems, rootfinder.sample to get plot points, and rootfinder.history, rootfinder.delete and rootfinder.clear to manage saved runs. Functions use the variable x, e.g. \"cos(x) - x\" or \"x**3 - 2*x - 5\"."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 7 registered MCP tools as ServerTool entries.
func (s *Server) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: solveTool(), Handler: s.handleSolve},
		{Tool: compareTool(), Handler: s.handleCompare},
		{Tool: historyTool(), Handler: s.handleHistory},
		{Tool: deleteTool(), Handler: s.handleDelete},
		{Tool: clearTool(), Handler: s.handleClear},
		{Tool: functionsTool(), Handler: s.handleFunctions},
		{Tool: sampleTool(), Handler: s.handleSample},
	}
}

// --- Tool definitions ---

func solveTool() mcp.Tool {
	return mcp.NewTool("rootfinder.solve",
		mcp.WithDescription("Find a root of f(x) with a single method"),
		mcp.WithString("function", mcp.Required(), mcp.Description("Function of x, e.g. \"x**2 - 2\"")),
		mcp.WithString("method", mcp.Required(),
			mcp.Enum(string(schema.MethodBisection), string(schema.MethodNewton), string(schema.MethodSecant)),
			mcp.Description("Root-finding method"),
		),
		mcp.WithObject("params", mcp.Required(), mcp.Description("Starting parameters keyed by method: {\"bisection\":{\"a\":0,\"b\":1}}, {\"newton\":{\"x0\":1}} or {\"secant\":{\"x0\":0,\"x1\":1}}")),
		mcp.WithNumber("tolerance", mcp.Description("Convergence tolerance (default: 1e-6)")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration budget (default: 100)")),
	)
}

func compareTool() mcp.Tool {
	return mcp.NewTool("rootfinder.compare",
		mcp.WithDescription("Run several root-finding methods on the same function and compare them"),
		mcp.WithString("function", mcp.Description("Function of x (required unless catalog is set)")),
		mcp.WithString("catalog", mcp.Description("Name of a built-in test function; fills function and params")),
		mcp.WithString("name", mcp.Description("Label for this comparison")),
		mcp.WithObject("params", mcp.Description("Starting parameters keyed by method; every method present is run")),
		mcp.WithNumber("tolerance", mcp.Description("Convergence tolerance (default: 1e-6)")),
		mcp.WithNumber("max_iterations", mcp.Description("Iteration budget (default: 100)")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("rootfinder.history",
		mcp.WithDescription("Query saved calculations and comparisons"),
		mcp.WithString("resource",
			mcp.Enum("calculations", "comparisons"),
			mcp.Description("Type of record to query (default: calculations)"),
		),
		mcp.WithString("id", mcp.Description("Fetch one record by ID")),
		mcp.WithString("method", mcp.Description("Only calculations of this method")),
		mcp.WithBoolean("converged", mcp.Description("Only converged (true) or failed (false) calculations")),
		mcp.WithString("function", mcp.Description("Only comparisons of this function")),
		mcp.WithString("where", mcp.Description("CEL predicate over a calculation, e.g. \"converged && iterations < 10\"")),
		mcp.WithString("project", mcp.Description("jq program applied to every matching calculation, e.g. \"{method, root}\"")),
		mcp.WithNumber("limit", mcp.Description("Maximum records to return (default: 20)")),
	)
}

func deleteTool() mcp.Tool {
	return mcp.NewTool("rootfinder.delete",
		mcp.WithDescription("Delete a saved calculation or comparison"),
		mcp.WithString("id", mcp.Required(), mcp.Description("ID of the record to delete")),
	)
}

func clearTool() mcp.Tool {
	return mcp.NewTool("rootfinder.clear",
		mcp.WithDescription("Delete all saved calculations and comparisons"),
	)
}

func functionsTool() mcp.Tool {
	return mcp.NewTool("rootfinder.functions",
		mcp.WithDescription("List the built-in test functions with their known roots and default parameters"),
	)
}

func sampleTool() mcp.Tool {
	return mcp.NewTool("rootfinder.sample",
		mcp.WithDescription("Sample f(x) over a range for plotting"),
		mcp.WithString("function", mcp.Required(), mcp.Description("Function of x")),
		mcp.WithNumber("lo", mcp.Description("Range start")),
		mcp.WithNumber("hi", mcp.Description("Range end")),
		mcp.WithString("method", mcp.Description("Method of a result to plot; picks the range when lo and hi are not set")),
		mcp.WithObject("params", mcp.Description("Parameters of that result")),
		mcp.WithNumber("root", mcp.Description("Root of that result")),
		mcp.WithNumber("points", mcp.Description("Number of samples (default: 1000)")),
	)
}

// requestTimeout bounds a single tool call.
const requestTimeout = 30 * time.Second
