// Package mcpserver exposes the inventory as Model Context Protocol tools so
// that agents can manage boxes directly.
//
// Every tool is a thin adapter: it builds the matching operation and runs it
// through the same [command.Executor] the HTTP and WebSocket surfaces use, so
// replies read the same everywhere. Failures are reported as tool errors
// (IsError) carrying the user-facing text, never as protocol errors.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/intent"
	"github.com/MrWong99/boxkeeper/internal/inventory"
)

// Name is the implementation name announced to clients.
const Name = "boxkeeper"

// Server owns the MCP server and its tools.
type Server struct {
	srv  *mcp.Server
	inv  *inventory.Service
	exec *command.Executor
}

// New creates a Server with every inventory tool registered.
func New(inv *inventory.Service, exec *command.Executor, version string) *Server {
	s := &Server{
		srv:  mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil),
		inv:  inv,
		exec: exec,
	}
	s.register()
	return s
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcp.Server { return s.srv }

// Handler serves the streamable HTTP transport.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.srv }, nil)
}

// RunStdio serves one client over stdin/stdout until ctx is done or the
// client disconnects.
func (s *Server) RunStdio(ctx context.Context) error {
	slog.Info("mcpserver: serving on stdio")
	if err := s.srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcpserver: run stdio: %w", err)
	}
	return nil
}

// ─── Tool inputs ─────────────────────────────────────────────────────────────

type addItemInput struct {
	Name     string `json:"name" jsonschema:"the item to add, singular or plural"`
	Quantity int    `json:"quantity,omitempty" jsonschema:"how many to add, default 1"`
	Box      string `json:"box,omitempty" jsonschema:"destination box label; when omitted a matching item's box or the default box is used"`
}

type removeItemInput struct {
	Name     string `json:"name" jsonschema:"the item to remove"`
	Quantity int    `json:"quantity,omitempty" jsonschema:"how many to remove, default 1"`
	All      bool   `json:"all,omitempty" jsonschema:"remove every unit of the item"`
	FromBox  string `json:"from_box,omitempty" jsonschema:"box to remove from, to pick among items with the same name"`
}

type findItemInput struct {
	Name string `json:"name" jsonschema:"the item to look for"`
}

type moveItemInput struct {
	Name    string `json:"name" jsonschema:"the item to move"`
	ToBox   string `json:"to_box" jsonschema:"destination box label"`
	FromBox string `json:"from_box,omitempty" jsonschema:"source box label, to pick among items with the same name"`
}

type boxInput struct {
	Box string `json:"box" jsonschema:"box label, e.g. A, kitchen or shoes 1"`
}

type listBoxesInput struct{}

type runCommandInput struct {
	Text string `json:"text" jsonschema:"a natural-language inventory request, may contain several commands"`
}

func (s *Server) register() {
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "add_item",
		Description: "Add a quantity of an item to a box. Similar item names are merged into the existing item.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in addItemInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "add_item", intent.Operation{Kind: intent.KindAdd, ItemName: in.Name, Quantity: in.Quantity, ToBox: in.Box})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "remove_item",
		Description: "Remove a quantity of an item. The item is deleted when none are left.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in removeItemInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "remove_item", intent.Operation{Kind: intent.KindRemove, ItemName: in.Name, Quantity: in.Quantity, RemoveAll: in.All, FromBox: in.FromBox})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "find_item",
		Description: "Find which boxes hold an item and how many there are.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in findItemInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "find_item", intent.Operation{Kind: intent.KindFind, ItemName: in.Name})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "move_item",
		Description: "Move an item to another box.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in moveItemInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "move_item", intent.Operation{Kind: intent.KindMove, ItemName: in.Name, ToBox: in.ToBox, FromBox: in.FromBox})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "add_box",
		Description: "Create an empty box. Succeeds without changes when the box already exists.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in boxInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "add_box", intent.Operation{Kind: intent.KindAddBox, BoxName: in.Box})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "remove_box",
		Description: "Delete an empty box.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in boxInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "remove_box", intent.Operation{Kind: intent.KindRemoveBox, BoxName: in.Box})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "clear_box",
		Description: "Delete every item in a box and keep the box.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in boxInput) (*mcp.CallToolResult, any, error) {
		return s.execute(ctx, "clear_box", intent.Operation{Kind: intent.KindClearBox, BoxName: in.Box})
	})
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "list_boxes",
		Description: "List every box with its item counts.",
	}, s.listBoxes)
	mcp.AddTool(s.srv, &mcp.Tool{
		Name:        "run_command",
		Description: "Interpret and execute a free-text inventory request such as \"add 2 batteries to box A and move the charger to box B\".",
	}, s.runCommand)
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func (s *Server) execute(ctx context.Context, tool string, op intent.Operation) (*mcp.CallToolResult, any, error) {
	return s.result(ctx, tool, s.exec.Execute(ctx, []intent.Operation{op})), nil, nil
}

func (s *Server) runCommand(ctx context.Context, _ *mcp.CallToolRequest, in runCommandInput) (*mcp.CallToolResult, any, error) {
	return s.result(ctx, "run_command", s.exec.Run(ctx, in.Text)), nil, nil
}

func (s *Server) listBoxes(ctx context.Context, _ *mcp.CallToolRequest, _ listBoxesInput) (*mcp.CallToolResult, any, error) {
	boxes := s.inv.ListBoxes()
	slog.InfoContext(ctx, "mcpserver: tool called", "tool", "list_boxes", "boxes", len(boxes))
	if len(boxes) == 0 {
		return text("There are no boxes yet.", false), nil, nil
	}
	var b strings.Builder
	for _, sum := range boxes {
		fmt.Fprintf(&b, "Box %s: %d items, %d in total\n", sum.Box.Name, sum.Items, sum.TotalQuantity)
	}
	return text(strings.TrimRight(b.String(), "\n"), false), nil, nil
}

// result converts a reply into a tool result. A pending prompt means the
// arguments were incomplete, which is reported as a tool error asking for
// the missing detail.
func (s *Server) result(ctx context.Context, tool string, r command.Reply) *mcp.CallToolResult {
	failed := r.Failed() || r.Prompt != nil || !r.Understood
	slog.InfoContext(ctx, "mcpserver: tool called", "tool", tool, "failed", failed)
	return text(r.Text(), failed)
}

func text(s string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: isError,
		Content: []mcp.Content{&mcp.TextContent{Text: s}},
	}
}
