package mcpserver_test

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/boxkeeper/internal/command"
	"github.com/MrWong99/boxkeeper/internal/intent"
	"github.com/MrWong99/boxkeeper/internal/inventory"
	"github.com/MrWong99/boxkeeper/internal/mcpserver"
	"github.com/MrWong99/boxkeeper/internal/semantic"
	embmock "github.com/MrWong99/boxkeeper/pkg/provider/embeddings/mock"
	storemock "github.com/MrWong99/boxkeeper/pkg/store/mock"
)

func connect(t *testing.T) (*mcp.ClientSession, *inventory.Service) {
	t.Helper()
	emb := &embmock.Provider{
		Vectors: map[string][]float32{
			"battery": {1, 0, 0},
			"charger": {0, 1, 0},
		},
		EmbedResult:     []float32{0, 0, 1},
		DimensionsValue: 3,
	}
	inv := inventory.New(storemock.New(), semantic.New(emb, semantic.NewMemIndex()))
	srv := mcpserver.New(inv, command.New(intent.New(nil), inv), "test")

	ctx := context.Background()
	serverT, clientT := mcp.NewInMemoryTransports()
	ss, err := srv.MCP().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() {
		cs.Close()
		ss.Wait()
	})
	return cs, inv
}

func call(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", tool, err)
	}
	if len(res.Content) != 1 {
		t.Fatalf("CallTool(%s): %d content blocks, want 1", tool, len(res.Content))
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): content is %T, want text", tool, res.Content[0])
	}
	return tc.Text, res.IsError
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	cs, _ := connect(t)
	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	want := []string{"add_box", "add_item", "clear_box", "find_item", "list_boxes", "move_item", "remove_box", "remove_item", "run_command"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("tools mismatch (-want +got):\n%s", diff)
	}
}

func TestServer_ToolFlow(t *testing.T) {
	t.Parallel()

	cs, inv := connect(t)
	steps := []struct {
		tool    string
		args    map[string]any
		want    string
		wantErr bool
	}{
		{"list_boxes", map[string]any{}, "There are no boxes yet.", false},
		{"add_item", map[string]any{"name": "batteries", "quantity": 4, "box": "a"}, "Created box A and added 4 batteries.", false},
		{"add_box", map[string]any{"box": "b"}, "Box B is ready.", false},
		{"remove_item", map[string]any{"name": "battery"}, "Removed 1 battery from box A. 3 left.", false},
		{"find_item", map[string]any{"name": "batteries"}, "Battery: 3 in box A.", false},
		{"move_item", map[string]any{"name": "battery", "to_box": "B"}, "Moved battery from box A to box B.", false},
		{"remove_box", map[string]any{"box": "B"}, "Box B is not empty.", true},
		{"clear_box", map[string]any{"box": "B"}, "Cleared box B. Removed 3 batteries.", false},
		{"list_boxes", map[string]any{}, "Box A: 0 items, 0 in total\nBox B: 0 items, 0 in total", false},
		{"remove_item", map[string]any{"name": "charger"}, "I couldn't find charger.", true},
		{"run_command", map[string]any{"text": "add 2 chargers to box A and remove box B"}, "Added 2 chargers to box A. Removed box B.", false},
		{"run_command", map[string]any{"text": "sing me a song"}, command.NotUnderstood, true},
	}
	for _, s := range steps {
		got, isErr := call(t, cs, s.tool, s.args)
		if got != s.want || isErr != s.wantErr {
			t.Fatalf("%s %v = %q (error %v), want %q (error %v)", s.tool, s.args, got, isErr, s.want, s.wantErr)
		}
	}
	if n := len(inv.ListItems()); n != 1 {
		t.Errorf("items = %d, want 1", n)
	}
}

func TestServer_MissingArgumentAsksForIt(t *testing.T) {
	t.Parallel()

	cs, _ := connect(t)
	got, isErr := call(t, cs, "add_box", map[string]any{"box": ""})
	if !isErr || got != "What should I name the new box?" {
		t.Errorf("add_box with empty name = %q (error %v)", got, isErr)
	}
}
