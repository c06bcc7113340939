package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/unstuck-app/unstuck/internal/storage"
	"github.com/unstuck-app/unstuck/internal/tutor"
)

func newTestMCPDeps(t *testing.T) (AppDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return AppDeps{Tutor: tutor.NewService(store, defaultGateway())}, store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func seedProblem(t *testing.T, store *storage.Store, title string) string {
	t.Helper()
	node := storage.ProblemNode{
		ID: uuid.New().String(),
		Content: storage.ProblemContent{
			Text:     "Solve for x: 2x + 3 = 11",
			Category: "Algebra",
			Title:    title,
		},
		HiddenSolution: "Subtract 3, divide by 2.",
		HiddenAnswer:   "x = 4",
		GeneratedBy:    storage.GeneratedByUserUpload,
		Status:         storage.StatusActive,
	}
	if err := store.CreateNode(node); err != nil {
		t.Fatalf("seeding node: %v", err)
	}
	return node.ID
}

func TestMCPTool_RecentProblems(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedProblem(t, store, "First")
	seedProblem(t, store, "Second")

	handler := mcpRecentProblems(deps)
	req := makeCallToolRequest("recent_problems", map[string]interface{}{"limit": 5})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(toolText(t, result)), &entries); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 problems, got %d", len(entries))
	}
}

func TestMCPTool_RecentProblems_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpRecentProblems(deps)

	result, err := handler(context.Background(), makeCallToolRequest("recent_problems", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_GetProblem(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	id := seedProblem(t, store, "Linear Equation")

	handler := mcpGetProblem(deps)
	req := makeCallToolRequest("get_problem", map[string]interface{}{"id": id})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	text := toolText(t, result)
	var out struct {
		Problem  map[string]any `json:"problem"`
		Attempts int            `json:"attempts"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out.Problem["title"] != "Linear Equation" {
		t.Fatalf("unexpected title: %v", out.Problem["title"])
	}
	if out.Attempts != 0 {
		t.Fatalf("expected 0 attempts, got %d", out.Attempts)
	}
	if strings.Contains(text, "x = 4") {
		t.Fatalf("get_problem leaks the hidden answer: %s", text)
	}
}

func TestMCPTool_GetProblem_MissingID(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpGetProblem(deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_problem", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error when id missing")
	}
}

func TestMCPTool_RevealSolution(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	id := seedProblem(t, store, "Linear Equation")

	handler := mcpRevealSolution(deps)
	req := makeCallToolRequest("reveal_solution", map[string]interface{}{"id": id})

	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if out["answer"] != "x = 4" {
		t.Fatalf("unexpected answer: %s", out["answer"])
	}
	if out["solution"] != "Subtract 3, divide by 2." {
		t.Fatalf("unexpected solution: %s", out["solution"])
	}
}

func TestMCPTool_RevealSolution_Unknown(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpRevealSolution(deps)

	req := makeCallToolRequest("reveal_solution", map[string]interface{}{
		"id": uuid.New().String(),
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error for unknown id")
	}
}
