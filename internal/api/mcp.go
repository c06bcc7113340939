package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the tutoring store to
// agent clients. Tools stay read-mostly: agents can browse problems and
// reveal solutions, but the Socratic flow itself goes through HTTP.
func NewMCPServer(deps AppDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"unstuck",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("unstuck — Socratic math tutor. Browse recent problems, inspect one, or reveal its worked solution."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("recent_problems",
			mcp.WithDescription("List recently uploaded problems with their status and last activity."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 5, max 10)")),
		),
		mcpRecentProblems(deps),
	)

	s.AddTool(
		mcp.NewTool("get_problem",
			mcp.WithDescription("Fetch a problem or subproblem by id, including its attempt count. Solutions stay hidden."),
			mcp.WithString("id", mcp.Description("Problem node id"), mcp.Required()),
		),
		mcpGetProblem(deps),
	)

	s.AddTool(
		mcp.NewTool("reveal_solution",
			mcp.WithDescription("Reveal the hidden worked solution and final answer of a problem."),
			mcp.WithString("id", mcp.Description("Problem node id"), mcp.Required()),
		),
		mcpRevealSolution(deps),
	)

	return s
}

func mcpRecentProblems(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 5)
		if limit <= 0 {
			limit = 5
		}

		problems, err := deps.Tutor.RecentProblems(ctx, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("listing failed: %v", err)), nil
		}
		if len(problems) == 0 {
			return mcpText("[]"), nil
		}

		type entry struct {
			ID           string `json:"id"`
			Title        string `json:"title"`
			Category     string `json:"category"`
			Status       string `json:"status"`
			LastActiveAt string `json:"last_active_at"`
		}
		results := make([]entry, len(problems))
		for i, p := range problems {
			results[i] = entry{
				ID:           p.ID,
				Title:        p.Title,
				Category:     p.Category,
				Status:       string(p.Status),
				LastActiveAt: p.LastActiveAt.UTC().Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpGetProblem(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		view, err := deps.Tutor.GetProblem(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		attempts, err := deps.Tutor.AttemptCount(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("attempt count failed: %v", err)), nil
		}

		out := struct {
			Problem  any `json:"problem"`
			Attempts int `json:"attempts"`
		}{Problem: view, Attempts: attempts}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal problem: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRevealSolution(deps AppDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		hidden, err := deps.Tutor.Reveal(ctx, id)
		if err != nil {
			return mcpError(fmt.Sprintf("reveal failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"solution": hidden.Solution,
			"answer":   hidden.Answer,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal solution: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
