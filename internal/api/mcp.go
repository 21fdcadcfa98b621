package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/shopper/internal/shopping"
)

// NewMCPServer creates an MCP server exposing the product search as a tool.
func NewMCPServer(s Searcher, version string) *server.MCPServer {
	srv := server.NewMCPServer(
		"shopper",
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions("shopper: compares prices, ratings and features for a product across e-commerce sites using live web search."),
		server.WithRecovery(),
	)

	srv.AddTool(
		mcp.NewTool("search_products",
			mcp.WithDescription("Search the web for a product and return a summary, a list of offers from different sellers, and a recommendation as JSON."),
			mcp.WithString("query", mcp.Description("What to shop for, e.g. 'wireless mouse'"), mcp.Required()),
		),
		mcpSearchProducts(s),
	)

	return srv
}

func mcpSearchProducts(s Searcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		query, err := shopping.NormalizeQuery(raw)
		if err != nil {
			return mcpError("query must not be blank"), nil
		}

		result := s.Search(ctx, query)

		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
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
