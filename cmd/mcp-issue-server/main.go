package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cexll/firstfix/internal/config"
)

func main() {
	_ = godotenv.Load()

	tools := &issueTools{stateFile: config.StateFileFromEnv()}
	log.Println("[MCP Issue Server] Starting firstfix issue MCP server v1.0.0")
	log.Printf("[MCP Issue Server] State file: %s", tools.stateFile)

	server := newServer(tools)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Println("[MCP Issue Server] Starting on stdio transport...")
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Fatalf("[MCP Issue Server] Server error: %v", err)
	}
	log.Println("[MCP Issue Server] Server stopped gracefully")
}

func newServer(tools *issueTools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "firstfix-issue-server",
		Version: "v1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_processed_issues",
		Description: "List issues the firstfix bot has already handled, newest first, with their outcome and pull request",
	}, tools.ListProcessed)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "check_issue_processed",
		Description: "Check whether the firstfix bot has already handled a GitHub issue URL",
	}, tools.CheckProcessed)
	log.Println("[MCP Issue Server] Registered tools: list_processed_issues, check_issue_processed")

	return server
}
