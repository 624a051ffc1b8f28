package mcptools

import (
	"context"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewReplicationMCPServer creates an MCP server with both workflow tools
// registered.
func NewReplicationMCPServer(svc *ReplicationService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "koii-replication",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_replication",
		Description: "Replicate tagged template records into the task collection for one or more epics. Re-anchors dates to a shared reference date, copies content blocks, and rewires blocking/blocked-by references between the new copies.",
	}, svc.RunReplication)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_channel_tasks",
		Description: "Create one sub-task per marketing channel that shares a project with the given story. Skips channels whose task already exists.",
	}, svc.CreateChannelTasks)

	return server
}

// RunMCPServer starts an HTTP server exposing the replication MCP tools.
func RunMCPServer(ctx context.Context, svc *ReplicationService, addr string) error {
	server := NewReplicationMCPServer(svc)

	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
