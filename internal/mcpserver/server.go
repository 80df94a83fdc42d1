// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes notification tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/pending"
)

// Broadcaster mirrors the API-layer delivery surface.
type Broadcaster interface {
	Broadcast(ctx context.Context, n models.Notification) (delivered int, queued bool, err error)
}

// Server wraps the MCP server with taskwire tools.
type Server struct {
	mcp         *server.MCPServer
	broadcaster Broadcaster
	store       pending.Store
}

// New creates a new MCP server with all taskwire tools registered.
func New(broadcaster Broadcaster, store pending.Store) *Server {
	s := &Server{broadcaster: broadcaster, store: store}

	s.mcp = server.NewMCPServer(
		"Taskwire",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("send_notification",
		mcp.WithDescription("Send a notification to an employee. Delivered over their live channel when connected, queued durably otherwise."),
		mcp.WithString("employee_id", mcp.Required(), mcp.Description("Target employee identity")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short notification title")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Notification body text")),
		mcp.WithString("type", mcp.Description("Notification type: task_assigned (default) or task_reminder")),
		mcp.WithString("priority", mcp.Description("Priority: low, medium (default), high, urgent")),
	), s.sendNotification)

	s.mcp.AddTool(mcp.NewTool("list_pending",
		mcp.WithDescription("List queued notifications for an employee without marking them delivered."),
		mcp.WithString("employee_id", mcp.Required(), mcp.Description("Employee identity")),
		mcp.WithBoolean("include_delivered", mcp.Description("Include already delivered entries (audit view)")),
	), s.listPending)

	s.mcp.AddTool(mcp.NewTool("pending_count",
		mcp.WithDescription("Count undelivered notifications for an employee."),
		mcp.WithString("employee_id", mcp.Required(), mcp.Description("Employee identity")),
	), s.pendingCount)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) sendNotification(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	employeeID, err := req.RequireString("employee_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	typ := models.TypeTaskAssigned
	if t, tErr := req.RequireString("type"); tErr == nil && t != "" {
		typ = t
	}
	priority := models.PriorityMedium
	if p, pErr := req.RequireString("priority"); pErr == nil && p != "" {
		priority = p
	}
	if typ != models.TypeTaskAssigned && typ != models.TypeTaskReminder {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported type: %s", typ)), nil
	}

	var payload any
	if typ == models.TypeTaskReminder {
		payload = models.TaskReminderData{TaskTitle: title, Priority: priority}
	} else {
		payload = models.TaskAssignedData{TaskTitle: title, Priority: priority}
	}
	n, err := models.New(typ, employeeID, payload)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n.Message = message

	delivered, queued, err := s.broadcaster.Broadcast(ctx, n)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if queued {
		return mcp.NewToolResultText(fmt.Sprintf("queued for %s (offline)", employeeID)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("delivered to %d channel(s) for %s", delivered, employeeID)), nil
}

func (s *Server) listPending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	employeeID, err := req.RequireString("employee_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	includeDelivered := req.GetBool("include_delivered", false)

	items, err := s.store.ListByIdentity(ctx, employeeID, includeDelivered)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) pendingCount(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	employeeID, err := req.RequireString("employee_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	count, err := s.store.CountUndelivered(ctx, employeeID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%d", count)), nil
}
