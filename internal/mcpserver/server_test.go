package mcpserver

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/pending"
	"github.com/renshaw/taskwire/internal/testutil"
)

type stubBroadcaster struct {
	delivered int
	queued    bool
	received  []models.Notification
}

func (s *stubBroadcaster) Broadcast(_ context.Context, n models.Notification) (int, bool, error) {
	s.received = append(s.received, n)
	return s.delivered, s.queued, nil
}

func testServer(t *testing.T) (*Server, *stubBroadcaster, *pending.DB) {
	t.Helper()
	db := testutil.TestDB(t)
	b := &stubBroadcaster{}
	return New(b, db), b, db
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	if len(r.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := r.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", r.Content[0])
	}
	return tc.Text
}

func TestSendNotification_Queued(t *testing.T) {
	srv, b, _ := testServer(t)
	b.queued = true

	result, err := srv.sendNotification(context.Background(), toolRequest("send_notification", map[string]interface{}{
		"employee_id": "7",
		"title":       "Prepare invoice",
		"message":     "New task assigned: Prepare invoice",
		"priority":    "high",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "queued") {
		t.Errorf("text = %q", resultText(t, result))
	}
	if len(b.received) != 1 || b.received[0].Type != models.TypeTaskAssigned {
		t.Errorf("received = %+v", b.received)
	}
}

func TestSendNotification_RejectsUnsupportedType(t *testing.T) {
	srv, _, _ := testServer(t)

	result, err := srv.sendNotification(context.Background(), toolRequest("send_notification", map[string]interface{}{
		"employee_id": "7",
		"title":       "x",
		"message":     "y",
		"type":        "task_update",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected tool error for unsupported type")
	}
}

func TestSendNotification_MissingArgs(t *testing.T) {
	srv, _, _ := testServer(t)

	result, err := srv.sendNotification(context.Background(), toolRequest("send_notification", map[string]interface{}{
		"employee_id": "7",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing title/message")
	}
}

func TestListPendingAndCount(t *testing.T) {
	srv, _, db := testServer(t)
	ctx := context.Background()

	if _, err := db.Enqueue(ctx, models.PendingNotification{
		Identity: "7",
		Title:    "Prepare invoice",
		Message:  "m",
		Type:     models.TypeTaskAssigned,
		Priority: models.PriorityHigh,
	}); err != nil {
		t.Fatal(err)
	}

	result, err := srv.listPending(ctx, toolRequest("list_pending", map[string]interface{}{
		"employee_id": "7",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resultText(t, result), "Prepare invoice") {
		t.Errorf("list text = %q", resultText(t, result))
	}

	count, err := srv.pendingCount(ctx, toolRequest("pending_count", map[string]interface{}{
		"employee_id": "7",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, count); got != "1" {
		t.Errorf("count = %q, want 1", got)
	}

	// Listing never flips the delivered flag.
	undelivered, err := db.CountUndelivered(ctx, "7")
	if err != nil {
		t.Fatal(err)
	}
	if undelivered != 1 {
		t.Errorf("undelivered after list = %d, want 1", undelivered)
	}
}
