package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/testutil"
)

type fakeBroadcaster struct {
	delivered int
	queued    bool
	err       error
	received  []models.Notification
}

func (f *fakeBroadcaster) Broadcast(_ context.Context, n models.Notification) (int, bool, error) {
	f.received = append(f.received, n)
	return f.delivered, f.queued, f.err
}

func testServer(t *testing.T, b Broadcaster, authEnabled bool, token string) *httptest.Server {
	t.Helper()
	db := testutil.TestDB(t)
	srv := httptest.NewServer(NewRouter(b, db, authEnabled, token, nil))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestSendNotification_OfflineQueues(t *testing.T) {
	b := &fakeBroadcaster{queued: true}
	srv := testServer(t, b, false, "")

	resp := postJSON(t, srv.URL+"/notifications/send", SendNotificationRequest{
		EmployeeID: "7",
		Title:      "Prepare invoice",
		Message:    "New task assigned: Prepare invoice",
		Type:       models.TypeTaskAssigned,
		Priority:   models.PriorityHigh,
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	out := decodeBody[SendNotificationResponse](t, resp)
	if !out.Queued || out.DeliveredTo != 0 {
		t.Errorf("response = %+v", out)
	}

	if len(b.received) != 1 {
		t.Fatalf("broadcaster received %d notifications", len(b.received))
	}
	n := b.received[0]
	if n.Type != models.TypeTaskAssigned || n.Identity != "7" {
		t.Errorf("notification = %+v", n)
	}
	var data models.TaskAssignedData
	if err := json.Unmarshal(n.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.TaskTitle != "Prepare invoice" || data.Priority != models.PriorityHigh {
		t.Errorf("payload = %+v", data)
	}
}

func TestSendNotification_DeliveredLive(t *testing.T) {
	b := &fakeBroadcaster{delivered: 2}
	srv := testServer(t, b, false, "")

	resp := postJSON(t, srv.URL+"/notifications/send", SendNotificationRequest{
		EmployeeID: "7",
		Title:      "Standup",
		Message:    "Reminder: Standup",
		Type:       models.TypeTaskReminder,
		DueDate:    "2026-09-02",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	out := decodeBody[SendNotificationResponse](t, resp)
	if out.Queued || out.DeliveredTo != 2 {
		t.Errorf("response = %+v", out)
	}

	var data models.TaskReminderData
	if err := json.Unmarshal(b.received[0].Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.DueDate != "2026-09-02" {
		t.Errorf("dueDate = %q", data.DueDate)
	}
}

func TestSendNotification_DefaultsTypeAndPriority(t *testing.T) {
	b := &fakeBroadcaster{queued: true}
	srv := testServer(t, b, false, "")

	resp := postJSON(t, srv.URL+"/notifications/send", map[string]string{
		"employeeId": "7",
		"title":      "x",
		"message":    "y",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var data models.TaskAssignedData
	if err := json.Unmarshal(b.received[0].Data, &data); err != nil {
		t.Fatal(err)
	}
	if b.received[0].Type != models.TypeTaskAssigned || data.Priority != models.PriorityMedium {
		t.Errorf("type = %q, priority = %q", b.received[0].Type, data.Priority)
	}
}

func TestSendNotification_Validation(t *testing.T) {
	srv := testServer(t, &fakeBroadcaster{}, false, "")

	cases := map[string]SendNotificationRequest{
		"missing employeeId": {Title: "x", Message: "y"},
		"missing title":      {EmployeeID: "7", Message: "y"},
		"missing message":    {EmployeeID: "7", Title: "x"},
		"bad type":           {EmployeeID: "7", Title: "x", Message: "y", Type: "email"},
		"bad priority":       {EmployeeID: "7", Title: "x", Message: "y", Priority: "asap"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/notifications/send", req)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestSendNotification_InvalidJSON(t *testing.T) {
	srv := testServer(t, &fakeBroadcaster{}, false, "")

	resp, err := http.Post(srv.URL+"/notifications/send", "application/json",
		bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestFetchNotifications_DrainsMailbox(t *testing.T) {
	db := testutil.TestDB(t)
	srv := httptest.NewServer(NewRouter(&fakeBroadcaster{}, db, false, "", nil))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	for _, title := range []string{"First", "Second"} {
		_, err := db.Enqueue(ctx, models.PendingNotification{
			Identity: "7",
			Title:    title,
			Message:  "m",
			Type:     models.TypeTaskAssigned,
			Priority: models.PriorityMedium,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	if _, err := db.Enqueue(ctx, models.PendingNotification{
		Identity: "9", Title: "Other", Message: "m", Type: models.TypeTaskAssigned,
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/notifications/7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody[PendingListResponse](t, resp)
	if out.Count != 2 || len(out.Notifications) != 2 {
		t.Fatalf("first fetch = %+v", out)
	}
	if out.Notifications[0].Title != "First" || out.Notifications[1].Title != "Second" {
		t.Errorf("order = %q, %q", out.Notifications[0].Title, out.Notifications[1].Title)
	}

	// Drain semantics: a repeat fetch is empty.
	resp2, err := http.Get(srv.URL + "/notifications/7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	out2 := decodeBody[PendingListResponse](t, resp2)
	if out2.Count != 0 || len(out2.Notifications) != 0 {
		t.Errorf("repeat fetch = %+v", out2)
	}

	// The other identity's mailbox is untouched.
	count, err := db.CountUndelivered(ctx, "9")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("identity 9 undelivered = %d, want 1", count)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := testServer(t, &fakeBroadcaster{}, true, "secret-token")

	resp, err := http.Get(srv.URL + "/notifications/7")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/notifications/7", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer secret-token")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", resp.StatusCode)
	}
}
