// Package models defines the wire message contract shared by the server,
// the reconnecting client, and the pending-notification store.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification types exchanged over a channel. The set is closed: a
// receiver that sees anything else logs and ignores the message.
const (
	TypeConnectionEstablished = "connection_established"
	TypeTaskUpdate            = "task_update"
	TypeUnreadNotifications   = "unread_notifications"
	TypeTaskAssigned          = "task_assigned"
	TypeTaskReminder          = "task_reminder"
	TypeFileSystemChange      = "file_system_change"

	// TypeAuthenticate is client→server only.
	TypeAuthenticate = "authenticate"
)

// Priorities accepted on inbound send requests.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Notification is the canonical message unit. Identity is routing metadata
// only and never serialized; an empty Identity marks a broadcast-class
// notification that goes to every open channel regardless of auth state.
type Notification struct {
	Type      string          `json:"type"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`

	Identity string `json:"-"`
}

// AuthFrame is the first client→server message on a fresh channel.
type AuthFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

// Task is one record in an employee's task dashboard file.
type Task struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	DueDate  string `json:"dueDate,omitempty"`
}

// StatusAssigned is the task status that triggers a notification.
const StatusAssigned = "assigned"

// TaskUpdateData is the payload of a task_update notification.
type TaskUpdateData struct {
	Tasks      []Task `json:"tasks"`
	ChangeType string `json:"changeType"`
	FilePath   string `json:"filePath"`
}

// UnreadData is the payload of an unread_notifications notification.
// The count is advisory: the backlog itself is fetched separately.
type UnreadData struct {
	Count int `json:"count"`
}

// TaskAssignedData is the payload of a task_assigned notification.
type TaskAssignedData struct {
	TaskTitle  string `json:"taskTitle"`
	AssignedBy string `json:"assignedBy,omitempty"`
	Priority   string `json:"priority"`
	TaskID     string `json:"taskId,omitempty"`
}

// TaskReminderData is the payload of a task_reminder notification.
type TaskReminderData struct {
	TaskTitle string `json:"taskTitle"`
	Priority  string `json:"priority"`
	TaskID    string `json:"taskId,omitempty"`
	DueDate   string `json:"dueDate,omitempty"`
}

// FileChangeData is the payload of a broadcast-class file_system_change.
type FileChangeData struct {
	Path       string `json:"path"`
	ChangeType string `json:"changeType"`
}

// New builds an identity-scoped notification with a typed payload.
// A marshal failure here means a programming error in the payload type.
func New(typ, identity string, payload any) (Notification, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Notification{}, fmt.Errorf("models: marshal %s payload: %w", typ, err)
		}
		raw = b
	}
	return Notification{
		Type:      typ,
		Data:      raw,
		Timestamp: time.Now().UTC(),
		Identity:  identity,
	}, nil
}

// NewBroadcast builds a broadcast-class notification carrying only a message.
func NewBroadcast(typ, message string) Notification {
	return Notification{
		Type:      typ,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// IsBroadcast reports whether the notification targets all open channels.
func (n Notification) IsBroadcast() bool {
	return n.Identity == ""
}

// PendingNotification is one durable mailbox entry for an identity that had
// no open channel when a notification was produced. Entries are append-only:
// delivery flips Delivered, it never deletes the row.
type PendingNotification struct {
	ID          string     `json:"id"`
	Identity    string     `json:"employeeId"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	Type        string     `json:"type"`
	Priority    string     `json:"priority"`
	TaskID      string     `json:"taskId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	Delivered   bool       `json:"delivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// ChangeEvent kinds produced by the watch engine.
const (
	ChangeAdded   = "added"
	ChangeChanged = "changed"
	ChangeRemoved = "removed"
)

// ChangeEvent is a raw filesystem mutation under the watched tree.
// Ephemeral: it is consumed in the same pass that produced it.
type ChangeEvent struct {
	Path string
	Kind string
}
