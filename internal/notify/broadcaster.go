// Package notify routes notifications to live channels or the pending
// mailbox for offline identities.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/renshaw/taskwire/internal/models"
	"github.com/renshaw/taskwire/internal/pending"
)

// Sender is the live-channel surface the broadcaster fans out to.
type Sender interface {
	SendToIdentity(identity string, n models.Notification) int
	Broadcast(n models.Notification) int
	ClientCount() int
}

// Broadcaster fans out notifications. Identity-scoped messages that reach
// zero channels are queued durably so nothing is silently dropped for
// offline identities. That includes the case where channels looked open
// but every send failed: the message is re-queued rather than lost.
type Broadcaster struct {
	hub    Sender
	store  pending.Store
	logger *slog.Logger
}

// New creates a broadcaster.
func New(hub Sender, store pending.Store, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{hub: hub, store: store, logger: logger}
}

// Broadcast delivers n and reports how many channels received it and
// whether it was queued instead. Only a pending-store write failure
// propagates; channel-level failures are contained and logged.
func (b *Broadcaster) Broadcast(ctx context.Context, n models.Notification) (delivered int, queued bool, err error) {
	if n.IsBroadcast() {
		sent := b.hub.Broadcast(n)
		b.logger.Debug("broadcast sent",
			slog.String("type", n.Type),
			slog.Int("delivered", sent),
			slog.Int("clients", b.hub.ClientCount()))
		return sent, false, nil
	}

	delivered = b.hub.SendToIdentity(n.Identity, n)
	if delivered > 0 {
		b.logger.Debug("notification delivered",
			slog.String("type", n.Type),
			slog.String("identity", n.Identity),
			slog.Int("delivered", delivered))
		return delivered, false, nil
	}

	entry, err := b.store.Enqueue(ctx, toPending(n))
	if err != nil {
		return 0, false, fmt.Errorf("notify: enqueue for %s: %w", n.Identity, err)
	}
	b.logger.Info("notification queued",
		slog.String("type", n.Type),
		slog.String("identity", n.Identity),
		slog.String("id", entry.ID))
	return 0, true, nil
}

// toPending flattens a notification into a mailbox entry. Typed payloads
// contribute the title and task reference where they carry one.
func toPending(n models.Notification) models.PendingNotification {
	entry := models.PendingNotification{
		Identity:  n.Identity,
		Message:   n.Message,
		Type:      n.Type,
		CreatedAt: n.Timestamp,
	}

	switch n.Type {
	case models.TypeTaskAssigned:
		var d models.TaskAssignedData
		if err := json.Unmarshal(n.Data, &d); err == nil {
			entry.Title = d.TaskTitle
			entry.Priority = d.Priority
			entry.TaskID = d.TaskID
			if entry.Message == "" {
				entry.Message = "New task assigned: " + d.TaskTitle
			}
		}
	case models.TypeTaskReminder:
		var d models.TaskReminderData
		if err := json.Unmarshal(n.Data, &d); err == nil {
			entry.Title = d.TaskTitle
			entry.Priority = d.Priority
			entry.TaskID = d.TaskID
			if entry.Message == "" {
				entry.Message = "Reminder: " + d.TaskTitle
			}
		}
	case models.TypeTaskUpdate:
		var d models.TaskUpdateData
		if err := json.Unmarshal(n.Data, &d); err == nil {
			if len(d.Tasks) > 0 {
				entry.Title = d.Tasks[0].Title
				entry.Priority = d.Tasks[0].Priority
				entry.TaskID = d.Tasks[0].ID
			}
			if entry.Message == "" {
				entry.Message = fmt.Sprintf("%d assigned task(s) updated", len(d.Tasks))
			}
		}
	}

	return entry
}
