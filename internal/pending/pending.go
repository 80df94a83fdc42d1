package pending

import (
	"context"

	"github.com/renshaw/taskwire/internal/models"
)

// Store defines the mailbox operations used by the broadcaster and the
// HTTP/mobile fetch path. Consumers should depend on this interface rather
// than the concrete *DB type to facilitate testing with mocks.
type Store interface {
	Enqueue(ctx context.Context, n models.PendingNotification) (models.PendingNotification, error)
	FetchAndMarkDelivered(ctx context.Context, identity string) ([]models.PendingNotification, error)
	CountUndelivered(ctx context.Context, identity string) (int, error)
	ListByIdentity(ctx context.Context, identity string, includeDelivered bool) ([]models.PendingNotification, error)
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
