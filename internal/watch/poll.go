package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/renshaw/taskwire/internal/models"
)

// runPoll scans the profiles tree on a fixed interval and diffs content
// checksums against the previous scan. Mtime is not part of the fingerprint:
// on network mounts its granularity can swallow a quick rewrite, and a
// missed rewrite is a missed notification. The first scan primes the
// snapshot without emitting, so a restart does not replay every dashboard
// on disk.
func (e *Engine) runPoll(ctx context.Context) error {
	checksums := make(map[string]string)
	primed := false

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	scan := func() {
		metas, err := e.store.List()
		if err != nil {
			// A momentarily unavailable filesystem degrades this scan only.
			e.logger.Warn("watch: scan failed", slog.String("error", err.Error()))
			return
		}

		seen := make(map[string]string, len(metas))
		var events []models.ChangeEvent
		for _, m := range metas {
			seen[m.Path] = m.Checksum

			prev, existed := checksums[m.Path]
			switch {
			case !existed:
				events = append(events, models.ChangeEvent{Path: m.Path, Kind: models.ChangeAdded})
			case prev != m.Checksum:
				events = append(events, models.ChangeEvent{Path: m.Path, Kind: models.ChangeChanged})
			}
		}
		for path := range checksums {
			if _, ok := seen[path]; !ok {
				events = append(events, models.ChangeEvent{Path: path, Kind: models.ChangeRemoved})
			}
		}

		wasPrimed := primed
		checksums = seen
		primed = true
		if !wasPrimed {
			return
		}

		for _, ev := range events {
			e.handleEvent(ctx, ev)
		}
	}

	scan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			scan()
		}
	}
}
