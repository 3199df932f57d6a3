package app

// scheduler.go retries queued audit entries in the background so a burst of
// rate limiting does not leave the log behind until the next mutation.

import (
	"context"
	"time"

	"github.com/JonMunkholm/sheetstore/internal/logging"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// RunAuditFlusher flushes the audit queue every interval until ctx is done.
func RunAuditFlusher(ctx context.Context, audit *store.AuditLogger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	logging.FromContext(ctx).Info("audit flusher started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.FromContext(ctx).Info("audit flusher stopped")
			return
		case <-ticker.C:
			flushOnce(ctx, audit)
		}
	}
}

func flushOnce(ctx context.Context, audit *store.AuditLogger) {
	if audit.Pending() == 0 {
		return
	}
	start := time.Now()
	n, err := audit.Flush(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("audit flush failed", "pending", audit.Pending(), "error", err)
		return
	}
	logging.FromContext(ctx).Info("audit flush completed",
		"entries", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
