package journal

import (
	"context"
	"time"
)

// Logger is the logging surface Retain writes to. *slog.Logger satisfies it.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Retain prunes entries older than maxAge, once immediately and then every
// interval, until ctx ends. A maxAge of zero disables pruning and Retain
// just waits for ctx. It always returns nil; prune errors are logged and the
// next tick tries again.
func Retain(ctx context.Context, repo Repository, maxAge, interval time.Duration, logger Logger) error {
	if maxAge <= 0 {
		<-ctx.Done()
		return nil
	}

	prune := func() {
		removed, err := repo.Prune(ctx, time.Now().Add(-maxAge))
		switch {
		case err != nil && ctx.Err() == nil:
			logger.Error("journal prune failed", "error", err)
		case removed > 0:
			logger.Info("journal pruned", "removed", removed, "max_age", maxAge)
		}
	}

	prune()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			prune()
		}
	}
}
