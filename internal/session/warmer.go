package session

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Warmer keeps a session's full catalog listings fresh on a fixed interval.
type Warmer struct {
	logger   *zap.Logger
	session  *Session
	interval time.Duration
}

func NewWarmer(s *Session, interval time.Duration, logger *zap.Logger) *Warmer {
	return &Warmer{
		logger:   logger.Named("warmer"),
		session:  s,
		interval: interval,
	}
}

// Run refreshes once, then on every tick until ctx is cancelled. A
// non-positive interval disables the warmer.
func (w *Warmer) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Catalog warmer disabled")
		return
	}

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting catalog warmer", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Stopping catalog warmer...")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh skips the tick while logged out; the caches were cleared on
// logout and are filled again on demand after the next login.
func (w *Warmer) refresh(ctx context.Context) {
	if !w.session.Authenticated() {
		w.logger.Debug("Skipping catalog refresh, no backend credentials")
		return
	}
	if err := w.session.Refresh(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("Catalog refresh failed", zap.Error(err))
	}
}
