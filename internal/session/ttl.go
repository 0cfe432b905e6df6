package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/realestate-assistant/internal/domain"
	"github.com/ashureev/realestate-assistant/internal/shared"
)

// VisitorStore is the part of the visitor repository the sweeper needs.
type VisitorStore interface {
	GetExpiredVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error)
	DeleteVisitor(ctx context.Context, visitorID string) error
}

// DiscardCallback is called after a session has been discarded.
type DiscardCallback func(visitorID, sessionID string)

// VisitorExpiredCallback is called after every session of an expired visitor has been discarded.
type VisitorExpiredCallback func(visitorID string)

// SweeperConfig configures StartSweeper.
type SweeperConfig struct {
	TTL              time.Duration
	Interval         time.Duration
	OnDiscard        DiscardCallback
	OnVisitorExpired VisitorExpiredCallback
}

// deleteVisitorWithRetry retries DeleteVisitor with exponential backoff on
// SQLite lock contention.
func deleteVisitorWithRetry(ctx context.Context, repo VisitorStore, visitorID string) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := repo.DeleteVisitor(ctx, visitorID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
			slog.Debug("Session sweeper: database locked deleting visitor, retrying",
				"user_id", visitorID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		if ctx.Err() != nil {
			slog.Debug("Session sweeper: context canceled during visitor delete",
				"user_id", visitorID,
				"error", err)
			return nil
		}

		return fmt.Errorf("delete visitor %s after %d attempts: %w", visitorID, i+1, err)
	}

	return nil
}

// StartSweeper runs a background goroutine that discards sessions idle for
// longer than cfg.TTL and forgets visitors whose records have expired.
func StartSweeper(ctx context.Context, reg *Registry, repo VisitorStore, cfg SweeperConfig) {
	ticker := time.NewTicker(cfg.Interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", cfg.Interval, "ttl", cfg.TTL)

		for {
			select {
			case <-ticker.C:
				Sweep(ctx, reg, repo, cfg)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Sweep performs one sweeping pass and returns the number of sessions discarded.
// Sessions in the middle of a turn are never discarded, and a visitor whose
// record expired is kept while any of its sessions is still in use.
func Sweep(ctx context.Context, reg *Registry, repo VisitorStore, cfg SweeperConfig) int {
	discarded := 0
	now := reg.now()
	cutoff := now.Add(-cfg.TTL)

	for _, s := range reg.Idle(cfg.TTL) {
		if !s.TryBeginTurn() {
			continue
		}
		// Re-check under the turn claim; a request may have touched it since Idle.
		if s.LastActive().Before(cutoff) && reg.Drop(s.VisitorID, s.SessionID) {
			discarded++
			if cfg.OnDiscard != nil {
				cfg.OnDiscard(s.VisitorID, s.SessionID)
			}
		}
		s.EndTurn()
	}

	if repo == nil {
		return discarded
	}

	expired, err := repo.GetExpiredVisitors(ctx, cfg.TTL)
	if err != nil {
		slog.Error("Session sweeper failed to list expired visitors", "error", err)
		return discarded
	}

	forgotten := 0
	for _, v := range expired {
		if !v.Expired(now, cfg.TTL) {
			continue
		}
		if reg.ActiveSince(v.VisitorID, cutoff) {
			slog.Debug("Skipping expired visitor with live sessions", "user_id", v.VisitorID)
			continue
		}

		discarded += reg.DropVisitor(v.VisitorID)
		if cfg.OnVisitorExpired != nil {
			cfg.OnVisitorExpired(v.VisitorID)
		}
		if err := deleteVisitorWithRetry(ctx, repo, v.VisitorID); err != nil {
			slog.Warn("Session sweeper failed to delete visitor", "error", err, "user_id", v.VisitorID)
		}
		forgotten++
	}

	if discarded > 0 || forgotten > 0 {
		slog.Info("Session sweep completed", "sessions_discarded", discarded, "visitors_expired", forgotten)
	}
	return discarded
}
