// Package store persists anonymous visitor records. Conversations are never
// written here; they live only in memory for the lifetime of a session.
package store

import (
	"context"
	"time"

	"github.com/ashureev/realestate-assistant/internal/domain"
)

// Repository defines the interface for persisting visitor records.
type Repository interface {
	// GetVisitor retrieves a visitor by ID. It returns nil, nil when absent.
	GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error)

	// UpsertVisitor creates or updates a visitor record.
	UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error

	// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
	UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error

	// GetExpiredVisitors retrieves visitors idle for longer than ttl.
	GetExpiredVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error)

	// DeleteVisitor removes a visitor record.
	DeleteVisitor(ctx context.Context, visitorID string) error

	// CountVisitors returns the number of recorded visitors.
	CountVisitors(ctx context.Context) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
