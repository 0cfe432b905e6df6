package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/realestate-assistant/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode keeps readers from blocking the sweeper's deletes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS visitors (
		visitor_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_seen ON visitors(last_seen_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisitor(row rowScanner) (*domain.Visitor, error) {
	var v domain.Visitor
	var lastSeen, createdAt, updatedAt int64

	if err := row.Scan(&v.VisitorID, &v.Username, &lastSeen, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	v.LastSeenAt = time.Unix(lastSeen, 0)
	v.CreatedAt = time.Unix(createdAt, 0)
	v.UpdatedAt = time.Unix(updatedAt, 0)
	return &v, nil
}

// GetVisitor retrieves a visitor by ID.
func (s *SQLiteStore) GetVisitor(ctx context.Context, visitorID string) (*domain.Visitor, error) {
	query := `
		SELECT visitor_id, username, last_seen_at, created_at, updated_at
		FROM visitors WHERE visitor_id = ?`

	v, err := scanVisitor(s.db.QueryRowContext(ctx, query, visitorID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan visitor row: %w", err)
	}
	return v, nil
}

// UpsertVisitor creates or updates a visitor record.
func (s *SQLiteStore) UpsertVisitor(ctx context.Context, visitor *domain.Visitor) error {
	query := `
	INSERT INTO visitors (visitor_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(visitor_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		visitor.VisitorID, visitor.Username,
		visitor.LastSeenAt.Unix(), visitor.CreatedAt.Unix(), visitor.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert visitor: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a visitor.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, visitorID string, lastSeen time.Time) error {
	query := `UPDATE visitors SET last_seen_at = ?, updated_at = ? WHERE visitor_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), visitorID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", visitorID)
	}

	return nil
}

// GetExpiredVisitors retrieves visitors idle for longer than ttl.
func (s *SQLiteStore) GetExpiredVisitors(ctx context.Context, ttl time.Duration) ([]*domain.Visitor, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `
		SELECT visitor_id, username, last_seen_at, created_at, updated_at
		FROM visitors WHERE last_seen_at < ?`

	rows, err := s.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query expired visitors: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close expired visitors rows", "error", closeErr)
		}
	}()

	var visitors []*domain.Visitor
	for rows.Next() {
		v, err := scanVisitor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired visitor row: %w", err)
		}
		visitors = append(visitors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired visitors: %w", err)
	}

	return visitors, nil
}

// DeleteVisitor removes a visitor record.
func (s *SQLiteStore) DeleteVisitor(ctx context.Context, visitorID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE visitor_id = ?`, visitorID); err != nil {
		return fmt.Errorf("delete visitor: %w", err)
	}
	return nil
}

// CountVisitors returns the number of recorded visitors.
func (s *SQLiteStore) CountVisitors(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM visitors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count visitors: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
