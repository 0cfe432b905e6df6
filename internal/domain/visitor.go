// Package domain contains core domain types for the real estate assistant.
package domain

import (
	"time"
)

// Visitor is an anonymous browser identity. Only the identity and its
// activity timestamps are recorded; conversations stay in memory.
type Visitor struct {
	VisitorID  string    `json:"visitor_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the visitor has been inactive at now.
func (v *Visitor) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(v.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}

// Expired reports whether the visitor has been idle longer than ttl.
func (v *Visitor) Expired(now time.Time, ttl time.Duration) bool {
	return v.IdleFor(now) > ttl
}
