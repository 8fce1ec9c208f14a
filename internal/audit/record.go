// Package audit persists an append-only record of observed events and
// the decisions the engine made about them. This is pure
// observability: it is never read back to reconstruct PositionStore or
// TrackingMap state.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is one durable observation.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ObservedAt time.Time `gorm:"index"`
	EventKind  string    `gorm:"index"`
	Mint       string    `gorm:"index"`
	Target     string
	Decision   string
	Reason     string
	PNLPct     float64
}

// TableName pins the table name.
func (Record) TableName() string { return "audit_records" }

// Log is the interface the engine depends on; a no-op implementation
// satisfies it when no database DSN is configured, so the core engine
// never blocks on a database.
type Log interface {
	Write(ctx context.Context, r Record) error
}

// NoOp discards every record. Used when DatabaseConfig.DSN is empty.
type NoOp struct{}

func (NoOp) Write(ctx context.Context, r Record) error { return nil }
