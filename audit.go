package authz

import (
	"context"
	"time"
)

// AuditEntry records one decision for later inspection or replay.
type AuditEntry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	TenantID  string        `json:"tenant_id"`
	UserID    string        `json:"user_id"`
	Request   AccessRequest `json:"request"`
	Decision  *Decision     `json:"decision"`
	TraceID   string        `json:"trace_id,omitempty"`
}

// AuditFilter narrows GetAccessLog queries. Zero fields are not filtered.
type AuditFilter struct {
	TenantID       string
	UserID         string
	PermissionCode string
	StartTime      time.Time
	EndTime        time.Time
	Limit          int
}

// AuditStore persists decision records. Implementations must tolerate
// concurrent writers; the engine writes from a single background goroutine
// but callers may share a store between engines.
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}
