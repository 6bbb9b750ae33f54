package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/identra/authz"
)

// SQLAuditStore persists decision records in SQL (squealx). Request and
// decision are stored as JSON blobs; the indexed columns carry what the
// access-log filters need.
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *authz.AuditEntry) error {
	reqB, err := json.Marshal(entry.Request)
	if err != nil {
		return err
	}
	var decB []byte
	if entry.Decision != nil {
		if decB, err = json.Marshal(entry.Decision); err != nil {
			return err
		}
	}
	q := `INSERT INTO audit_entries(id, ts, tenant_id, user_id, trace_id, request, decision)
		VALUES(:id, :ts, :tenant_id, :user_id, :trace_id, :request, :decision)`
	_, err = s.db.NamedExecContext(ctx, q, map[string]any{
		"id":        entry.ID,
		"ts":        entry.Timestamp,
		"tenant_id": entry.TenantID,
		"user_id":   entry.UserID,
		"trace_id":  entry.TraceID,
		"request":   string(reqB),
		"decision":  string(decB),
	})
	return err
}

func (s *SQLAuditStore) GetAccessLog(ctx context.Context, filter authz.AuditFilter) ([]*authz.AuditEntry, error) {
	q := `SELECT id, ts, tenant_id, user_id, trace_id, request, decision FROM audit_entries WHERE 1=1`
	params := map[string]any{}
	if filter.TenantID != "" {
		q += " AND tenant_id = :tenant_id"
		params["tenant_id"] = filter.TenantID
	}
	if filter.UserID != "" {
		q += " AND user_id = :user_id"
		params["user_id"] = filter.UserID
	}
	if !filter.StartTime.IsZero() {
		q += " AND ts >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND ts <= :end"
		params["end"] = filter.EndTime
	}
	q += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*authz.AuditEntry, 0)
	for r.Next() {
		var id, tenant, user, reqJSON string
		var traceRaw, decRaw, tsRaw any
		if err := r.Scan(&id, &tsRaw, &tenant, &user, &traceRaw, &reqJSON, &decRaw); err != nil {
			return nil, err
		}
		entry := &authz.AuditEntry{ID: id, TenantID: tenant, UserID: user, TraceID: textOrEmpty(traceRaw)}
		if t := scanNullableTime(tsRaw); t != nil {
			entry.Timestamp = *t
		}
		if err := json.Unmarshal([]byte(reqJSON), &entry.Request); err != nil {
			return nil, err
		}
		if dec := textOrEmpty(decRaw); dec != "" {
			entry.Decision = &authz.Decision{}
			if err := json.Unmarshal([]byte(dec), entry.Decision); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	filtered := out
	if filter.PermissionCode != "" {
		filtered = filtered[:0]
		for _, e := range out {
			if e.Request.PermissionCode == filter.PermissionCode {
				filtered = append(filtered, e)
			}
		}
	}
	return filtered, r.Err()
}
