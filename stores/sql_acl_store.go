package stores

import (
	"context"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/identra/authz"
)

// SQLAclStore persists explicit resource grants in SQL (squealx). It
// implements authz.AclRepository.
type SQLAclStore struct {
	db *squealx.DB
}

func NewSQLAclStore(db *squealx.DB) *SQLAclStore {
	return &SQLAclStore{db: db}
}

func (s *SQLAclStore) Grant(ctx context.Context, e authz.AclEntry) error {
	q := `INSERT INTO acl_entries(id, tenant_id, subject_type, subject_id, resource_type, resource_id, permission, created_at)
		VALUES(:id, :tenant_id, :subject_type, :subject_id, :resource_type, :resource_id, :permission, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            e.ID,
		"tenant_id":     e.TenantID,
		"subject_type":  string(e.SubjectType),
		"subject_id":    e.SubjectID,
		"resource_type": e.ResourceType,
		"resource_id":   e.ResourceID,
		"permission":    e.Permission,
		"created_at":    time.Now().UTC(),
	})
	return err
}

func (s *SQLAclStore) Revoke(ctx context.Context, id string) error {
	q := `DELETE FROM acl_entries WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

// FindEntry returns the first grant matching the query, or nil when none
// does. An empty query ResourceID leaves the resource-id column unfiltered;
// an entry with an empty resource_id matches any instance of its type.
func (s *SQLAclStore) FindEntry(ctx context.Context, q authz.AclQuery) (*authz.AclEntry, error) {
	sq := `SELECT id, tenant_id, subject_type, subject_id, resource_type, resource_id, permission, created_at
		FROM acl_entries
		WHERE tenant_id = :tenant_id
		  AND subject_type = :subject_type
		  AND subject_id = :subject_id
		  AND resource_type = :resource_type
		  AND permission = :permission
		  AND (:resource_id = '' OR resource_id = '' OR resource_id = :resource_id)
		LIMIT 1`
	r, err := s.db.NamedQueryContext(ctx, sq, map[string]any{
		"tenant_id":     q.TenantID,
		"subject_type":  string(q.SubjectType),
		"subject_id":    q.SubjectID,
		"resource_type": q.ResourceType,
		"resource_id":   q.ResourceID,
		"permission":    q.Permission,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, r.Err()
	}
	var e authz.AclEntry
	var st string
	var resourceRaw, createdRaw any
	if err := r.Scan(&e.ID, &e.TenantID, &st, &e.SubjectID, &e.ResourceType, &resourceRaw, &e.Permission, &createdRaw); err != nil {
		return nil, err
	}
	e.SubjectType = authz.SubjectType(st)
	e.ResourceID = textOrEmpty(resourceRaw)
	if t := scanNullableTime(createdRaw); t != nil {
		e.CreatedAt = *t
	}
	return &e, nil
}
