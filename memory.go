package authz

import (
	"context"
	"sync"
	"time"
)

// In-memory repository implementations. They back the config fixtures, the
// CLI, and most of the test suite; production deployments use the SQL and
// Redis implementations under stores/.

// MemoryRoleStore keeps roles, assignments and the permission catalog in
// maps guarded by one RWMutex.
type MemoryRoleStore struct {
	mu          sync.RWMutex
	roles       map[string]*Role
	assignments []RoleAssignment
	permissions map[string]*Permission // by permission id
	grants      map[string][]string    // role id -> permission ids
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{
		roles:       make(map[string]*Role),
		permissions: make(map[string]*Permission),
		grants:      make(map[string][]string),
	}
}

func (s *MemoryRoleStore) AddRole(r Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	s.roles[r.ID] = &r
}

func (s *MemoryRoleStore) AddPermission(p Permission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[p.ID] = &p
}

// GrantPermission links a permission to a role.
func (s *MemoryRoleStore) GrantPermission(roleID, permissionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[roleID] = append(s.grants[roleID], permissionID)
}

// Assign records a role assignment; a nil expiresAt never lapses.
func (s *MemoryRoleStore) Assign(userID, tenantID, roleID string, expiresAt *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, RoleAssignment{
		UserID:    userID,
		TenantID:  tenantID,
		RoleID:    roleID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	})
}

func (s *MemoryRoleStore) ListActiveRoleAssignments(ctx context.Context, userID, tenantID string) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoleAssignment, 0)
	for _, a := range s.assignments {
		if a.UserID != userID || a.TenantID != tenantID {
			continue
		}
		role, ok := s.roles[a.RoleID]
		if !ok || !role.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *MemoryRoleStore) ListActivePermissions(ctx context.Context, roleID string) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Permission, 0)
	for _, pid := range s.grants[roleID] {
		p, ok := s.permissions[pid]
		if !ok || !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// MemoryPolicyStore keeps policies in insertion order so equal priorities
// tie-break deterministically.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies []Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{}
}

func (s *MemoryPolicyStore) AddPolicy(p Policy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.policies = append(s.policies, p)
}

func (s *MemoryPolicyStore) ListActivePolicies(ctx context.Context, tenantID string) ([]Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Policy, 0)
	for _, p := range s.policies {
		if p.TenantID == tenantID && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryAttributeStore maps userID -> attribute name -> value.
type MemoryAttributeStore struct {
	mu     sync.RWMutex
	values map[string]map[string]Value
}

func NewMemoryAttributeStore() *MemoryAttributeStore {
	return &MemoryAttributeStore{values: make(map[string]map[string]Value)}
}

func (s *MemoryAttributeStore) SetValue(userID, name string, v Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.values[userID]
	if !ok {
		m = make(map[string]Value)
		s.values[userID] = m
	}
	m[name] = v
}

func (s *MemoryAttributeStore) ListAttributeValues(ctx context.Context, userID string) (map[string]Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Value, len(s.values[userID]))
	for k, v := range s.values[userID] {
		out[k] = v
	}
	return out, nil
}

// MemoryAclStore holds entries in a slice; FindEntry is a linear scan, which
// is plenty for fixtures and tests.
type MemoryAclStore struct {
	mu      sync.RWMutex
	entries []AclEntry
}

func NewMemoryAclStore() *MemoryAclStore {
	return &MemoryAclStore{}
}

func (s *MemoryAclStore) Grant(entry AclEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.entries = append(s.entries, entry)
}

func (s *MemoryAclStore) Revoke(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

func (s *MemoryAclStore) FindEntry(ctx context.Context, q AclQuery) (*AclEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.entries {
		e := &s.entries[i]
		if e.TenantID != q.TenantID ||
			e.SubjectType != q.SubjectType ||
			e.SubjectID != q.SubjectID ||
			e.ResourceType != q.ResourceType ||
			e.Permission != q.Permission {
			continue
		}
		// an empty query resource id matches entries regardless of their
		// own resource id
		if q.ResourceID != "" && e.ResourceID != "" && e.ResourceID != q.ResourceID {
			continue
		}
		dup := *e
		return &dup, nil
	}
	return nil, nil
}

// MemoryAuditStore appends entries to a slice.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AuditEntry, 0)
	for _, e := range s.entries {
		if filter.TenantID != "" && e.TenantID != filter.TenantID {
			continue
		}
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.PermissionCode != "" && e.Request.PermissionCode != filter.PermissionCode {
			continue
		}
		if !filter.StartTime.IsZero() && e.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && e.Timestamp.After(filter.EndTime) {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryBackend bundles one of every in-memory store, ready to hand to
// NewEngine.
type MemoryBackend struct {
	Roles      *MemoryRoleStore
	Policies   *MemoryPolicyStore
	Attributes *MemoryAttributeStore
	Acls       *MemoryAclStore
	Audit      *MemoryAuditStore
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		Roles:      NewMemoryRoleStore(),
		Policies:   NewMemoryPolicyStore(),
		Attributes: NewMemoryAttributeStore(),
		Acls:       NewMemoryAclStore(),
		Audit:      NewMemoryAuditStore(),
	}
}

// Engine builds an engine over this backend with auditing enabled.
func (b *MemoryBackend) Engine(opts ...Option) *Engine {
	opts = append([]Option{WithAuditStore(b.Audit)}, opts...)
	return NewEngine(b.Roles, b.Policies, b.Attributes, b.Acls, opts...)
}
