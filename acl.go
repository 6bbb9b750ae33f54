package authz

import "context"

// AclEvaluator checks for explicit allow entries binding a subject to a
// resource type or instance with a permission string. ACL entries only ever
// grant; the absence of an entry is a normal negative outcome.
type AclEvaluator struct {
	acls AclRepository
}

func NewAclEvaluator(acls AclRepository) *AclEvaluator {
	return &AclEvaluator{acls: acls}
}

// HasEntry reports whether a matching entry exists.
func (e *AclEvaluator) HasEntry(ctx context.Context, q AclQuery) (bool, error) {
	entry, err := e.FindEntry(ctx, q)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// FindEntry returns the matching entry, or nil when there is none. When
// q.ResourceID is empty the lookup does not filter on resource id at all, so
// it can match entries scoped to one instance; this preserves the historical
// query behavior for unscoped checks.
func (e *AclEvaluator) FindEntry(ctx context.Context, q AclQuery) (*AclEntry, error) {
	entry, err := e.acls.FindEntry(ctx, q)
	if err != nil {
		return nil, readErr(ctx, "find acl entry", err)
	}
	return entry, nil
}
