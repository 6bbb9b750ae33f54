package authz

import "context"

// AttributeResolver loads the attribute values currently assigned to a
// principal. It is a thin read-through over the repository; it keeps no state.
type AttributeResolver struct {
	repo AttributeRepository
}

func NewAttributeResolver(repo AttributeRepository) *AttributeResolver {
	return &AttributeResolver{repo: repo}
}

// Resolve returns the principal's attribute values keyed by attribute name.
// A principal with no values resolves to an empty, non-nil map.
func (r *AttributeResolver) Resolve(ctx context.Context, userID string) (map[string]Value, error) {
	attrs, err := r.repo.ListAttributeValues(ctx, userID)
	if err != nil {
		return nil, readErr(ctx, "resolve attributes", err)
	}
	if attrs == nil {
		attrs = map[string]Value{}
	}
	return attrs, nil
}

// MergeAttributes lays caller-supplied overrides over resolved values.
// The override wins on key collision. Neither input map is mutated.
func MergeAttributes(resolved, overrides map[string]Value) map[string]Value {
	merged := make(map[string]Value, len(resolved)+len(overrides))
	for k, v := range resolved {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
