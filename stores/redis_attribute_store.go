package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/identra/authz"
)

// RedisAttributeStore keeps per-user attribute values in a Redis hash
// (key: attr:{userID}, field: attribute name, value: JSON-encoded Value).
// It implements authz.AttributeRepository and suits deployments where
// attributes change often and are shared between engine instances.
type RedisAttributeStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "attr:%s"
}

func NewRedisAttributeStore(client *redis.Client) *RedisAttributeStore {
	return &RedisAttributeStore{client: client, keyFmt: "attr:%s"}
}

func (r *RedisAttributeStore) key(userID string) string {
	return fmt.Sprintf(r.keyFmt, userID)
}

func (r *RedisAttributeStore) SetValue(ctx context.Context, userID, name string, v authz.Value) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(userID), name, string(b)).Err()
}

func (r *RedisAttributeStore) DeleteValue(ctx context.Context, userID, name string) error {
	return r.client.HDel(ctx, r.key(userID), name).Err()
}

func (r *RedisAttributeStore) ListAttributeValues(ctx context.Context, userID string) (map[string]authz.Value, error) {
	res, err := r.client.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]authz.Value, len(res))
	for name, raw := range res {
		var v authz.Value
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("attribute %s for %s: %w", name, userID, err)
		}
		out[name] = v
	}
	return out, nil
}
