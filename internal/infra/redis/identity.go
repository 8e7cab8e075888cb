package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdentityStore maps client-held tokens to team ids in Redis. A zero TTL
// makes entries permanent, which is how the disqualification marker is
// expected to behave; the tab-scoped pointer uses a session-scale TTL.
type IdentityStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewEphemeralIdentityStore keeps the in-progress session pointer alive for
// ttl, mirroring tab-scoped storage.
func NewEphemeralIdentityStore(client *redis.Client, ttl time.Duration) *IdentityStore {
	return &IdentityStore{client: client, prefix: "quiz:tab:", ttl: ttl}
}

// NewDurableIdentityStore remembers disqualified teams with no expiry.
func NewDurableIdentityStore(client *redis.Client) *IdentityStore {
	return &IdentityStore{client: client, prefix: "quiz:disqualified:"}
}

func (s *IdentityStore) Put(ctx context.Context, token, teamID string) error {
	return s.client.Set(ctx, s.prefix+token, teamID, s.ttl).Err()
}

func (s *IdentityStore) Get(ctx context.Context, token string) (string, error) {
	teamID, err := s.client.Get(ctx, s.prefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return teamID, nil
}

func (s *IdentityStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, s.prefix+token).Err()
}
