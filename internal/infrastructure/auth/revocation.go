package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations ends tokens before they expire. Logout revokes one token by
// its jti; losing the admin or active flag revokes every token the agent
// holds by recording a cut-off.
type Revocations interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	// RevokeAgent rejects every token of agentID issued up to now. ttl
	// should be at least the token lifetime.
	RevokeAgent(ctx context.Context, agentID int64, ttl time.Duration) error
	// Revoked checks both the jti and the agent cut-off. iat has second
	// precision, so a token issued in the cut-off second is revoked too.
	Revoked(ctx context.Context, claims *Claims) (bool, error)
}

// RedisRevocations shares revocations between server instances.
type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func tokenKey(jti string) string {
	return "ledger:revoked:token:" + jti
}

func agentKey(agentID int64) string {
	return "ledger:revoked:agent:" + strconv.FormatInt(agentID, 10)
}

func (r *RedisRevocations) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, tokenKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (r *RedisRevocations) RevokeAgent(ctx context.Context, agentID int64, ttl time.Duration) error {
	if err := r.client.Set(ctx, agentKey(agentID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke agent %d tokens: %w", agentID, err)
	}
	return nil
}

// Revoked reads both keys in one round trip.
func (r *RedisRevocations) Revoked(ctx context.Context, claims *Claims) (bool, error) {
	var (
		token  *redis.IntCmd
		cutoff *redis.StringCmd
	)
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		token = p.Exists(ctx, tokenKey(claims.ID))
		cutoff = p.Get(ctx, agentKey(claims.AgentID))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	if token.Val() > 0 {
		return true, nil
	}
	at, err := cutoff.Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check agent cut-off: %w", err)
	}
	return claims.IssuedAtTime().Unix() <= at, nil
}

var _ Revocations = (*RedisRevocations)(nil)

type agentCutoff struct {
	at        int64 // unix seconds
	expiresAt time.Time
}

// MemoryRevocations is the single-process store used without Redis.
// Entries past their ttl are dropped when they are next read.
type MemoryRevocations struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	agents map[int64]agentCutoff
	now    func() time.Time
}

func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{
		tokens: make(map[string]time.Time),
		agents: make(map[int64]agentCutoff),
		now:    time.Now,
	}
}

func (m *MemoryRevocations) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[jti] = m.now().Add(ttl)
	return nil
}

func (m *MemoryRevocations) RevokeAgent(_ context.Context, agentID int64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.agents[agentID] = agentCutoff{at: now.Unix(), expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryRevocations) Revoked(_ context.Context, claims *Claims) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()

	if expiresAt, ok := m.tokens[claims.ID]; ok {
		if now.Before(expiresAt) {
			return true, nil
		}
		delete(m.tokens, claims.ID)
	}
	cut, ok := m.agents[claims.AgentID]
	if !ok {
		return false, nil
	}
	if !now.Before(cut.expiresAt) {
		delete(m.agents, claims.AgentID)
		return false, nil
	}
	return claims.IssuedAtTime().Unix() <= cut.at, nil
}

var _ Revocations = (*MemoryRevocations)(nil)
