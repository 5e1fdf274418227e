// Package redis serves the token store from Redis. Each record lives under a
// key derived from the token's fingerprint and expires with the token; set
// indexes per session and per principal are pruned lazily.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/tokenguard/internal/auth/domain"
	"github.com/aussiebroadwan/tokenguard/internal/auth/store"
	"github.com/aussiebroadwan/tokenguard/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "auth:"

// TokenStore needs a single-node client: index reads use MGET and writes use
// MULTI across keys that do not share a hash slot.
type TokenStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

var _ store.Tokens = (*TokenStore)(nil)

// Option configures a TokenStore.
type Option func(*TokenStore)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(p string) Option {
	return func(s *TokenStore) { s.prefix = p }
}

// WithClock overrides the time source used to compute key TTLs.
func WithClock(now func() time.Time) Option {
	return func(s *TokenStore) { s.now = now }
}

// NewTokenStore checks connectivity and returns a store backed by client.
func NewTokenStore(ctx context.Context, client *redis.Client, opts ...Option) (*TokenStore, error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	s := &TokenStore{client: client, prefix: DefaultPrefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type recordJSON struct {
	Token       string           `json:"token"`
	PrincipalID string           `json:"principal_id"`
	Guard       string           `json:"guard"`
	Type        domain.TokenType `json:"type"`
	SessionID   string           `json:"session_id,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

func (s *TokenStore) tokenKey(token string) string {
	return s.prefix + "tok:" + cryptox.FingerprintToken(token)
}

func (s *TokenStore) sessionKey(sid string) string { return s.prefix + "sess:" + sid }

func (s *TokenStore) principalKey(pid string) string { return s.prefix + "principal:" + pid }

func (s *TokenStore) Store(ctx context.Context, rec domain.TokenRecord) (domain.TokenRecord, error) {
	if rec.Token == "" {
		return domain.TokenRecord{}, errors.New("store token: empty token")
	}
	if !rec.Type.Valid() {
		return domain.TokenRecord{}, fmt.Errorf("store token: invalid type %q", rec.Type)
	}

	now := s.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now.UTC()
	}

	payload, err := json.Marshal(recordJSON{
		Token:       rec.Token,
		PrincipalID: rec.PrincipalID,
		Guard:       rec.Guard,
		Type:        rec.Type,
		SessionID:   rec.SessionID,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
		Metadata:    rec.Metadata,
	})
	if err != nil {
		return domain.TokenRecord{}, fmt.Errorf("encode token record: %w", err)
	}

	key := s.tokenKey(rec.Token)

	// A record that is already past its expiry is never visible.
	if rec.ExpiresAt != nil && !now.Before(*rec.ExpiresAt) {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return domain.TokenRecord{}, err
		}
		return rec, nil
	}

	var ttl time.Duration
	if rec.ExpiresAt != nil {
		ttl = rec.ExpiresAt.Sub(now)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, payload, ttl)
	pipe.SAdd(ctx, s.principalKey(rec.PrincipalID), key)
	if rec.SessionID != "" {
		pipe.SAdd(ctx, s.sessionKey(rec.SessionID), key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.TokenRecord{}, err
	}
	return rec, nil
}

func (s *TokenStore) Find(ctx context.Context, token string) (domain.TokenRecord, error) {
	raw, err := s.client.Get(ctx, s.tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.TokenRecord{}, store.ErrNotFound
	}
	if err != nil {
		return domain.TokenRecord{}, err
	}
	return decodeRecord(raw)
}

func (s *TokenStore) FindBySession(ctx context.Context, sessionID string, filter store.TokenFilter) ([]domain.TokenRecord, error) {
	if sessionID == "" {
		return nil, nil
	}
	filter.SessionID = sessionID
	return s.membersMatching(ctx, s.sessionKey(sessionID), filter)
}

func (s *TokenStore) FindByPrincipal(ctx context.Context, principalID, guard string) ([]domain.TokenRecord, error) {
	return s.membersMatching(ctx, s.principalKey(principalID), store.TokenFilter{Guard: guard})
}

func (s *TokenStore) Delete(ctx context.Context, token string) (int64, error) {
	rec, err := s.Find(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return s.deleteRecords(ctx, []domain.TokenRecord{rec})
}

func (s *TokenStore) DeleteByPrincipal(ctx context.Context, principalID string, filter store.TokenFilter) (int64, error) {
	recs, err := s.membersMatching(ctx, s.principalKey(principalID), filter)
	if err != nil {
		return 0, err
	}
	return s.deleteRecords(ctx, recs)
}

func (s *TokenStore) IsBlacklisted(ctx context.Context, token string) (bool, error) {
	rec, err := s.Find(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Type == domain.TokenTypeBlacklist, nil
}

// CleanupExpired prunes index members whose record has already expired out
// of Redis and returns how many were removed. The records themselves are
// evicted by their TTL.
func (s *TokenStore) CleanupExpired(ctx context.Context) (int64, error) {
	var pruned int64
	for _, pattern := range []string{s.prefix + "sess:*", s.prefix + "principal:*"} {
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			n, err := s.pruneIndex(ctx, iter.Val())
			if err != nil {
				return pruned, err
			}
			pruned += n
		}
		if err := iter.Err(); err != nil {
			return pruned, fmt.Errorf("redis scan error: %w", err)
		}
	}
	return pruned, nil
}

func (s *TokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// membersMatching loads the records referenced by an index set, dropping
// members whose record no longer exists.
func (s *TokenStore) membersMatching(ctx context.Context, indexKey string, filter store.TokenFilter) ([]domain.TokenRecord, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var out []domain.TokenRecord
	var dangling []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			dangling = append(dangling, keys[i])
			continue
		}
		rec, err := decodeRecord([]byte(str))
		if err != nil {
			return nil, err
		}
		if store.MatchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}

	if len(dangling) > 0 {
		if err := s.client.SRem(ctx, indexKey, dangling...).Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *TokenStore) deleteRecords(ctx context.Context, recs []domain.TokenRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	dels := make([]*redis.IntCmd, 0, len(recs))
	for _, rec := range recs {
		key := s.tokenKey(rec.Token)
		dels = append(dels, pipe.Del(ctx, key))
		pipe.SRem(ctx, s.principalKey(rec.PrincipalID), key)
		if rec.SessionID != "" {
			pipe.SRem(ctx, s.sessionKey(rec.SessionID), key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	var n int64
	for _, d := range dels {
		n += d.Val()
	}
	return n, nil
}

func (s *TokenStore) pruneIndex(ctx context.Context, indexKey string) (int64, error) {
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return 0, err
	}

	var dangling []any
	for _, k := range keys {
		n, err := s.client.Exists(ctx, k).Result()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			dangling = append(dangling, k)
		}
	}
	if len(dangling) == 0 {
		return 0, nil
	}
	return s.client.SRem(ctx, indexKey, dangling...).Result()
}

func decodeRecord(raw []byte) (domain.TokenRecord, error) {
	var r recordJSON
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.TokenRecord{}, fmt.Errorf("decode token record: %w", err)
	}
	return domain.TokenRecord{
		Token:       r.Token,
		PrincipalID: r.PrincipalID,
		Guard:       r.Guard,
		Type:        r.Type,
		SessionID:   r.SessionID,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Metadata:    r.Metadata,
	}, nil
}
