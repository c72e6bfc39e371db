// Package redis provides a Redis backed store.History for deployments where
// session history must survive process restarts or be shared across replicas.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Store persists history in Redis. Sessions live under string keys, an index
// sorted set orders them by creation time, and messages and steps live in
// per-session hashes keyed by record id so retried saves overwrite instead of
// duplicating.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration applied to every session's keys. Zero means no
// expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Defaults to "chainlit:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store with its own client.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Store on an existing client. The Store takes
// ownership and closes the client on Close.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "chainlit:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *Store) indexKey() string {
	return s.prefix + "sessions"
}

func (s *Store) messagesKey(sessionID string) string {
	return s.prefix + "messages:" + sessionID
}

func (s *Store) stepsKey(sessionID string) string {
	return s.prefix + "steps:" + sessionID
}

// SaveSession writes the session record and registers it in the index.
func (s *Store) SaveSession(ctx context.Context, info *types.SessionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.sessionKey(info.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(info.CreatedAt),
		Member: info.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Session reads one session record.
func (s *Store) Session(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	val, err := s.client.Get(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var info types.SessionInfo
	if err := json.Unmarshal([]byte(val), &info); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &info, nil
}

// Sessions lists all session records in creation order. Index entries whose
// session key has expired are pruned lazily.
func (s *Store) Sessions(ctx context.Context) ([]*types.SessionInfo, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	infos := make([]*types.SessionInfo, 0, len(ids))
	var stale []any
	for _, id := range ids {
		info, err := s.Session(ctx, id)
		if err == store.ErrNotFound {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}

	if len(stale) > 0 {
		// Best effort, the next listing retries.
		s.client.ZRem(ctx, s.indexKey(), stale...)
	}
	return infos, nil
}

// SaveMessage writes one message into the session's hash.
func (s *Store) SaveMessage(ctx context.Context, msg *types.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return s.hashSet(ctx, s.messagesKey(msg.SessionID), msg.ID, data)
}

// Messages reads the session's transcript in creation order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	vals, err := s.client.HVals(ctx, s.messagesKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]*types.Message, 0, len(vals))
	for _, val := range vals {
		var msg types.Message
		if err := json.Unmarshal([]byte(val), &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, &msg)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// SaveStep writes one step record into the session's hash. Saving the same
// step id again overwrites the previous record.
func (s *Store) SaveStep(ctx context.Context, step *types.Step) error {
	data, err := json.Marshal(step)
	if err != nil {
		return fmt.Errorf("encode step: %w", err)
	}
	return s.hashSet(ctx, s.stepsKey(step.SessionID), step.ID, data)
}

// Steps reads the session's step records in start order.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]*types.Step, error) {
	vals, err := s.client.HVals(ctx, s.stepsKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	steps := make([]*types.Step, 0, len(vals))
	for _, val := range vals {
		var step types.Step
		if err := json.Unmarshal([]byte(val), &step); err != nil {
			return nil, fmt.Errorf("decode step: %w", err)
		}
		steps = append(steps, &step)
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].StartedAt != steps[j].StartedAt {
			return steps[i].StartedAt < steps[j].StartedAt
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

// DeleteSession removes the session record, its transcript, its steps, and
// its index entry. Deleting an unknown session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	pipe.Del(ctx, s.messagesKey(sessionID))
	pipe.Del(ctx, s.stepsKey(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) hashSet(ctx context.Context, key, field string, data []byte) error {
	if s.ttl == 0 {
		if err := s.client.HSet(ctx, key, field, data).Err(); err != nil {
			return fmt.Errorf("save to redis: %w", err)
		}
		return nil
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, field, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save to redis: %w", err)
	}
	return nil
}
