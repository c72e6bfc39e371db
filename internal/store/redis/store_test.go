package redis_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"

	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/internal/store/redis"
	"github.com/FabG/chainlit-ui/pkg/types"
)

func newTestStore(t *testing.T, opts ...redis.Option) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	s := redis.NewFromClient(client, opts...)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func TestStore_SessionRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	info := &types.SessionInfo{ID: "sess1", State: types.SessionActive, CreatedAt: 1000}
	if err := s.SaveSession(ctx, info); err != nil {
		t.Fatalf("SaveSession failed: %v", err)
	}

	got, err := s.Session(ctx, "sess1")
	if err != nil {
		t.Fatalf("Session failed: %v", err)
	}
	if got.ID != "sess1" || got.State != types.SessionActive {
		t.Errorf("got %+v, want the saved record", got)
	}

	if _, err := s.Session(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_SessionsOrderedByCreation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, info := range []*types.SessionInfo{
		{ID: "late", CreatedAt: 300},
		{ID: "early", CreatedAt: 100},
		{ID: "mid", CreatedAt: 200},
	} {
		if err := s.SaveSession(ctx, info); err != nil {
			t.Fatal(err)
		}
	}

	infos, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("got %d sessions, want 3", len(infos))
	}
	for i, want := range []string{"early", "mid", "late"} {
		if infos[i].ID != want {
			t.Errorf("session %d = %s, want %s", i, infos[i].ID, want)
		}
	}
}

func TestStore_MessagesOrderedAndIdempotent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, m := range []*types.Message{
		{ID: "b", SessionID: "sess1", Content: "second", CreatedAt: 200},
		{ID: "a", SessionID: "sess1", Content: "first", CreatedAt: 100},
	} {
		if err := s.SaveMessage(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	// A retried save overwrites, it must not duplicate.
	if err := s.SaveMessage(ctx, &types.Message{ID: "a", SessionID: "sess1", Content: "first again", CreatedAt: 100}); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.Messages(ctx, "sess1")
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "first again" || msgs[1].Content != "second" {
		t.Errorf("order = %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestStore_StepsOrderedByStart(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, st := range []*types.Step{
		{ID: "s2", SessionID: "sess1", Name: "child", StartedAt: 200, Status: types.StepSucceeded},
		{ID: "s1", SessionID: "sess1", Name: "parent", StartedAt: 100, Status: types.StepSucceeded},
	} {
		if err := s.SaveStep(ctx, st); err != nil {
			t.Fatal(err)
		}
	}

	steps, err := s.Steps(ctx, "sess1")
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	if len(steps) != 2 || steps[0].Name != "parent" || steps[1].Name != "child" {
		t.Errorf("unexpected steps: %+v", steps)
	}
}

func TestStore_DeleteSessionRemovesEverything(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSession(ctx, &types.SessionInfo{ID: "sess1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMessage(ctx, &types.Message{ID: "m1", SessionID: "sess1"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveStep(ctx, &types.Step{ID: "s1", SessionID: "sess1"}); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteSession(ctx, "sess1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	if _, err := s.Session(ctx, "sess1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("session survived delete: %v", err)
	}
	msgs, _ := s.Messages(ctx, "sess1")
	if len(msgs) != 0 {
		t.Errorf("messages survived delete: %d", len(msgs))
	}
	infos, _ := s.Sessions(ctx)
	if len(infos) != 0 {
		t.Errorf("index entry survived delete: %d", len(infos))
	}

	if err := s.DeleteSession(ctx, "sess1"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestStore_TTLExpiresSessions(t *testing.T) {
	s, mr := newTestStore(t, redis.WithTTL(time.Minute))
	ctx := context.Background()

	if err := s.SaveSession(ctx, &types.SessionInfo{ID: "sess1", CreatedAt: 100}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveMessage(ctx, &types.Message{ID: "m1", SessionID: "sess1"}); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := s.Session(ctx, "sess1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("session survived TTL: %v", err)
	}
	msgs, err := s.Messages(ctx, "sess1")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Errorf("messages survived TTL: %d", len(msgs))
	}

	// The expired id is pruned from the index on the next listing.
	infos, err := s.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 0 {
		t.Errorf("expired session still listed: %d", len(infos))
	}
}

func TestStore_CustomPrefix(t *testing.T) {
	s, mr := newTestStore(t, redis.WithPrefix("custom:"))
	ctx := context.Background()

	if err := s.SaveSession(ctx, &types.SessionInfo{ID: "sess1"}); err != nil {
		t.Fatal(err)
	}
	if !mr.Exists("custom:session:sess1") {
		t.Error("expected key under the custom prefix")
	}
}
