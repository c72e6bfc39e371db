// Package file implements the history store as JSON files on disk. Sessions,
// messages, and steps each get their own file, so concurrent writers never
// rewrite each other's records.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/FabG/chainlit-ui/internal/store"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Store is a file-backed store.History. The layout under the base directory:
//
//	sessions/<sessionID>.json
//	messages/<sessionID>/<messageID>.json
//	steps/<sessionID>/<stepID>.json
type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	return &Store{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// SaveSession writes the session record.
func (s *Store) SaveSession(ctx context.Context, info *types.SessionInfo) error {
	if err := validID(info.ID); err != nil {
		return err
	}
	return s.writeJSON(s.sessionPath(info.ID), info)
}

// Session reads one session record.
func (s *Store) Session(ctx context.Context, sessionID string) (*types.SessionInfo, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	var info types.SessionInfo
	if err := s.readJSON(s.sessionPath(sessionID), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Sessions reads all session records, oldest first.
func (s *Store) Sessions(ctx context.Context) ([]*types.SessionInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "sessions"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var infos []*types.SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var info types.SessionInfo
		if err := s.readJSON(filepath.Join(s.dir, "sessions", entry.Name()), &info); err != nil {
			continue
		}
		infos = append(infos, &info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt != infos[j].CreatedAt {
			return infos[i].CreatedAt < infos[j].CreatedAt
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// SaveMessage writes one message record.
func (s *Store) SaveMessage(ctx context.Context, msg *types.Message) error {
	if err := validID(msg.SessionID); err != nil {
		return err
	}
	if err := validID(msg.ID); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join(s.dir, "messages", msg.SessionID, msg.ID+".json"), msg)
}

// Messages reads the session transcript in creation order.
func (s *Store) Messages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	var msgs []*types.Message
	err := s.scanDir(filepath.Join(s.dir, "messages", sessionID), func(data json.RawMessage) error {
		var m types.Message
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		msgs = append(msgs, &m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

// SaveStep writes one step record.
func (s *Store) SaveStep(ctx context.Context, step *types.Step) error {
	if err := validID(step.SessionID); err != nil {
		return err
	}
	if err := validID(step.ID); err != nil {
		return err
	}
	return s.writeJSON(filepath.Join(s.dir, "steps", step.SessionID, step.ID+".json"), step)
}

// Steps reads the session's steps in opening order.
func (s *Store) Steps(ctx context.Context, sessionID string) ([]*types.Step, error) {
	if err := validID(sessionID); err != nil {
		return nil, err
	}
	var steps []*types.Step
	err := s.scanDir(filepath.Join(s.dir, "steps", sessionID), func(data json.RawMessage) error {
		var st types.Step
		if err := json.Unmarshal(data, &st); err != nil {
			return err
		}
		steps = append(steps, &st)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].StartedAt != steps[j].StartedAt {
			return steps[i].StartedAt < steps[j].StartedAt
		}
		return steps[i].ID < steps[j].ID
	})
	return steps, nil
}

// DeleteSession removes the session record with its messages and steps.
// Deleting an unknown session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if err := validID(sessionID); err != nil {
		return err
	}
	path := s.sessionPath(sessionID)
	unlock := s.lock(path)
	err := os.Remove(path)
	unlock()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session file: %w", err)
	}

	for _, dir := range []string{
		filepath.Join(s.dir, "messages", sessionID),
		filepath.Join(s.dir, "steps", sessionID),
	} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("delete %s: %w", dir, err)
		}
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.dir, "sessions", id+".json")
}

// writeJSON writes v atomically: temp file first, then rename.
func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	unlock := s.lock(path)
	defer unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	return nil
}

// scanDir feeds every JSON file under dir to fn. A missing directory is an
// empty result, not an error.
func (s *Store) scanDir(dir string, fn func(data json.RawMessage) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if err := fn(data); err != nil {
			return err
		}
	}
	return nil
}

// lock serializes writers of one path within this process.
func (s *Store) lock(path string) func() {
	s.mu.Lock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// validID rejects IDs that would escape the store directory.
func validID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
