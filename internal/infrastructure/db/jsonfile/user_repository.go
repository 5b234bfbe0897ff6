// Package jsonfile stores all users in a single JSON document that is read
// and rewritten in full on every operation.
//
// Concurrent updates to the same record are last-write-wins: the mutex only
// guards individual file reads and writes, not the whole load/mutate/save
// cycle of a request.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/anonqr/identity-service/internal/core/domain"
)

// document is the on-disk shape: {"users": {"<id>": {...}}}.
type document struct {
	Users map[string]*domain.User `json:"users"`
}

type UserRepository struct {
	path string
	mu   sync.Mutex
}

func NewUserRepository(path string) *UserRepository {
	return &UserRepository{path: path}
}

// Create inserts user unless its id is already present.
func (r *UserRepository) Create(_ context.Context, user *domain.User) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, exists := doc.Users[user.ID]; exists {
		return domain.ErrUserExists
	}
	doc.Users[user.ID] = user.Clone()
	return r.save(doc)
}

func (r *UserRepository) Get(_ context.Context, id string) (*domain.User, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	u, ok := doc.Users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (r *UserRepository) Put(_ context.Context, user *domain.User) error {
	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	doc.Users[user.ID] = user.Clone()
	return r.save(doc)
}

// All returns users ordered by creation time, then id.
func (r *UserRepository) All(_ context.Context) ([]*domain.User, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(doc.Users))
	for _, u := range doc.Users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Ping reports whether the directory holding the document is usable.
func (r *UserRepository) Ping(_ context.Context) error {
	dir := filepath.Dir(r.path)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("store dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store dir %s is not a directory", dir)
	}
	return nil
}

// load reads the snapshot. A missing file is an empty store.
func (r *UserRepository) load() (*document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := &document{}
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc.Users = make(map[string]*domain.User)
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", r.path, err)
	}
	if doc.Users == nil {
		doc.Users = make(map[string]*domain.User)
	}
	return doc, nil
}

// save replaces the snapshot through a temp file and rename.
func (r *UserRepository) save(doc *document) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".db-*.json")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
