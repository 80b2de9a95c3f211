package postcache

import (
	"context"
	"sync"
)

// MemoryStore is the process-local Store.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]PendingPost
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]PendingPost)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (PendingPost, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[userID]
	return p, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, post PendingPost) error {
	if err := validate(post); err != nil {
		return err
	}
	s.mu.Lock()
	s.posts[post.UserID] = post
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.posts, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, userID string) error {
	return s.Delete(ctx, userID)
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts), nil
}

func (s *MemoryStore) Close() error { return nil }
