package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"example.com/tinyfeed/internal/models"
)

// MemoryStore keeps everything in process. It backs STORE_DRIVER=memory and
// the tests of the packages built on Store.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]models.User
	posts []models.Post

	// MembershipErr, when set, is returned by PostsByAuthors to simulate a
	// backend rejecting multi-value filters at runtime.
	MembershipErr error
}

// NewMemory initializes an empty in-memory store
func NewMemory() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]models.User),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) GetUser(_ context.Context, name string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[name]
	if !ok {
		return nil, ErrNotFound
	}
	u.Follows = append([]string{}, u.Follows...)
	return &u, nil
}

func (m *MemoryStore) PutUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	u.Follows = append([]string{}, user.Follows...)
	m.users[u.Name] = u
	return nil
}

func (m *MemoryStore) PutPost(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts = append(m.posts, *post)
	return nil
}

func (m *MemoryStore) PostsByAuthor(_ context.Context, author string, limit int) ([]models.Post, error) {
	return m.query(func(p models.Post) bool { return p.Author == author }, limit), nil
}

func (m *MemoryStore) PostsByAuthors(_ context.Context, authors []string, limit int) ([]models.Post, error) {
	if m.MembershipErr != nil {
		return nil, m.MembershipErr
	}
	set := make(map[string]struct{}, len(authors))
	for _, a := range authors {
		set[a] = struct{}{}
	}
	return m.query(func(p models.Post) bool {
		_, ok := set[p.Author]
		return ok
	}, limit), nil
}

func (m *MemoryStore) query(match func(models.Post) bool, limit int) []models.Post {
	m.mu.RLock()
	var res []models.Post
	for _, p := range m.posts {
		if match(p) {
			res = append(res, p)
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(res, func(i, j int) bool { return res[i].Created.After(res[j].Created) })
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// UserCount returns the number of stored users.
func (m *MemoryStore) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// PostCount returns the number of stored posts.
func (m *MemoryStore) PostCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.posts)
}

// ---------------------------------------------
// FailingStore always returns errors for negative tests
type FailingStore struct{}

var errFailingStore = errors.New("store unreachable")

func (FailingStore) Close() error { return nil }

func (FailingStore) GetUser(context.Context, string) (*models.User, error) {
	return nil, errFailingStore
}

func (FailingStore) PutUser(context.Context, *models.User) error {
	return errFailingStore
}

func (FailingStore) PutPost(context.Context, *models.Post) error {
	return errFailingStore
}

func (FailingStore) PostsByAuthor(context.Context, string, int) ([]models.Post, error) {
	return nil, errFailingStore
}

func (FailingStore) PostsByAuthors(context.Context, []string, int) ([]models.Post, error) {
	return nil, errFailingStore
}
