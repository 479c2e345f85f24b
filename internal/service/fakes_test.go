package service

import (
	"context"
	"errors"
	"io"
	"markwiki/internal/cache"
	"markwiki/internal/config"
	"markwiki/internal/data"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

var errDisk = errors.New("disk I/O error")

// fakeClock is a settable time source shared by the service and the cache.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// newTestCache creates a new in-memory cache for testing.
func newTestCache(t *testing.T, clock *fakeClock) *cache.Cache {
	t.Helper()
	c, err := cache.New(config.CacheConfig{FilePath: "file::memory:"}, cache.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to create test cache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// mockPageRepository is an in-memory PageRepository with error injection.
type mockPageRepository struct {
	mu     sync.Mutex
	nextID int64
	pages  map[int64]data.Page

	listCalls int
	errOnGet  error
	errOnList error
	errOnSave error
	errOnDel  error
}

var _ PageRepository = (*mockPageRepository)(nil)

func newMockPageRepository() *mockPageRepository {
	return &mockPageRepository{pages: make(map[int64]data.Page)}
}

func clonePage(p data.Page) data.Page {
	p.Attachments = append([]data.Attachment{}, p.Attachments...)
	return p
}

func (m *mockPageRepository) ListPages(ctx context.Context) ([]data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.errOnList != nil {
		return nil, m.errOnList
	}
	pages := make([]data.Page, 0, len(m.pages))
	for _, p := range m.pages {
		pages = append(pages, clonePage(p))
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages, nil
}

func (m *mockPageRepository) GetPageByName(ctx context.Context, name string) (*data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnGet != nil {
		return nil, m.errOnGet
	}
	for _, p := range m.pages {
		if strings.EqualFold(p.Name, name) {
			c := clonePage(p)
			return &c, nil
		}
	}
	return nil, data.ErrNotFound
}

func (m *mockPageRepository) GetPageByID(ctx context.Context, id int64) (*data.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnGet != nil {
		return nil, m.errOnGet
	}
	p, ok := m.pages[id]
	if !ok {
		return nil, data.ErrNotFound
	}
	c := clonePage(p)
	return &c, nil
}

func (m *mockPageRepository) InsertPage(ctx context.Context, page *data.Page) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnSave != nil {
		return 0, m.errOnSave
	}
	for _, p := range m.pages {
		if strings.EqualFold(p.Name, page.Name) {
			return 0, data.ErrDuplicate
		}
	}
	m.nextID++
	stored := clonePage(*page)
	stored.ID = m.nextID
	m.pages[stored.ID] = stored
	return stored.ID, nil
}

func (m *mockPageRepository) UpdatePage(ctx context.Context, page data.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnSave != nil {
		return m.errOnSave
	}
	if _, ok := m.pages[page.ID]; !ok {
		return data.ErrNotFound
	}
	m.pages[page.ID] = clonePage(page)
	return nil
}

func (m *mockPageRepository) DeletePage(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnDel != nil {
		return m.errOnDel
	}
	if _, ok := m.pages[id]; !ok {
		return data.ErrNotFound
	}
	delete(m.pages, id)
	return nil
}

type storedBlob struct {
	meta    data.Blob
	content []byte
}

// mockBlobRepository is an in-memory BlobRepository with error injection.
type mockBlobRepository struct {
	mu    sync.Mutex
	blobs map[string]storedBlob

	deleted  []string
	errOnPut error
	errOnDel error
}

var _ BlobRepository = (*mockBlobRepository)(nil)

func newMockBlobRepository() *mockBlobRepository {
	return &mockBlobRepository{blobs: make(map[string]storedBlob)}
}

func (m *mockBlobRepository) PutBlob(ctx context.Context, blob data.Blob, content io.Reader) error {
	if m.errOnPut != nil {
		return m.errOnPut
	}
	body, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	blob.Length = int64(len(body))
	m.blobs[strings.ToLower(blob.FileID)] = storedBlob{meta: blob, content: body}
	return nil
}

func (m *mockBlobRepository) GetBlob(ctx context.Context, fileID string) (*data.Blob, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[strings.ToLower(fileID)]
	if !ok {
		return nil, nil, data.ErrNotFound
	}
	meta := b.meta
	return &meta, append([]byte(nil), b.content...), nil
}

func (m *mockBlobRepository) DeleteBlob(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnDel != nil {
		return m.errOnDel
	}
	key := strings.ToLower(fileID)
	if _, ok := m.blobs[key]; !ok {
		return data.ErrNotFound
	}
	delete(m.blobs, key)
	m.deleted = append(m.deleted, fileID)
	return nil
}

func (m *mockBlobRepository) has(fileID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[strings.ToLower(fileID)]
	return ok
}

// failingCache is a ListCache whose every call fails.
type failingCache struct{}

func (failingCache) Get(string) ([]byte, error)              { return nil, errDisk }
func (failingCache) Set(string, []byte, time.Duration) error { return errDisk }
func (failingCache) Delete(string) error                     { return errDisk }

// mockUserRepository is an in-memory UserRepository.
type mockUserRepository struct {
	mu     sync.Mutex
	users  map[string]data.User
	nextID int64
	err    error
}

var _ UserRepository = (*mockUserRepository)(nil)

func newMockUserRepository() *mockUserRepository {
	return &mockUserRepository{users: make(map[string]data.User)}
}

func (m *mockUserRepository) CreateUser(ctx context.Context, user *data.User) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	key := strings.ToLower(user.Username)
	if _, ok := m.users[key]; ok {
		return 0, data.ErrDuplicate
	}
	m.nextID++
	u := *user
	u.ID = m.nextID
	m.users[key] = u
	return u.ID, nil
}

func (m *mockUserRepository) GetUserByUsername(ctx context.Context, username string) (*data.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[strings.ToLower(username)]
	if !ok {
		return nil, data.ErrNotFound
	}
	return &u, nil
}
