package blob

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps blobs in process. It backs tests and the "memory"
// storage mode used for local development.
type MemoryStore struct {
	mu      sync.RWMutex
	loc     Locator
	now     func() time.Time
	objects map[string]memoryObject
}

type memoryObject struct {
	body       []byte
	uploadedAt time.Time
}

func NewMemoryStore(base string) *MemoryStore {
	return &MemoryStore{
		loc:     NewLocator(base),
		now:     time.Now,
		objects: map[string]memoryObject{},
	}
}

// WithClock overrides the upload timestamp source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

func (m *MemoryStore) Put(_ context.Context, pathname string, body []byte, _ string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.now().UTC()
	m.objects[pathname] = memoryObject{body: append([]byte(nil), body...), uploadedAt: ts}
	return m.object(pathname, int64(len(body)), ts), nil
}

func (m *MemoryStore) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Object, 0, len(m.objects))
	for p, o := range m.objects {
		if strings.HasPrefix(p, opts.Prefix) {
			out = append(out, *m.object(p, int64(len(o.body)), o.uploadedAt))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].Pathname < out[j].Pathname
	})
	res := &ListResult{Objects: out}
	if opts.Limit > 0 && len(out) > opts.Limit {
		res.Objects = out[:opts.Limit]
		res.HasMore = true
		res.Cursor = strconv.Itoa(opts.Limit)
	}
	return res, nil
}

func (m *MemoryStore) Get(_ context.Context, locator string) ([]byte, error) {
	p, ok := m.loc.Pathname(locator)
	if !ok {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[p]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), o.body...), nil
}

func (m *MemoryStore) Delete(_ context.Context, locator string) error {
	p, ok := m.loc.Pathname(locator)
	if !ok {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[p]; !ok {
		return ErrNotFound
	}
	delete(m.objects, p)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) object(pathname string, size int64, ts time.Time) *Object {
	return &Object{
		Pathname:    pathname,
		URL:         m.loc.URL(pathname),
		DownloadURL: m.loc.DownloadURL(pathname),
		UploadedAt:  ts,
		Size:        size,
	}
}
