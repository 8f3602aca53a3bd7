package storage

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	obj  *Object
	data []byte
}

// MemoryStore is an ObjectStore held in memory. It is safe for concurrent
// use and loses everything on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryEntry
	now     func() time.Time
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Put implements ObjectStore.
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	obj := &Object{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: opts.ContentType,
		ETag:        ETag(data),
		Metadata:    copyMetadata(opts.Metadata),
		CreatedAt:   s.now().UTC(),
	}
	buf := append([]byte(nil), data...)

	s.mu.Lock()
	s.objects[key] = memoryEntry{obj: obj, data: buf}
	s.mu.Unlock()
	return obj.clone(), nil
}

// Get implements ObjectStore.
func (s *MemoryStore) Get(_ context.Context, key string) (*Object, []byte, error) {
	s.mu.RLock()
	e, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	return e.obj.clone(), append([]byte(nil), e.data...), nil
}

// Stat implements ObjectStore.
func (s *MemoryStore) Stat(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	e, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e.obj.clone(), nil
}

// Delete implements ObjectStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// List implements ObjectStore.
func (s *MemoryStore) List(_ context.Context, prefix string, limit int) ([]*Object, error) {
	match, err := matcher(prefix)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	objs := make([]*Object, 0, len(s.objects))
	for key, e := range s.objects {
		if match(key) {
			objs = append(objs, e.obj.clone())
		}
	}
	s.mu.RUnlock()
	return sortAndTrim(objs, clampLimit(limit)), nil
}

// Len returns the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
