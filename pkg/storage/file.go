package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/getmockd/htmlshot/pkg/logging"
)

const tmpPrefix = ".htmlshot-tmp-"

// FileStore is an ObjectStore rooted at a directory. Each object is a file
// at root/<key>, with its attributes in a sibling "<key>.meta.json".
type FileStore struct {
	root string
	mu   sync.RWMutex
	log  *slog.Logger
	now  func() time.Time
}

var _ ObjectStore = (*FileStore)(nil)

// NewFileStore creates a FileStore, creating root if needed.
func NewFileStore(root string, log *slog.Logger) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("storage root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", abs, err)
	}
	return &FileStore{
		root: abs,
		log:  logging.OrNop(log).With("component", "storage.file"),
		now:  time.Now,
	}, nil
}

// Root returns the absolute storage directory.
func (s *FileStore) Root() string { return s.root }

func (s *FileStore) pathFor(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Put implements ObjectStore.
func (s *FileStore) Put(ctx context.Context, key string, data []byte, opts PutOptions) (*Object, error) {
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
	meta, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	p := s.pathFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := writeAtomic(p, data); err != nil {
		return nil, err
	}
	if err := writeAtomic(p+metaSuffix, meta); err != nil {
		return nil, err
	}
	s.log.Debug("object stored", "key", key, "size", obj.Size)
	return obj.clone(), nil
}

// Get implements ObjectStore.
func (s *FileStore) Get(ctx context.Context, key string) (*Object, []byte, error) {
	if err := ValidateKey(key); err != nil {
		return nil, nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to read object: %w", err)
	}
	obj, err := s.stat(key)
	if err != nil {
		return nil, nil, err
	}
	return obj, data, nil
}

// Stat implements ObjectStore.
func (s *FileStore) Stat(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stat(key)
}

// stat reads the sidecar, falling back to the file itself when the sidecar
// is missing or unreadable. Callers hold mu.
func (s *FileStore) stat(key string) (*Object, error) {
	p := s.pathFor(key)
	info, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	if raw, err := os.ReadFile(p + metaSuffix); err == nil {
		var obj Object
		if err := json.Unmarshal(raw, &obj); err == nil {
			obj.Key = key
			return &obj, nil
		}
		s.log.Warn("ignoring corrupt metadata", "key", key)
	}
	return &Object{
		Key:         key,
		Size:        info.Size(),
		ContentType: mime.TypeByExtension(path.Ext(key)),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

// Delete implements ObjectStore.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.pathFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	if err := os.Remove(p + metaSuffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.log.Warn("failed to remove metadata", "key", key, "error", err)
	}
	s.pruneDirs(filepath.Dir(p))
	return nil
}

// pruneDirs removes empty parent directories up to root.
func (s *FileStore) pruneDirs(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// List implements ObjectStore.
func (s *FileStore) List(ctx context.Context, prefix string, limit int) ([]*Object, error) {
	match, err := matcher(prefix)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var objs []*Object
	err = filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() || strings.HasSuffix(name, metaSuffix) || strings.HasPrefix(name, tmpPrefix) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !match(key) {
			return nil
		}
		obj, err := s.stat(key)
		if err != nil {
			return err
		}
		objs = append(objs, obj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	if objs == nil {
		objs = []*Object{}
	}
	return sortAndTrim(objs, clampLimit(limit)), nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place.
func writeAtomic(p string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(p), tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
