package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
)

// Common errors.
var (
	ErrNotFound    = errors.New("object not found")
	ErrInvalidKey  = errors.New("invalid object key")
	ErrInvalidGlob = errors.New("invalid list pattern")
)

// List limits.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
	maxKeyLength     = 1024
	metaSuffix       = ".meta.json"
)

// Object describes a stored object.
type Object struct {
	Key         string            `json:"key"`
	Size        int64             `json:"size"`
	ContentType string            `json:"contentType"`
	ETag        string            `json:"etag"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// PutOptions carries the attributes stored with an object.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is a flat key/value store for rendered images. Keys use "/"
// as a separator and are validated with ValidateKey.
type ObjectStore interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, opts PutOptions) (*Object, error)
	// Get returns the object and its bytes, or ErrNotFound.
	Get(ctx context.Context, key string) (*Object, []byte, error)
	// Stat returns the object without its bytes, or ErrNotFound.
	Stat(ctx context.Context, key string) (*Object, error)
	// Delete removes the object, or returns ErrNotFound.
	Delete(ctx context.Context, key string) error
	// List returns objects whose key starts with prefix, or matches it when
	// prefix is a glob such as "renders/**/*.png", sorted by key.
	List(ctx context.Context, prefix string, limit int) ([]*Object, error)
}

// ValidateKey reports whether key is safe to use on every backend.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case len(key) > maxKeyLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidKey, maxKeyLength)
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("%w: must be relative", ErrInvalidKey)
	case strings.Contains(key, `\`):
		return fmt.Errorf("%w: backslash not allowed", ErrInvalidKey)
	case strings.HasSuffix(key, metaSuffix):
		return fmt.Errorf("%w: %s suffix is reserved", ErrInvalidKey, metaSuffix)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: bad path segment %q", ErrInvalidKey, seg)
		}
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", ErrInvalidKey)
		}
	}
	return nil
}

// NewKey returns a fresh key of the form prefix/YYYY/MM/DD/<uuid>.<ext>.
// The UUID is version 7, so keys created later sort later.
func NewKey(prefix, ext string, now time.Time) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	name := id.String()
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		name += "." + ext
	}
	key := path.Join(strings.Trim(prefix, "/"), now.UTC().Format("2006/01/02"), name)
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// PublicURL joins baseURL and key, escaping each key segment.
func PublicURL(baseURL, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segs, "/")
}

// ETag returns the hex SHA-256 of data.
func ETag(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// matcher returns the key filter for a List prefix.
func matcher(prefix string) (func(key string) bool, error) {
	if !strings.ContainsAny(prefix, "*?[{") {
		return func(key string) bool { return strings.HasPrefix(key, prefix) }, nil
	}
	if !doublestar.ValidatePattern(prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidGlob, prefix)
	}
	return func(key string) bool {
		ok, _ := doublestar.Match(prefix, key)
		return ok
	}, nil
}

// clampLimit applies the default and maximum list sizes.
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}

func sortAndTrim(objs []*Object, limit int) []*Object {
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })
	if len(objs) > limit {
		objs = objs[:limit]
	}
	return objs
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (o *Object) clone() *Object {
	c := *o
	c.Metadata = copyMetadata(o.Metadata)
	return &c
}
