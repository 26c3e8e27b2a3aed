package lwdata

import (
	"fmt"
	"path/filepath"

	"github.com/golang/groupcache/lru"

	"livewidget/internal/logging"
	"livewidget/internal/models"
	"livewidget/pkg/buffer"
	"livewidget/pkg/loader"
)

// DefaultReferenceCacheSize is the number of reference buffers kept.
const DefaultReferenceCacheSize = 8

// Resolver turns a reference file identifier into a buffer.
type Resolver func(id string) (*buffer.Store, error)

// FileResolver loads references from disk with type detection. Relative
// identifiers are taken relative to dir.
func FileResolver(dir string, opts *loader.Options) Resolver {
	return func(id string) (*buffer.Store, error) {
		path := id
		if dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(dir, id)
		}
		frame, err := loader.LoadFile(path, models.Unspecified, opts)
		if err != nil {
			return nil, err
		}
		logging.Info("loaded reference %s: %v, digest %s", path, frame.Store, frame.DigestString())
		return frame.Store, nil
	}
}

// referenceCache keeps recently used reference buffers by identifier.
// Evicted buffers are not released since a Data may still hold them.
type referenceCache struct {
	resolve Resolver
	entries *lru.Cache
}

func newReferenceCache(resolve Resolver, size int) *referenceCache {
	if size <= 0 {
		size = DefaultReferenceCacheSize
	}
	c := &referenceCache{
		resolve: resolve,
		entries: lru.New(size),
	}
	c.entries.OnEvicted = func(key lru.Key, _ interface{}) {
		logging.Debug("reference %v evicted from cache", key)
	}
	return c
}

// get returns the cached buffer for id, loading it on a miss. Failed
// loads are not cached.
func (c *referenceCache) get(id string) (*buffer.Store, error) {
	if v, ok := c.entries.Get(id); ok {
		return v.(*buffer.Store), nil
	}
	store, err := c.resolve(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrReferenceLoad, id, err)
	}
	c.entries.Add(id, store)
	return store, nil
}

func (c *referenceCache) len() int {
	return c.entries.Len()
}

// references are the buffers resolved for one ProcessingSettings value.
type references struct {
	darkfield *buffer.Store
	flat      *buffer.Store
	operand   *buffer.Store
}

func (c *referenceCache) resolveAll(p ProcessingSettings) (references, error) {
	var r references
	var err error
	if p.DarkfieldFile != "" {
		if r.darkfield, err = c.get(p.DarkfieldFile); err != nil {
			return r, err
		}
	}
	if p.NormalizeFile != "" {
		if r.flat, err = c.get(p.NormalizeFile); err != nil {
			return r, err
		}
	}
	if p.OperationFile != "" {
		if r.operand, err = c.get(p.OperationFile); err != nil {
			return r, err
		}
	}
	return r, nil
}
