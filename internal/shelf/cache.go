package shelf

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Cache is the persistent store the pipeline reads and populates. Keys are
// always canonical URLs, regardless of which transport produced the entry.
type Cache interface {
	Get(url string) (CacheEntry, bool)
	Put(url string, ent CacheEntry) error
}

type cacheMeta struct {
	Size      int64
	FetchedAt int64
}

// DocumentCache is a goleveldb-backed Cache. Entries live under "e:<url>",
// metadata under "m:<url>". A small in-memory index of sizes is loaded at
// open so key counts and disk usage are cheap to report.
//
// There is no eviction and no expiry: entries persist until the backing
// storage is cleared by whoever owns it.
type DocumentCache struct {
	db  *leveldb.DB
	log zerolog.Logger

	mu        sync.Mutex
	index     map[string]cacheMeta
	totalSize int64
}

func OpenDocumentCache(path string, log zerolog.Logger) (*DocumentCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrCacheUnavailable, path, err)
	}
	c := &DocumentCache{
		db:    db,
		log:   log,
		index: map[string]cacheMeta{},
	}
	if err := c.loadIndex(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: load index: %v", ErrCacheUnavailable, err)
	}
	return c, nil
}

func (c *DocumentCache) Close() error {
	return c.db.Close()
}

func (c *DocumentCache) loadIndex() error {
	it := c.db.NewIterator(util.BytesPrefix([]byte("m:")), nil)
	defer it.Release()

	var total int64
	idx := map[string]cacheMeta{}
	for it.Next() {
		key := string(bytes.TrimPrefix(it.Key(), []byte("m:")))
		var meta cacheMeta
		if err := decodeGob(it.Value(), &meta); err != nil {
			continue
		}
		idx[key] = meta
		total += meta.Size
	}
	if err := it.Error(); err != nil {
		return err
	}
	c.mu.Lock()
	c.index = idx
	c.totalSize = total
	c.mu.Unlock()
	return nil
}

func (c *DocumentCache) Get(url string) (CacheEntry, bool) {
	b, err := c.db.Get([]byte("e:"+url), nil)
	if err != nil {
		return CacheEntry{}, false
	}
	var ent CacheEntry
	if err := decodeGob(b, &ent); err != nil {
		c.log.Warn().Str("url", url).Err(err).Msg("corrupt cache entry, treating as miss")
		return CacheEntry{}, false
	}
	return ent, true
}

func (c *DocumentCache) Put(url string, ent CacheEntry) error {
	b, err := encodeGob(ent)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	meta := cacheMeta{Size: int64(len(b)), FetchedAt: ent.FetchedAt}
	mb, err := encodeGob(meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte("e:"+url), b)
	batch.Put([]byte("m:"+url), mb)
	if err := c.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}

	c.mu.Lock()
	if old, ok := c.index[url]; ok {
		c.totalSize -= old.Size
	}
	c.index[url] = meta
	c.totalSize += meta.Size
	c.mu.Unlock()
	return nil
}

func (c *DocumentCache) Has(url string) bool {
	c.mu.Lock()
	_, ok := c.index[url]
	c.mu.Unlock()
	return ok
}

func (c *DocumentCache) KeyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *DocumentCache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}

func (c *DocumentCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.index))
	for k := range c.index {
		out = append(out, k)
	}
	return out
}

// ---- encoding ----

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	dec := gob.NewDecoder(bytes.NewReader(b))
	return dec.Decode(v)
}
