// Package memo is a content-addressed result cache for scoring stages.
//
// Entries are keyed on a SHA-256 digest of the algorithm id, its parameters
// and the input arrays, and are bounded by total encoded size rather than
// entry count. A Cache is an injected collaborator; a nil *Cache is valid and
// simply computes every time.
package memo

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"hash"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/actiscore/pkg/algorithm"
)

const (
	fileName            = "memo.gob"
	defaultMaxBytes     = 256 << 20
	defaultSaveInterval = 15 * time.Minute
)

// Cache memoizes encoded results.
type Cache struct {
	cache        *otter.Cache[string, []byte]
	logger       *slog.Logger
	saveCancel   context.CancelFunc
	dir          string
	saveInterval time.Duration
	saveWg       sync.WaitGroup
	mu           sync.Mutex
	hits         atomic.Int64
	misses       atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithDir persists the cache as a gob file in dir, loading it on start and
// saving periodically and on Close.
func WithDir(dir string) Option {
	return func(c *Cache) {
		c.dir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithSaveInterval sets how often a persisted cache is written to disk.
func WithSaveInterval(d time.Duration) Option {
	return func(c *Cache) {
		c.saveInterval = d
	}
}

// New creates a cache holding at most maxBytes of keys plus encoded values.
// Zero selects a 256 MiB budget.
func New(ctx context.Context, maxBytes uint64, opts ...Option) (*Cache, error) {
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}
	c := &Cache{
		logger:       slog.Default(),
		saveInterval: defaultSaveInterval,
	}
	for _, opt := range opts {
		opt(c)
	}

	cache, err := otter.New(&otter.Options[string, []byte]{
		MaximumWeight: maxBytes,
		Weigher: func(key string, value []byte) uint32 {
			w := uint64(len(key) + len(value))
			if w > math.MaxUint32 {
				return math.MaxUint32
			}
			return uint32(w)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating memo cache: %w", err)
	}
	c.cache = cache

	if c.dir == "" {
		return c, nil
	}
	if err := os.MkdirAll(c.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := c.loadFromDisk(); err != nil {
		c.logger.Warn("failed to load memo cache from disk", "error", err)
	}
	c.logger.Debug("memo cache initialized", "dir", c.dir, "entries_loaded", c.cache.EstimatedSize(), "max_bytes", maxBytes)
	c.startPeriodicSave(ctx)
	return c, nil
}

// Key derives a stable content hash. Supported array types are []float64,
// []int, []bool, string and float64; anything else is rendered with %v.
func Key(algorithmID string, params algorithm.Params, arrays ...any) string {
	h := sha256.New()
	h.Write([]byte(algorithmID))
	h.Write([]byte{0})
	h.Write([]byte(params.Key()))
	for _, a := range arrays {
		h.Write([]byte{0})
		writeValue(h, a)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeValue(h hash.Hash, v any) {
	var buf [8]byte
	switch x := v.(type) {
	case []float64:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(x)))
		h.Write(buf[:])
		for _, f := range x {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	case []int:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(x)))
		h.Write(buf[:])
		for _, n := range x {
			binary.LittleEndian.PutUint64(buf[:], uint64(n))
			h.Write(buf[:])
		}
	case []bool:
		binary.LittleEndian.PutUint64(buf[:], uint64(len(x)))
		h.Write(buf[:])
		for _, b := range x {
			if b {
				h.Write([]byte{1})
			} else {
				h.Write([]byte{0})
			}
		}
	case float64:
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	case string:
		h.Write([]byte(x))
	default:
		fmt.Fprintf(h, "%v", x)
	}
}

// Get returns the encoded value for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, ok := c.cache.GetIfPresent(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set stores an encoded value.
func (c *Cache) Set(key string, data []byte) {
	if c == nil {
		return
	}
	c.cache.Set(key, data)
}

// Do returns the cached result for key or computes, stores and returns it.
// Values round-trip through gob, so T must be gob-encodable.
func Do[T any](c *Cache, key string, compute func() (T, error)) (T, error) {
	if c == nil {
		return compute()
	}
	if data, ok := c.Get(key); ok {
		var v T
		err := gob.NewDecoder(bytes.NewReader(data)).Decode(&v)
		if err == nil {
			return v, nil
		}
		c.logger.Debug("discarding undecodable memo entry", "key", key, "error", err)
		c.cache.Invalidate(key)
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		c.logger.Debug("memo encode failed", "key", key, "error", err)
		return v, nil
	}
	c.Set(key, buf.Bytes())
	return v, nil
}

// Stats reports hit/miss counters and the current entry count.
func (c *Cache) Stats() map[string]int64 {
	if c == nil {
		return map[string]int64{}
	}
	return map[string]int64{
		"entries": int64(c.cache.EstimatedSize()),
		"hits":    c.hits.Load(),
		"misses":  c.misses.Load(),
	}
}

func (c *Cache) loadFromDisk() error {
	path := filepath.Join(c.dir, fileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			c.logger.Debug("failed to close cache file", "error", closeErr)
		}
	}()

	var entries map[string][]byte
	if err := gob.NewDecoder(file).Decode(&entries); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}
	for k, v := range entries {
		c.cache.Set(k, v)
	}
	c.logger.Debug("loaded memo cache from disk", "path", path, "entries", len(entries))
	return nil
}

func (c *Cache) saveToDisk() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, fileName)
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			c.logger.Debug("failed to remove temp file", "error", removeErr)
		}
	}()

	entries := make(map[string][]byte)
	for k, v := range c.cache.All() {
		entries[k] = v
	}
	if err := gob.NewEncoder(file).Encode(entries); err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding cache to file: %w", err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close() //nolint:errcheck // already failing
		return fmt.Errorf("syncing cache file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("memo cache saved to disk", "entries", len(entries), "path", path)
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	saveCtx, cancel := context.WithCancel(ctx)
	c.saveCancel = cancel

	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()
		ticker := time.NewTicker(c.saveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-saveCtx.Done():
				return
			case <-ticker.C:
				if err := c.saveToDisk(); err != nil {
					c.logger.Warn("periodic memo save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the saver and writes a final snapshot when the cache is persisted.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	if c.dir == "" {
		return nil
	}
	return c.saveToDisk()
}
