// Package monthstore persists transactions as one JSON file per month.
//
// Every file is named <YYYY-MM>.json and holds {"transactions": [...]}.
// Writes go to a temporary file in the same directory which is then renamed
// over the target, so readers never observe a partially written shard.
package monthstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"zhangdan/internal/cache"
	"zhangdan/internal/core"
	"zhangdan/internal/log"
)

const shardExt = ".json"

// Store reads and writes month shards under a single directory.
type Store struct {
	dir    string
	cache  cache.Cache[core.Shard]
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// readConcurrency bounds ReadShards fan-out.
	readConcurrency int
}

// Option configures a Store.
type Option func(*Store)

// WithCache enables a read-through cache of parsed shards.
func WithCache(c cache.Cache[core.Shard]) Option {
	return func(s *Store) { s.cache = c }
}

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(log.ComponentMonthStore) }
}

// WithReadConcurrency bounds the number of shards read in parallel.
func WithReadConcurrency(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.readConcurrency = n
		}
	}
}

// New returns a store rooted at dir. The directory is not created until EnsureDir or the first write.
func New(dir string, opts ...Option) *Store {
	s := &Store{
		dir:             dir,
		locks:           make(map[string]*sync.Mutex),
		readConcurrency: 8,
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.Discard()
	}
	return s
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(monthKey string) string {
	return filepath.Join(s.dir, monthKey+shardExt)
}

// EnsureDir creates the store directory if needed.
func (s *Store) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", s.dir, err)
	}
	return nil
}

// ReadShard loads one month. A missing file yields an empty shard; malformed JSON is an error.
// The returned shard is owned by the caller.
func (s *Store) ReadShard(monthKey string) (core.Shard, error) {
	if !core.ValidMonthKey(monthKey) {
		return core.Shard{}, fmt.Errorf("read shard: invalid month key %q", monthKey)
	}
	if s.cache != nil {
		if sh, ok := s.cache.Get(monthKey); ok {
			return sh.Clone(), nil
		}
		// a miss is filled under the shard lock so it cannot overwrite a newer write
		l := s.lockFor(monthKey)
		l.Lock()
		defer l.Unlock()
	}
	return s.readLocked(monthKey)
}

// readLocked reads monthKey from the cache or disk and fills the cache.
// The caller holds the shard lock whenever a cache is configured.
func (s *Store) readLocked(monthKey string) (core.Shard, error) {
	if s.cache != nil {
		if sh, ok := s.cache.Get(monthKey); ok {
			return sh.Clone(), nil
		}
	}

	data, err := os.ReadFile(s.path(monthKey))
	if errors.Is(err, fs.ErrNotExist) {
		return core.Shard{Transactions: []core.Transaction{}}, nil
	}
	if err != nil {
		return core.Shard{}, fmt.Errorf("read shard %s: %w", monthKey, err)
	}

	var sh core.Shard
	if err := json.Unmarshal(data, &sh); err != nil {
		return core.Shard{}, fmt.Errorf("decode shard %s: %w", monthKey, err)
	}
	if sh.Transactions == nil {
		sh.Transactions = []core.Transaction{}
	}
	if s.cache != nil {
		s.cache.Set(monthKey, sh.Clone())
	}
	return sh, nil
}

// WriteShard replaces the month file atomically.
func (s *Store) WriteShard(monthKey string, sh core.Shard) error {
	if !core.ValidMonthKey(monthKey) {
		return fmt.Errorf("write shard: invalid month key %q", monthKey)
	}
	l := s.lockFor(monthKey)
	l.Lock()
	defer l.Unlock()
	return s.writeLocked(monthKey, sh)
}

func (s *Store) writeLocked(monthKey string, sh core.Shard) error {
	if sh.Transactions == nil {
		sh.Transactions = []core.Transaction{}
	}
	if err := s.EnsureDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sh, "", "  ")
	if err != nil {
		return fmt.Errorf("encode shard %s: %w", monthKey, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+monthKey+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", monthKey, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp for %s: %w", monthKey, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp for %s: %w", monthKey, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp for %s: %w", monthKey, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp for %s: %w", monthKey, err)
	}
	if err := os.Rename(tmpName, s.path(monthKey)); err != nil {
		cleanup()
		return fmt.Errorf("rename shard %s: %w", monthKey, err)
	}

	if s.cache != nil {
		s.cache.Set(monthKey, sh.Clone())
	}
	s.logger.Debug("Shard written", log.FieldMonthKey, monthKey, log.FieldCount, len(sh.Transactions))
	return nil
}

// ListShardKeys returns the month keys present on disk in ascending order.
// Files that are not <YYYY-MM>.json are ignored. A missing directory yields no keys.
func (s *Store) ListShardKeys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list shards in %s: %w", s.dir, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, shardExt) {
			continue
		}
		key := strings.TrimSuffix(name, shardExt)
		if core.ValidMonthKey(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) lockFor(monthKey string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[monthKey]
	if !ok {
		l = &sync.Mutex{}
		s.locks[monthKey] = l
	}
	return l
}

// WithShard runs fn while holding the lock of monthKey.
// fn receives the current shard and returns the shard to persist; write=false skips the write.
func (s *Store) WithShard(monthKey string, fn func(sh core.Shard) (next core.Shard, write bool, err error)) error {
	l := s.lockFor(monthKey)
	l.Lock()
	defer l.Unlock()

	if !core.ValidMonthKey(monthKey) {
		return fmt.Errorf("read shard: invalid month key %q", monthKey)
	}
	sh, err := s.readLocked(monthKey)
	if err != nil {
		return err
	}
	next, write, err := fn(sh)
	if err != nil {
		return err
	}
	if !write {
		return nil
	}
	return s.writeLocked(monthKey, next)
}

// ReadShards loads several shards concurrently. The result is aligned with keys.
func (s *Store) ReadShards(ctx context.Context, keys []string) ([]core.Shard, error) {
	out := make([]core.Shard, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.readConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sh, err := s.ReadShard(key)
			if err != nil {
				return err
			}
			out[i] = sh
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Snapshot reads every shard on disk.
func (s *Store) Snapshot(ctx context.Context) (core.Snapshot, error) {
	keys, err := s.ListShardKeys()
	if err != nil {
		return nil, err
	}
	shards, err := s.ReadShards(ctx, keys)
	if err != nil {
		return nil, err
	}
	snap := make(core.Snapshot, len(keys))
	for i, k := range keys {
		snap[k] = shards[i]
	}
	return snap, nil
}

// Ping reports whether the store directory is usable. A missing directory is fine.
func (s *Store) Ping() error {
	info, err := os.Stat(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}
	return nil
}
