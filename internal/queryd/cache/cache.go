// Package cache memoizes compile results in Redis. Compilation is cheap
// but hot: the editing surface recompiles on every keystroke pause, and
// the same phrasings recur across users. Keys are derived from the
// normalized query text plus the content-type context, since the
// context changes which date field the reduced patch targets.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kavyarao/streamfilter/internal/query/fragment"
	"github.com/kavyarao/streamfilter/internal/query/reducer"
	"github.com/kavyarao/streamfilter/pkg/config"
	pkgredis "github.com/kavyarao/streamfilter/pkg/redis"
)

const keyPrefix = "compile:"

// Entry is the cached outcome of one compile: the fragments and the
// patch they reduce to under the keyed content-type context.
type Entry struct {
	Fragments []fragment.Fragment `json:"fragments"`
	Patch     reducer.FilterPatch `json:"patch"`
}

// CompileCache wraps Redis with request coalescing via singleflight.
type CompileCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a compile cache over the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *CompileCache {
	return &CompileCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "compile-cache"),
	}
}

// Get looks up a cached entry. A decode failure counts as a miss.
func (c *CompileCache) Get(ctx context.Context, text, contentType string) (*Entry, bool) {
	key := c.buildKey(text, contentType)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var entry Entry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &entry, true
}

// Set stores an entry. Failures are logged, not returned, since a cache
// write must never fail a compile.
func (c *CompileCache) Set(ctx context.Context, text, contentType string, entry *Entry) {
	key := c.buildKey(text, contentType)
	data, err := json.Marshal(entry)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached entry or runs computeFn, coalescing
// concurrent misses for the same key into one compilation. The second
// return value reports whether the entry came from cache.
func (c *CompileCache) GetOrCompute(
	ctx context.Context,
	text, contentType string,
	computeFn func() (*Entry, error),
) (*Entry, bool, error) {
	if entry, ok := c.Get(ctx, text, contentType); ok {
		return entry, true, nil
	}
	key := c.buildKey(text, contentType)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if entry, ok := c.Get(ctx, text, contentType); ok {
			return entry, nil
		}
		entry, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, text, contentType, entry)
		return entry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Entry), false, nil
}

// Invalidate removes every compile entry. Called after a lookup refresh
// changes the pattern table, since old entries may reflect stale rules.
func (c *CompileCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating compile cache: %w", err)
	}
	c.logger.Info("compile cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats reports cumulative hit and miss counts.
func (c *CompileCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *CompileCache) buildKey(text, contentType string) string {
	raw := normalizeText(text) + "|ct=" + contentType
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

// normalizeText folds case and collapses whitespace, mirroring how the
// pattern matchers see the input. Word order is preserved: the compiler
// is order-sensitive, so differently ordered queries must not share an
// entry.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
