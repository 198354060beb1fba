package billingapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-billing-bff/app/apiclient"
)

const (
	TagPaymentStatus = "PaymentStatus"
	TagInvoice       = "Invoice"
	TagSubscription  = "Subscription"
	TagUser          = "User"
)

type cacheKey struct {
	tag       string
	id        string
	principal string
}

// viewTags lists the tags each cached view provides. The payment status view carries
// the subscription level and profiling entitlement, so it answers to User and
// Subscription invalidations too.
var viewTags = map[string][]string{
	TagPaymentStatus: {TagPaymentStatus, TagSubscription, TagUser},
	TagInvoice:       {TagInvoice},
}

type cacheEntry struct {
	value   any
	tags    []string
	expires time.Time
}

func (e cacheEntry) provides(tag string) bool {
	for _, t := range e.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// viewCache keeps read views per (tag, id, principal) until they expire or their tag
// is invalidated by a mutation.
type viewCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[cacheKey]cacheEntry
}

func newViewCache(ttl time.Duration) *viewCache {
	return &viewCache{
		ttl:     ttl,
		now:     time.Now,
		entries: map[cacheKey]cacheEntry{},
	}
}

func (c *viewCache) get(key cacheKey) (any, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *viewCache) put(key cacheKey, value any) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tags := viewTags[key.tag]
	if len(tags) == 0 {
		tags = []string{key.tag}
	}
	c.entries[key] = cacheEntry{value: value, tags: tags, expires: c.now().Add(c.ttl)}
}

// sweep drops expired entries and reports how many were removed.
func (c *viewCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
			dropped++
		}
	}
	return dropped
}

func (c *viewCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// invalidate drops every entry providing tag; an empty id matches all ids.
func (c *viewCache) invalidate(tag, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, entry := range c.entries {
		if !entry.provides(tag) {
			continue
		}
		if id != "" && key.id != id {
			continue
		}
		delete(c.entries, key)
		dropped++
	}
	return dropped
}

func principalFromContext(ctx context.Context) string {
	token := apiclient.BearerFromContext(ctx)
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

func cached[T any](ctx context.Context, c *viewCache, tag, id string, load func() apiclient.Result[T]) apiclient.Result[T] {
	key := cacheKey{tag: tag, id: id, principal: principalFromContext(ctx)}
	if value, ok := c.get(key); ok {
		if typed, ok := value.(T); ok {
			return apiclient.Ok(typed)
		}
	}

	result := load()
	if result.OK() {
		c.put(key, result.Value())
	}
	return result
}
