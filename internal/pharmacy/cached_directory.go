package pharmacy

import (
	"context"

	"github.com/wolfman30/pharmesol-assistant/internal/phone"
	"github.com/wolfman30/pharmesol-assistant/pkg/logging"
)

// LookupRecorder receives one result label per lookup: hit, miss, not_found or error.
type LookupRecorder interface {
	ObserveDirectoryLookup(result string)
}

// CachedDirectory serves lookups from a Cache before falling back to the
// wrapped Directory. Only positive results are cached.
type CachedDirectory struct {
	next    Directory
	cache   *Cache
	metrics LookupRecorder
	logger  *logging.Logger
}

// NewCachedDirectory decorates next with cache.
func NewCachedDirectory(next Directory, cache *Cache, metrics LookupRecorder, logger *logging.Logger) *CachedDirectory {
	if next == nil {
		panic("pharmacy: directory cannot be nil")
	}
	if cache == nil {
		panic("pharmacy: cache cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedDirectory{next: next, cache: cache, metrics: metrics, logger: logger.Component("pharmacy-cache")}
}

func (d *CachedDirectory) FindByPhone(ctx context.Context, normalizedPhone string) (*Pharmacy, error) {
	if p, ok := d.cache.Get(normalizedPhone); ok {
		d.logger.Debug("pharmacy cache hit", "phone", phone.Last4(normalizedPhone))
		d.observe("hit")
		return p, nil
	}
	p, err := d.next.FindByPhone(ctx, normalizedPhone)
	if err != nil {
		d.observe("error")
		return nil, err
	}
	if p == nil {
		d.observe("not_found")
		return nil, nil
	}
	d.observe("miss")
	d.cache.Set(normalizedPhone, *p)
	return p, nil
}

// List always goes to the underlying directory.
func (d *CachedDirectory) List(ctx context.Context) ([]Pharmacy, error) {
	return d.next.List(ctx)
}

func (d *CachedDirectory) observe(result string) {
	if d.metrics != nil {
		d.metrics.ObserveDirectoryLookup(result)
	}
}
