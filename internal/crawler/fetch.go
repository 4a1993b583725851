package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/immunescraper/helpers"
	"sjsage522/immunescraper/logger"
	scrapeerrors "sjsage522/immunescraper/pkg/errors"
	"sjsage522/immunescraper/services/cache"
)

// Fetcher retrieves pages through the shared gate and client.
// A failed fetch is logged and reported as an empty body; nothing is retried.
type Fetcher struct {
	client   *resty.Client
	gate     *Gate
	cacheSvc cache.CacheService
	cacheTTL time.Duration
	log      *logger.Logger
}

// FetcherOption customises a Fetcher
type FetcherOption func(*Fetcher)

// WithPageCache serves pages from cacheSvc when present and stores successful bodies for ttl
func WithPageCache(cacheSvc cache.CacheService, ttl time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.cacheSvc = cacheSvc
		f.cacheTTL = ttl
	}
}

// WithFetcherLogger replaces the component logger
func WithFetcherLogger(log *logger.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = log
	}
}

// NewFetcher creates a fetcher bound to client and gate
func NewFetcher(client *resty.Client, gate *Gate, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: client,
		gate:   gate,
		log:    logger.ForFetcher(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Gate returns the admission gate of the fetcher
func (f *Fetcher) Gate() *Gate {
	return f.gate
}

// Fetch returns the body of url, or "" on any failure
func (f *Fetcher) Fetch(ctx context.Context, url string) string {
	if body, ok := f.cached(url); ok {
		return body
	}

	if err := f.gate.Acquire(ctx); err != nil {
		f.log.Warn().Err(err).Str("url", url).Msg("Fetch cancelled before admission")
		return ""
	}
	body, err := f.fetch(ctx, url)
	if err != nil {
		f.logFailure(url, err, "Failed to fetch page")
		return ""
	}

	if err := f.store(url, body); err != nil {
		f.logFailure(url, err, "Failed to cache page")
	}
	return string(body)
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	defer f.gate.Release()
	return helpers.Fetch(ctx, f.client, url)
}

func (f *Fetcher) cached(url string) (string, bool) {
	if f.cacheSvc == nil {
		return "", false
	}
	data, err := f.cacheSvc.Get(cache.PageKey(url))
	if err != nil || len(data) == 0 {
		return "", false
	}
	f.log.Debug().Str("url", url).Msg("Page cache hit")
	return string(data), true
}

func (f *Fetcher) store(url string, body []byte) error {
	if f.cacheSvc == nil || len(body) == 0 {
		return nil
	}
	key := cache.PageKey(url)
	if err := f.cacheSvc.Set(key, body, f.cacheTTL); err != nil {
		return scrapeerrors.NewCache(key, "failed to store page", err)
	}
	return nil
}

func (f *Fetcher) logFailure(url string, err error, msg string) {
	event := f.log.Warn().Err(err).Str("url", url)

	var scrapeErr *scrapeerrors.ScrapeError
	if errors.As(err, &scrapeErr) {
		event = event.Str("error_type", string(scrapeErr.Type)).Bool("transient", scrapeErr.IsTransient())
	}
	event.Msg(msg)
}
