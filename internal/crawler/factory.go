package crawler

import (
	"sjsage522/immunescraper/config"
	"sjsage522/immunescraper/helpers"
	"sjsage522/immunescraper/services/cache"
)

// NewFromConfig wires a scraper from configuration. cacheSvc may be nil.
func NewFromConfig(cfg *config.Config, cacheSvc cache.CacheService) *Scraper {
	client := helpers.NewClient(helpers.ClientOptions{
		Timeout:         cfg.RequestTimeout,
		MaxConnsPerHost: cfg.MaxConnsPerHost,
		UserAgent:       cfg.UserAgent,
	})

	var opts []FetcherOption
	if cacheSvc != nil {
		opts = append(opts, WithPageCache(cacheSvc, cfg.PageCacheTTL))
	}
	fetcher := NewFetcher(client, NewGate(cfg.MaxConcurrent), opts...)

	return NewScraper(fetcher, NewWowheadExtractor(cfg.ScreenshotURL), NewSite(cfg.BaseURL))
}
