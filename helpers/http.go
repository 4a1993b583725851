package helpers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	mathrand "math/rand"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	scrapeerrors "sjsage522/immunescraper/pkg/errors"
)

// HTTP client and header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}

	rateLimitStatuses = []int{http.StatusTooManyRequests, 430}
)

// ClientOptions configures the shared HTTP client
type ClientOptions struct {
	// Timeout bounds the whole request including the body read
	Timeout time.Duration
	// MaxConnsPerHost caps simultaneous connections to a single host
	MaxConnsPerHost int
	// UserAgent overrides the rotating browser user agents when set
	UserAgent string
}

// NewClient builds the resty client every page fetch goes through.
// Retries stay disabled: a failed page is final for the run.
func NewClient(opts ClientOptions) *resty.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        opts.MaxConnsPerHost * 2,
		MaxIdleConnsPerHost: opts.MaxConnsPerHost,
		MaxConnsPerHost:     opts.MaxConnsPerHost,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetRetryCount(0).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Cache-Control", "no-cache").
		SetHeader("Pragma", "no-cache")

	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return client
}

// Fetch sends a GET request and returns the body converted to UTF-8.
// Non-200 responses come back as typed errors.
func Fetch(ctx context.Context, client *resty.Client, url string) ([]byte, error) {
	req := client.R().SetContext(ctx)
	if client.Header.Get("User-Agent") == "" {
		req.SetHeader("User-Agent", userAgents[mathrand.Intn(len(userAgents))])
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, scrapeerrors.NewNetwork(url, "failed to fetch URL", err)
	}

	// Check for rate limiting
	if slices.Contains(rateLimitStatuses, resp.StatusCode()) {
		return nil, scrapeerrors.NewRateLimit(url, resp.Header().Get("Retry-After"))
	}

	// Check for other error status codes
	if resp.StatusCode() != http.StatusOK {
		return nil, scrapeerrors.NewNetwork(url, fmt.Sprintf("unexpected status code: %d", resp.StatusCode()), nil)
	}

	return ToUTF8(resp.Body(), resp.Header().Get("Content-Type"))
}

// ToUTF8 transcodes body according to its Content-Type header and meta tags
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	encoding, name, _ := charset.DetermineEncoding(body, contentType)

	// If already UTF-8, return as is
	if name == "utf-8" || name == "UTF-8" {
		return body, nil
	}

	utf8Reader := encoding.NewDecoder().Reader(bytes.NewReader(body))
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, utf8Reader); err != nil {
		return nil, scrapeerrors.NewParsing("", "failed to read converted UTF-8 body", err)
	}

	return buf.Bytes(), nil
}
