package p2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/matzehuels/launchtower/pkg/cache"
	errs "github.com/matzehuels/launchtower/pkg/errors"
	"github.com/matzehuels/launchtower/pkg/observability"
)

const httpTimeout = 5 * time.Minute

// Client fetches repository descriptors and artifacts. It adds caching,
// retries and the redirect check on top of an http.Client.
type Client struct {
	http    *http.Client
	cache   cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	headers map[string]string
}

// NewClient creates a Client. A nil cache disables caching and a nil keyer
// uses [cache.NewDefaultKeyer]. Headers are applied to all requests.
func NewClient(c cache.Cache, keyer cache.Keyer, ttl time.Duration, headers map[string]string) *Client {
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Client{
		http:    NewHTTPClient(),
		cache:   c,
		keyer:   keyer,
		ttl:     ttl,
		headers: headers,
	}
}

// NewHTTPClient returns an http.Client that also serves file:// URLs, so
// local repository mirrors work like remote ones.
func NewHTTPClient() *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{Transport: t, Timeout: httpTimeout}
}

// Keyer returns the keyer used for cache keys.
func (c *Client) Keyer() cache.Keyer { return c.keyer }

// Cached retrieves a value from cache or executes fetch and caches the result.
// If refresh is true, the cache is bypassed and fetch is always called.
// The fetch function should populate v; on success, v is stored in the cache.
func (c *Client) Cached(ctx context.Context, key string, refresh bool, v any, fetch func() error) error {
	if !refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok && json.Unmarshal(data, v) == nil {
			observability.Cache().OnCacheHit(ctx, "index")
			return nil
		}
		observability.Cache().OnCacheMiss(ctx, "index")
	}
	if err := fetch(); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		if c.cache.Set(ctx, key, data, c.ttl) == nil {
			observability.Cache().OnCacheSet(ctx, "index", len(data))
		}
	}
	return nil
}

// Exists checks url with HEAD. It reports false for 404 responses and for
// responses that were redirected to a different URL.
func (c *Client) Exists(ctx context.Context, url string) (bool, error) {
	var found bool
	err := cache.RetryWithBackoff(ctx, func() error {
		resp, err := c.do(ctx, http.MethodHead, url)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusMethodNotAllowed {
			// no HEAD support; let the GET decide
			found = true
			return nil
		}
		if err := checkStatus(resp); err != nil {
			if errors.Is(err, cache.ErrNotFound) {
				found = false
				return nil
			}
			return err
		}
		found = !redirected(url, resp)
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// Get downloads url into memory.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var data []byte
	err := cache.RetryWithBackoff(ctx, func() error {
		body, err := c.open(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return cache.Retryable(fmt.Errorf("%w: read %s: %v", cache.ErrNetwork, url, err))
		}
		return nil
	})
	return data, err
}

// Download streams url into w and returns the number of bytes written.
// Only the request is retried; a failure while streaming is returned as is.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	var body io.ReadCloser
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.open(ctx, url)
		return err
	})
	if err != nil {
		return 0, err
	}
	defer body.Close()
	n, err := io.Copy(w, body)
	if err != nil {
		return n, fmt.Errorf("%w: read %s: %v", cache.ErrNetwork, url, err)
	}
	return n, nil
}

// open issues a GET and returns the body of a 200 response that was not
// redirected elsewhere.
func (c *Client) open(ctx context.Context, url string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, url)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	if redirected(url, resp) {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s redirected to %s", cache.ErrNotFound, url, resp.Request.URL)
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, host, path, err)
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	hooks.OnResponse(ctx, method, host, path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// redirected reports whether the final request URL differs from the one asked for.
func redirected(raw string, resp *http.Response) bool {
	if resp.Request == nil || resp.Request.URL == nil {
		return false
	}
	u, err := neturl.Parse(raw)
	if err != nil {
		return true
	}
	return resp.Request.URL.String() != u.String()
}

func checkStatus(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return cache.Retryable(&errs.RateLimitedError{RetryAfter: retryAfter})
	case code == http.StatusNotFound || code == http.StatusGone:
		return cache.ErrNotFound
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", cache.ErrNetwork, code)
	}
}
