package resolver

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/safeurl"
)

const (
	// desktopUserAgent is sent on every request. The platforms serve
	// stripped-down or empty pages to unknown clients.
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// retryBackoffStep scales with the attempt number: 400ms before the
	// second attempt. There is no third attempt.
	retryBackoffStep = 400 * time.Millisecond
	maxFetchAttempts = 2

	// DefaultTimeout bounds a single request. The upstream APIs normally
	// answer within a second.
	DefaultTimeout = 30 * time.Second
)

// anchorPattern finds the manual redirect anchor some short-link hosts send
// instead of an HTTP redirect.
var anchorPattern = regexp.MustCompile(`(?i)<a[^>]+href=["']([^"']+)["']`)

// FetchResult is one successful HTTP exchange.
type FetchResult struct {
	Body     []byte
	FinalURL string
	Status   int
	Header   http.Header
}

// Fetcher issues GET requests with a desktop user agent, following
// redirects, retrying once on any failure.
type Fetcher struct {
	client *http.Client
	sleep  func(time.Duration)
}

// NewFetcher creates a fetcher with a default HTTP client.
func NewFetcher() *Fetcher {
	return NewFetcherWithClient(&http.Client{Timeout: DefaultTimeout})
}

// NewFetcherWithClient creates a fetcher around the given client. Tests
// inject a client with a stub transport.
func NewFetcherWithClient(client *http.Client) *Fetcher {
	return &Fetcher{
		client: client,
		sleep:  time.Sleep,
	}
}

// Get fetches rawURL, retrying once after a fixed backoff on transport
// errors and non-2xx statuses. The returned FinalURL reflects any redirects
// followed; callers must re-check it before fetching anything derived from
// the response.
func (f *Fetcher) Get(rawURL string, header map[string]string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		if attempt > 1 {
			f.sleep(time.Duration(attempt-1) * retryBackoffStep)
		}

		result, err := f.getOnce(rawURL, header)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (f *Fetcher) getOnce(rawURL string, header map[string]string) (*FetchResult, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create GET request")
	}

	req.Header.Set("User-Agent", desktopUserAgent)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read response from %s", rawURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return &FetchResult{
		Body:     body,
		FinalURL: resp.Request.URL.String(),
		Status:   resp.StatusCode,
		Header:   resp.Header,
	}, nil
}

// GetJSON fetches rawURL and unmarshals the body into v.
func (f *Fetcher) GetJSON(rawURL string, header map[string]string, v any) error {
	result, err := f.Get(rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, v); err != nil {
		return errors.Wrapf(err, "failed to decode JSON from %s", rawURL)
	}
	return nil
}

// ResolveShortLink follows rawURL to the content URL it redirects to. When
// the host answers 200 without redirecting, the first anchor in the body is
// taken as the manual redirect. Every hop is re-checked against the URL
// gate; a hop landing outside the allowed domains is an error. When no
// redirect of either kind is found, rawURL itself is returned.
func (f *Fetcher) ResolveShortLink(rawURL string) (string, error) {
	result, err := f.Get(rawURL, nil)
	if err != nil {
		return "", err
	}

	candidate := ""
	if result.FinalURL != rawURL {
		candidate = result.FinalURL
	} else if m := anchorPattern.FindSubmatch(result.Body); m != nil {
		candidate = string(m[1])
	}
	if candidate == "" {
		return rawURL, nil
	}

	resolved, err := safeurl.Normalize(candidate)
	if err != nil {
		return "", errors.Wrapf(err, "short link %s resolved to unusable target", rawURL)
	}
	return resolved, nil
}
