package resolver

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func respond(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

func redirect(req *http.Request, location string) *http.Response {
	resp := respond(req, http.StatusFound, "")
	resp.Header.Set("Location", location)
	return resp
}

// newTestFetcher builds a fetcher over a stub transport with sleeps recorded
// instead of slept.
func newTestFetcher(rt roundTripFunc) (*Fetcher, *[]time.Duration) {
	f := NewFetcherWithClient(&http.Client{Transport: rt})
	slept := &[]time.Duration{}
	f.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return f, slept
}

func TestFetcherGet(t *testing.T) {
	var gotUA, gotReferer string
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		gotUA = req.Header.Get("User-Agent")
		gotReferer = req.Header.Get("Referer")
		return respond(req, http.StatusOK, "hello"), nil
	})

	result, err := f.Get("https://www.bilibili.com/video/BV1xx4y1x7Nq", map[string]string{"Referer": "https://www.bilibili.com"})

	require.NoError(t, err)
	assert.Equal(t, "hello", string(result.Body))
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, desktopUserAgent, gotUA)
	assert.Equal(t, "https://www.bilibili.com", gotReferer)
}

func TestFetcherRetriesOnceAfterFailure(t *testing.T) {
	attempts := 0
	f, slept := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return respond(req, http.StatusBadGateway, ""), nil
		}
		return respond(req, http.StatusOK, "ok"), nil
	})

	result, err := f.Get("https://api.bilibili.com/x/web-interface/view?bvid=x", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(result.Body))
	assert.Equal(t, 2, attempts)
	assert.Equal(t, []time.Duration{400 * time.Millisecond}, *slept)
}

func TestFetcherStopsAfterTwoAttempts(t *testing.T) {
	attempts := 0
	f, slept := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		attempts++
		return respond(req, http.StatusInternalServerError, ""), nil
	})

	_, err := f.Get("https://api.bilibili.com/x/web-interface/view?bvid=x", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
	assert.Equal(t, 2, attempts)
	assert.Len(t, *slept, 1)
}

func TestFetcherRetriesTransportError(t *testing.T) {
	attempts := 0
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts == 1 {
			return nil, io.ErrUnexpectedEOF
		}
		return respond(req, http.StatusOK, "ok"), nil
	})

	result, err := f.Get("https://www.bilibili.com/video/BV1xx4y1x7Nq", nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(result.Body))
	assert.Equal(t, 2, attempts)
}

func TestFetcherGetJSON(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK, `{"code":0,"message":"ok"}`), nil
	})

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	err := f.GetJSON("https://api.bilibili.com/x/web-interface/view?bvid=x", nil, &body)

	require.NoError(t, err)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "ok", body.Message)
}

func TestFetcherGetJSONMalformedBody(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK, "<html>not json</html>"), nil
	})

	var body map[string]any
	err := f.GetJSON("https://api.bilibili.com/x/web-interface/view?bvid=x", nil, &body)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode JSON")
}

func TestResolveShortLinkFollowsRedirect(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Host {
		case "b23.tv":
			return redirect(req, "https://www.bilibili.com/video/BV1xx4y1x7Nq"), nil
		default:
			return respond(req, http.StatusOK, "<html></html>"), nil
		}
	})

	resolved, err := f.ResolveShortLink("https://b23.tv/abcd123")

	require.NoError(t, err)
	assert.Equal(t, "https://www.bilibili.com/video/BV1xx4y1x7Nq", resolved)
}

func TestResolveShortLinkAnchorFallback(t *testing.T) {
	body := `<html><body>Redirecting... <a href="https://www.bilibili.com/video/BV1xx4y1x7Nq?from=share">继续</a></body></html>`
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK, body), nil
	})

	resolved, err := f.ResolveShortLink("https://b23.tv/abcd123")

	require.NoError(t, err)
	assert.Equal(t, "https://www.bilibili.com/video/BV1xx4y1x7Nq?from=share", resolved)
}

func TestResolveShortLinkRejectsUnsafeHop(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "b23.tv" {
			return redirect(req, "http://169.254.169.254/latest/meta-data"), nil
		}
		return respond(req, http.StatusOK, ""), nil
	})

	_, err := f.ResolveShortLink("https://b23.tv/abcd123")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable target")
}

func TestResolveShortLinkRejectsForeignHop(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		if req.URL.Host == "b23.tv" {
			return redirect(req, "https://evil.example.com/lure"), nil
		}
		return respond(req, http.StatusOK, ""), nil
	})

	_, err := f.ResolveShortLink("https://b23.tv/abcd123")

	require.Error(t, err)
}

func TestResolveShortLinkNoRedirectNoAnchor(t *testing.T) {
	f, _ := newTestFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(req, http.StatusOK, "<html><body>nothing here</body></html>"), nil
	})

	resolved, err := f.ResolveShortLink("https://b23.tv/abcd123")

	require.NoError(t, err)
	assert.Equal(t, "https://b23.tv/abcd123", resolved)
}
