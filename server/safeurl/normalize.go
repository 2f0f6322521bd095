// Package safeurl validates and canonicalizes URLs before any network use.
//
// Every URL the plugin fetches passes through Normalize once per hop: the
// original user input, each redirect target, and every URL lifted out of an
// embedded payload. The gate rejects non-HTTP schemes, loopback and private
// addresses, and hostnames outside the supported platform domains.
package safeurl

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// maxDirectParseLen is the longest input parsed as a single URL. Longer
// inputs are scanned for embedded candidates instead.
const maxDirectParseLen = 2048

// allowedDomains lists the platform domains a normalized URL may belong to.
// Subdomains are allowed.
var allowedDomains = []string{
	"bilibili.com",
	"b23.tv",
	"xiaohongshu.com",
	"xhslink.com",
	"douyin.com",
	"iesdouyin.com",
}

var (
	// ErrUnsupportedScheme is returned for any scheme other than http/https.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	// ErrForbiddenHost is returned for loopback, private, link-local and
	// local-network hostnames.
	ErrForbiddenHost = errors.New("host is private or local")
	// ErrHostNotAllowed is returned for hosts outside the platform domains.
	ErrHostNotAllowed = errors.New("host is not a supported platform domain")
)

var urlCandidatePattern = regexp.MustCompile(`https?://[^\s<>"'\\]+`)

// Normalize validates raw and returns its canonical form: http/https scheme,
// allow-listed non-private host, lowercased host, no fragment. The result is
// stable under re-normalization.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	if len(raw) > maxDirectParseLen {
		return normalizeEmbedded(raw)
	}

	u, err := parseCandidate(raw)
	if err != nil {
		return "", err
	}
	if err := CheckHost(u.Hostname()); err != nil {
		return "", err
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// normalizeEmbedded scans an oversized input for URL substrings and returns
// the first one that normalizes cleanly.
func normalizeEmbedded(raw string) (string, error) {
	for _, candidate := range urlCandidatePattern.FindAllString(raw, -1) {
		if len(candidate) > maxDirectParseLen {
			continue
		}
		normalized, err := Normalize(candidate)
		if err == nil {
			return normalized, nil
		}
	}
	return "", errors.New("no safe url found in input")
}

func parseCandidate(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		// Scheme-less inputs like "www.bilibili.com/video/…" parse as a
		// bare path; retry with an explicit https prefix.
		retried, retryErr := url.Parse("https://" + raw)
		if retryErr != nil || retried.Host == "" {
			return nil, errors.Errorf("not a parseable url: %q", clip(raw, 128))
		}
		u = retried
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, ErrUnsupportedScheme
	}
	return u, nil
}

// CheckHost applies the SSRF boundary to a bare hostname. Resolvers call it
// again on every redirect hop, so the check must hold for the final resolved
// hostname, not only the original input.
func CheckHost(host string) error {
	host = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
	if host == "" {
		return errors.New("empty hostname")
	}
	if host == "localhost" ||
		strings.HasSuffix(host, ".localhost") ||
		strings.HasSuffix(host, ".local") ||
		strings.HasSuffix(host, ".internal") {
		return ErrForbiddenHost
	}
	if ip := net.ParseIP(host); ip != nil {
		if isDisallowedIP(ip) {
			return ErrForbiddenHost
		}
		// A public IP literal can never match a platform domain.
		return ErrHostNotAllowed
	}
	if !hostAllowed(host) {
		return ErrHostNotAllowed
	}
	return nil
}

// CheckPublicURL verifies that rawURL uses http/https and does not point at
// a private or local host. It does not require the platform allow-list:
// direct media URLs handed back by the first-party APIs live on rotating CDN
// hosts that cannot be enumerated.
func CheckPublicURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrapf(err, "unparseable url %s", clip(rawURL, 128))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrUnsupportedScheme
	}
	if u.Hostname() == "" {
		return errors.New("url has no host")
	}
	if err := CheckHost(u.Hostname()); errors.Is(err, ErrForbiddenHost) {
		return err
	}
	return nil
}

func hostAllowed(host string) bool {
	for _, domain := range allowedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isDisallowedIP(ip net.IP) bool {
	ip = ip.To16()
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		switch {
		case v4[0] == 10:
			return true
		case v4[0] == 127:
			return true
		case v4[0] == 169 && v4[1] == 254:
			return true
		case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
			return true
		case v4[0] == 192 && v4[1] == 168:
			return true
		}
		return false
	}
	// IPv6 unique local fc00::/7.
	return ip[0]&0xfe == 0xfc
}

// CanonicalKey reduces a URL to its dedup identity. Scheme, query, fragment
// and CDN transform suffixes do not distinguish two references to the same
// content, so all of them are dropped.
func CanonicalKey(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}

	path := strings.TrimSuffix(u.Path, "/")
	if cut := strings.LastIndex(path, "!"); cut > strings.LastIndex(path, "/") {
		path = path[:cut]
	}
	return strings.ToLower(u.Host) + path
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
