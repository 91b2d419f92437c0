// Package urlutil provides URL normalization, hashing, and domain checks
// for the discovery and extraction pipeline. URLs are normalized before
// comparison so that the same page expressed differently produces the same
// identifier for deduplication and idempotent storage.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// trackingParams lists query parameters stripped during normalization.
// These are advertising and analytics trackers that do not affect page content.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errUnsupportedScheme   = errors.New("normalize url: unsupported scheme")
)

// Normalize applies deterministic transformations to a raw URL so that
// equivalent URLs produce identical strings: lowercased scheme and host,
// default ports removed, dot-segments resolved, trailing slashes removed,
// fragments removed, query parameters sorted, and tracking parameters
// stripped. The scheme is preserved as found; county sites are fetched
// exactly as they link to themselves.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = normalizeHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = buildCleanQuery(parsed.Query())
	parsed.Path = normalizePath(parsed.Path)

	return parsed.String(), nil
}

// PageID normalizes the given URL and returns its SHA-256 hex digest.
// The returned string is always 64 characters long.
func PageID(rawURL string) (string, error) {
	normalized, err := Normalize(rawURL)
	if err != nil {
		return "", fmt.Errorf("page id: %w", err)
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:]), nil
}

// shortIDLength is the filename-safe prefix length of a page identifier.
const shortIDLength = 12

// ShortID returns the first 12 hex characters of PageID, used in stored
// record filenames to avoid collisions between same-slug programs.
func ShortID(rawURL string) (string, error) {
	id, err := PageID(rawURL)
	if err != nil {
		return "", err
	}

	return id[:shortIDLength], nil
}

// DedupKey returns the normalized (host, path) form of a URL used for
// within-county candidate deduplication. Query strings are ignored so a
// page linked with and without tracking noise counts once.
func DedupKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("dedup key: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return strings.ToLower(parsed.Hostname()) + normalizePath(parsed.Path), nil
}

// Host returns the hostname (without port) from a URL, lowercased.
func Host(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("extract host: %w", err)
	}

	if validateErr := validateParsedURL(parsed); validateErr != nil {
		return "", validateErr
	}

	return strings.ToLower(parsed.Hostname()), nil
}

// SameRegisteredDomain reports whether two URLs share a registered domain
// (eTLD+1), so health.county.gov stays inside county.gov while links to
// social networks and state portals do not. Unparseable hosts never match.
func SameRegisteredDomain(a, b string) bool {
	domainA, err := registeredDomain(a)
	if err != nil {
		return false
	}

	domainB, err := registeredDomain(b)
	if err != nil {
		return false
	}

	return domainA == domainB
}

// registeredDomain extracts the eTLD+1 of a URL's hostname.
func registeredDomain(rawURL string) (string, error) {
	host, err := Host(rawURL)
	if err != nil {
		return "", err
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", fmt.Errorf("registered domain: %w", err)
	}

	return domain, nil
}

// PathDepth returns the number of non-empty path segments, used by the
// scorer's tie-break rule to prefer links closer to the site root.
func PathDepth(rawURL string) int {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}

	cleaned := strings.Trim(normalizePath(parsed.Path), "/")
	if cleaned == "" {
		return 0
	}

	return strings.Count(cleaned, "/") + 1
}

// Resolve resolves an href against a base URL and validates the result is
// fetchable (absolute http or https). Anchors, mailto, tel, and javascript
// pseudo-links are rejected.
func Resolve(baseURL, href string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", errEmptyInput
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("resolve: parse base: %w", err)
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("resolve: parse href: %w", err)
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", errUnsupportedScheme
	}

	if resolved.Host == "" {
		return "", errMissingSchemeOrHost
	}

	return resolved.String(), nil
}

// validateParsedURL checks that a parsed URL has the minimum required components.
func validateParsedURL(u *url.URL) error {
	if u.Scheme == "" || u.Host == "" {
		return errMissingSchemeOrHost
	}

	return nil
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" {
		return hostname
	}

	if defaultPort, ok := defaultPorts[strings.ToLower(u.Scheme)]; ok && port == defaultPort {
		return hostname
	}

	return hostname + ":" + port
}

// buildCleanQuery strips tracking parameters, sorts the remaining keys
// alphabetically, and returns the encoded query string. Returns an empty
// string when no parameters remain after filtering.
func buildCleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))

	for key := range values {
		if _, isTracking := trackingParams[key]; !isTracking {
			keys = append(keys, key)
		}
	}

	if len(keys) == 0 {
		return ""
	}

	sort.Strings(keys)

	var b strings.Builder

	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}

		vals := values[key]
		for j, val := range vals {
			if j > 0 {
				b.WriteByte('&')
			}

			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}

	return b.String()
}

// normalizePath resolves dot-segments (/../, /./) and removes trailing
// slashes while preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean(p)

	return strings.TrimRight(cleaned, "/")
}
