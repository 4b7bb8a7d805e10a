package validator

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	maxURLLength = 2048
	minURLLength = 10
)

var (
	// supportedSchemes is intentionally narrow: only http/https may be
	// shortened. Unlike the original teacher validator, ftp/ftps are not
	// accepted — a shortener that redirects is an http(s) concern.
	supportedSchemes = map[string]bool{
		"http":  true,
		"https": true,
	}

	// maliciousPatterns blocks schemes that would let a "URL" execute
	// script or embed arbitrary data rather than redirect.
	maliciousPatterns = []string{
		"javascript:",
		"data:",
		"vbscript:",
		"file:",
		"about:",
	}
)

// URLValidator handles URL validation
type URLValidator struct {
	maxLength int
	minLength int
}

// NewURLValidator creates a new URL validator
func NewURLValidator() *URLValidator {
	return &URLValidator{
		maxLength: maxURLLength,
		minLength: minURLLength,
	}
}

// ValidateURL validates if a URL is well-formed and safe to redirect to.
func (v *URLValidator) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("URL cannot be empty")
	}

	if len(rawURL) < v.minLength {
		return fmt.Errorf("URL too short (minimum %d characters)", v.minLength)
	}

	if len(rawURL) > v.maxLength {
		return fmt.Errorf("URL too long (maximum %d characters)", v.maxLength)
	}

	lowerURL := strings.ToLower(rawURL)
	for _, pattern := range maliciousPatterns {
		if strings.Contains(lowerURL, pattern) {
			return fmt.Errorf("URL contains potentially malicious content")
		}
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if !supportedSchemes[strings.ToLower(parsedURL.Scheme)] {
		return fmt.Errorf("unsupported URL scheme: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return fmt.Errorf("URL must have a valid host")
	}

	// Reject embedded credentials (user:pass@host) — a common phishing
	// vector where the visible host in the URL differs from the host the
	// browser actually connects to.
	if parsedURL.User != nil {
		return fmt.Errorf("URLs with embedded credentials are not allowed")
	}

	return nil
}

// SanitizeURL trims whitespace and defaults a missing scheme to https.
func SanitizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)

	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	return rawURL
}

// defaultPorts maps a scheme to the port implied by its absence, so
// "example.com:443" over https normalizes the same as bare "example.com".
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

// NormalizeForHash reduces rawURL to the canonical form used for
// duplicate-detection hashing: lowercase scheme and host, default port
// stripped, path and query preserved as given, fragment dropped. It does
// not otherwise validate the URL; callers should validate first.
func NormalizeForHash(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" && port != defaultPorts[scheme] {
		host = host + ":" + port
	}

	normalized := url.URL{
		Scheme:   scheme,
		Host:     host,
		Path:     parsed.Path,
		RawQuery: parsed.RawQuery,
	}
	return normalized.String(), nil
}
