// Package urlguard gates which URLs may be cited as official sources.
//
// Every URL that ends up in a stored record's field_sources, or in a
// query answer's source attribution, must pass through a Validator built
// from the configured domain allow-list. This is an integrity boundary,
// not a formatting helper: a URL that fails the gate is treated the same
// as no source at all.
package urlguard

import (
	"net/url"
	"strings"
)

// Validator checks URLs against an immutable domain allow-list.
type Validator struct {
	domains []string
}

// New creates a Validator for the given allowed domains.
// Domains are matched case-insensitively; a URL is accepted when its host
// equals an allowed domain or is a subdomain of one.
func New(domains []string) *Validator {
	normalized := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			normalized = append(normalized, d)
		}
	}
	return &Validator{domains: normalized}
}

// Domains returns a copy of the allow-list.
func (v *Validator) Domains() []string {
	out := make([]string, len(v.domains))
	copy(out, v.domains)
	return out
}

// Allowed reports whether rawURL's host is on the allow-list.
// Any parse failure, missing host, or off-list host returns false.
func (v *Validator) Allowed(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	for _, d := range v.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// Normalize resolves rawURL against base (when relative), then validates
// the result. Returns ("", false) for empty input, unresolvable relative
// URLs, parse failures, and off-list hosts. It never panics.
func (v *Validator) Normalize(rawURL, base string) (string, bool) {
	if rawURL == "" {
		return "", false
	}

	resolved := rawURL
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		if base == "" {
			return "", false
		}
		baseURL, err := url.Parse(base)
		if err != nil {
			return "", false
		}
		ref, err := url.Parse(rawURL)
		if err != nil {
			return "", false
		}
		resolved = baseURL.ResolveReference(ref).String()
	}

	if !v.Allowed(resolved) {
		return "", false
	}
	return resolved, true
}
