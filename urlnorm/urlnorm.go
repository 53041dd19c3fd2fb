// Package urlnorm canonicalizes URLs and decides crawl scope.
//
// Two URLs that normalize to the same string are the same logical page:
// the frontier and the graph key everything on the normalized form.
package urlnorm

import (
	"net/url"
	"strings"

	"github.com/use-agent/sitewalk/models"
)

// Policy controls which discovered links are eligible for crawling.
type Policy string

const (
	// PolicyHost restricts the crawl to the seed's exact host.
	PolicyHost Policy = "host"

	// PolicySubdomain allows any host sharing the seed's base domain
	// (docs.example.com and www.example.com both match example.com).
	PolicySubdomain Policy = "subdomain"
)

// Normalize canonicalizes a raw URL string: lower-cases scheme and host,
// removes the fragment, sorts query parameters, and strips the trailing
// slash except at the root. Pure transform; the only failure mode is a
// malformed or non-HTTP input, reported as INVALID_URL.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeInvalidURL, "malformed URL", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", models.NewCrawlError(models.ErrCodeInvalidURL, "unsupported scheme: "+raw, nil)
	}
	if u.Host == "" {
		return "", models.NewCrawlError(models.ErrCodeInvalidURL, "missing host: "+raw, nil)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.Path == "" {
		u.Path = "/"
	} else if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	// Values.Encode writes keys in sorted order, which is exactly the
	// canonical form we want.
	if u.RawQuery != "" {
		u.RawQuery = u.Query().Encode()
	}

	return u.String(), nil
}

// Resolve normalizes a possibly relative href against a base URL.
func Resolve(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeInvalidURL, "malformed base URL", err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", models.NewCrawlError(models.ErrCodeInvalidURL, "malformed href", err)
	}
	return Normalize(b.ResolveReference(ref).String())
}

// Scope is the policy bounding a crawl to the target site.
type Scope struct {
	policy   Policy
	seedHost string
	allow    map[string]struct{}
}

// NewScope builds a Scope for the given (normalized) seed URL.
// allowHosts extends the policy with an explicit host allow-list.
func NewScope(policy Policy, seed string, allowHosts []string) (*Scope, error) {
	u, err := url.Parse(seed)
	if err != nil || u.Host == "" {
		return nil, models.NewCrawlError(models.ErrCodeInvalidURL, "invalid seed URL: "+seed, err)
	}

	allow := make(map[string]struct{}, len(allowHosts))
	for _, h := range allowHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allow[h] = struct{}{}
		}
	}

	if policy == "" {
		policy = PolicyHost
	}

	return &Scope{
		policy:   policy,
		seedHost: strings.ToLower(u.Host),
		allow:    allow,
	}, nil
}

// InScope reports whether a normalized URL is eligible for crawling.
func (s *Scope) InScope(normalized string) bool {
	u, err := url.Parse(normalized)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Host)
	if _, ok := s.allow[host]; ok {
		return true
	}

	switch s.policy {
	case PolicySubdomain:
		return sameBaseDomain(host, s.seedHost)
	default:
		return strings.EqualFold(host, s.seedHost)
	}
}

// sameBaseDomain checks if two hosts share the same base domain.
func sameBaseDomain(host1, host2 string) bool {
	return strings.EqualFold(baseDomain(host1), baseDomain(host2))
}

// baseDomain extracts the base domain from a host.
// "docs.example.com" -> "example.com", "example.com" -> "example.com"
func baseDomain(host string) string {
	// Strip port if present.
	if idx := strings.LastIndex(host, ":"); idx != -1 {
		host = host[:idx]
	}
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}
