package ws

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginChecker accepts browser upgrades coming from the configured origins.
// Requests without an Origin header are not from a browser and are accepted.
type OriginChecker struct {
	allowAll bool
	allowed  map[string]struct{}
}

func NewOriginChecker(origins []string) OriginChecker {
	checker := OriginChecker{allowed: make(map[string]struct{})}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			checker.allowAll = true
			continue
		}
		if normalized, ok := normalizeOrigin(origin); ok {
			checker.allowed[normalized] = struct{}{}
		}
	}
	if len(checker.allowed) == 0 {
		checker.allowAll = true
	}
	return checker
}

func (c OriginChecker) Check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" || c.allowAll {
		return true
	}
	normalized, ok := normalizeOrigin(header)
	if !ok {
		return false
	}
	_, exists := c.allowed[normalized]
	return exists
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
