package middleware

import (
	"fmt"
	"net/http"
	"path"
	"strings"
)

// RequestMatcher matches requests by an ant-style path pattern and an
// optional method.
//
// Pattern syntax:
//   - "**" as a whole segment matches zero or more segments
//   - "*" and "?" match within a single segment
//   - anything else matches literally
//
// Examples: "/login", "/static/**", "/login/oauth2/code/*".
type RequestMatcher struct {
	method   string
	pattern  string
	segments []string
}

// NewRequestMatcher parses expr, which is a pattern optionally preceded by a
// method: "/static/**" or "POST /logout".
func NewRequestMatcher(expr string) (*RequestMatcher, error) {
	expr = strings.TrimSpace(expr)
	method := ""
	if m, p, ok := strings.Cut(expr, " "); ok {
		method, expr = strings.ToUpper(m), strings.TrimSpace(p)
	}

	if !strings.HasPrefix(expr, "/") {
		return nil, fmt.Errorf("matcher %q: pattern must start with /", expr)
	}

	segments := splitPath(expr)
	for _, seg := range segments {
		if seg == "**" {
			continue
		}
		if strings.Contains(seg, "**") {
			return nil, fmt.Errorf("matcher %q: ** must be a whole segment", expr)
		}
		if _, err := path.Match(seg, ""); err != nil {
			return nil, fmt.Errorf("matcher %q: %w", expr, err)
		}
	}

	return &RequestMatcher{method: method, pattern: expr, segments: segments}, nil
}

// MustRequestMatcher is NewRequestMatcher for patterns known at compile time.
func MustRequestMatcher(expr string) *RequestMatcher {
	m, err := NewRequestMatcher(expr)
	if err != nil {
		panic(err)
	}
	return m
}

// String returns the matcher in the form it was parsed from.
func (m *RequestMatcher) String() string {
	if m.method == "" {
		return m.pattern
	}
	return m.method + " " + m.pattern
}

// Matches reports whether r matches.
func (m *RequestMatcher) Matches(r *http.Request) bool {
	if m.method != "" && r.Method != m.method {
		return false
	}
	return m.MatchesPath(r.URL.Path)
}

// MatchesPath reports whether the cleaned p matches the pattern.
func (m *RequestMatcher) MatchesPath(p string) bool {
	return matchSegments(m.segments, splitPath(cleanPath(p)))
}

func matchSegments(pattern, parts []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(parts); i++ {
				if matchSegments(rest, parts[i:]) {
					return true
				}
			}
			return false
		}

		if len(parts) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], parts[0]); !ok {
			return false
		}
		pattern, parts = pattern[1:], parts[1:]
	}
	return len(parts) == 0
}

// cleanPath normalises a request path so "/static/../login" cannot slip past
// an ignore rule.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// matchers is an ordered set of RequestMatchers.
type matchers []*RequestMatcher

func compileMatchers(exprs []string) (matchers, error) {
	out := make(matchers, 0, len(exprs))
	for _, s := range exprs {
		m, err := NewRequestMatcher(s)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (ms matchers) Matches(r *http.Request) bool {
	for _, m := range ms {
		if m.Matches(r) {
			return true
		}
	}
	return false
}
