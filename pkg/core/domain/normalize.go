package domain

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MaxTagLength is the longest tag kept, in characters.
	MaxTagLength = 20
	// MaxTagsPerUpdate bounds a normalized tag list.
	MaxTagsPerUpdate = 10
	// MaxTagsPerLink bounds a link's tag set after additive bulk updates.
	MaxTagsPerLink = 20

	MinSlugLength = 5
	MaxSlugLength = 10
)

// NormalizeTags trims and lowercases raw tags, drops empty, duplicate and
// over-length entries and keeps the first MaxTagsPerUpdate survivors in
// input order. It is idempotent.
func NormalizeTags(raw []string) []string {
	return normalizeTags(raw, MaxTagsPerUpdate)
}

func normalizeTags(raw []string, limit int) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || utf8.RuneCountInString(t) > MaxTagLength {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out
}

// UnionTags adds the normalized form of add to current.
func UnionTags(current, add []string) []string {
	merged := append(append([]string{}, current...), NormalizeTags(add)...)
	return normalizeTags(merged, MaxTagsPerLink)
}

// SubtractTags removes the normalized form of remove from current.
func SubtractTags(current, remove []string) []string {
	drop := make(map[string]struct{})
	for _, t := range NormalizeTags(remove) {
		drop[t] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, t := range current {
		if _, ok := drop[strings.ToLower(t)]; !ok {
			out = append(out, t)
		}
	}
	return out
}

var blockedSchemes = []string{"javascript:", "data:", "vbscript:"}

// NormalizeURL validates a long URL and returns its canonical absolute form.
// A missing scheme defaults to https.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	lower := strings.ToLower(raw)
	for _, s := range blockedSchemes {
		if strings.HasPrefix(lower, s) {
			return "", fmt.Errorf("%w: scheme %s not allowed", ErrInvalidURL, strings.TrimSuffix(s, ":"))
		}
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Host, " \t") {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	u.Host = strings.ToLower(u.Host)
	return u.String(), nil
}

var slugRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var reservedSlugs = map[string]struct{}{
	"admin":   {},
	"api":     {},
	"auth":    {},
	"healthz": {},
	"login":   {},
	"metrics": {},
	"shorten": {},
	"static":  {},
}

// ValidateSlug checks a custom or generated slug.
func ValidateSlug(slug string) error {
	if len(slug) < MinSlugLength || len(slug) > MaxSlugLength {
		return fmt.Errorf("%w: must be %d-%d characters", ErrInvalidSlug, MinSlugLength, MaxSlugLength)
	}
	if !slugRE.MatchString(slug) {
		return fmt.Errorf("%w: only letters, digits, '-' and '_' are allowed", ErrInvalidSlug)
	}
	if _, ok := reservedSlugs[strings.ToLower(slug)]; ok {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidSlug, slug)
	}
	if strings.Trim(slug, "0123456789") == "" {
		return fmt.Errorf("%w: must not be purely numeric", ErrInvalidSlug)
	}
	return nil
}
