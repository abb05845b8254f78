package domain

import (
	"fmt"
	"strings"
	"time"
)

// LinkStatus is the lifecycle state of a short link.
type LinkStatus string

const (
	StatusActive   LinkStatus = "active"
	StatusPaused   LinkStatus = "paused"
	StatusDisabled LinkStatus = "disabled"
)

// ParseStatus validates a raw status name.
func ParseStatus(s string) (LinkStatus, error) {
	switch st := LinkStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusPaused, StatusDisabled:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Link represents a shortened URL
type Link struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	OwnerID   string     `json:"owner_id,omitempty"` // empty for anonymous links
	LongURL   string     `json:"long_url"`
	Title     string     `json:"title,omitempty"`
	Status    LinkStatus `json:"status"`
	Tags      []string   `json:"tags"`
	FolderID  *string    `json:"folder_id"`
	Clicks    int64      `json:"clicks"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsAnonymous reports whether the link has no owner.
func (l *Link) IsAnonymous() bool {
	return l.OwnerID == ""
}

// CheckOwner fails with ErrNotOwned unless ownerID owns the link.
// Anonymous links are never owned by anyone.
func (l *Link) CheckOwner(ownerID string) error {
	if l.IsAnonymous() || ownerID == "" || l.OwnerID != ownerID {
		return ErrNotOwned
	}
	return nil
}

// Resolvable reports whether the redirect path may serve this link.
func (l *Link) Resolvable() bool {
	return l.Status == StatusActive
}

// Transition moves the link to status `to`. Any state may move to any
// other state; entering disabled stamps DeletedAt and leaving it clears it.
func (l *Link) Transition(to LinkStatus, now time.Time) error {
	if _, err := ParseStatus(string(to)); err != nil {
		return err
	}
	if to == StatusDisabled {
		if l.Status != StatusDisabled || l.DeletedAt == nil {
			t := now.UTC()
			l.DeletedAt = &t
		}
	} else {
		l.DeletedAt = nil
	}
	l.Status = to
	l.UpdatedAt = now.UTC()
	return nil
}

// RedirectTarget returns the URL a visitor is sent to.
func (l *Link) RedirectTarget() string {
	if strings.Contains(l.LongURL, "://") {
		return l.LongURL
	}
	return "https://" + l.LongURL
}

// LinkFilter narrows an owner's link listing.
// Page sizes for link listings.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageLimit clamps a requested page size: non-positive means the default.
func PageLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}

type LinkFilter struct {
	Status   LinkStatus
	Tag      string
	FolderID string
	Unfiled  bool
	Search   string
	Limit    int
	Offset   int
}
