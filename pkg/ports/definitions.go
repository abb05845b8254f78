package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

// LinkRepository defines storage operations for links
type LinkRepository interface {
	// Create inserts a new link; a duplicate slug yields domain.ErrSlugTaken.
	Create(ctx context.Context, link *domain.Link) error
	GetByID(ctx context.Context, id string) (*domain.Link, error)
	// GetActiveBySlug returns only links whose status is active.
	GetActiveBySlug(ctx context.Context, slug string) (*domain.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// Mutate applies fn to the current record and persists the result
	// atomically. An error from fn aborts without writing.
	Mutate(ctx context.Context, id string, fn func(*domain.Link) error) (*domain.Link, error)
	// Remove deletes the record if check passes, returning what was removed.
	Remove(ctx context.Context, id string, check func(*domain.Link) error) (*domain.Link, error)
	IncrementClicks(ctx context.Context, id string) error
	List(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, error)
	Count(ctx context.Context, ownerID string, filter domain.LinkFilter) (int64, error)
	Dump(ctx context.Context) ([]domain.Link, error) // For migration
}

// FolderRepository stores owner-scoped folders.
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *domain.Folder) error
	GetFolder(ctx context.Context, id string) (*domain.Folder, error)
	ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)
	// DeleteFolder removes the folder and unfiles its links in one transaction.
	DeleteFolder(ctx context.Context, id string) (unfiled int64, err error)
}

// AggregateStore owns the per-link, per-day click buckets.
type AggregateStore interface {
	// Record applies one classified click to its (linkID, day) bucket as a
	// single all-or-nothing increment.
	Record(ctx context.Context, linkID string, click domain.ClassifiedClick) error
	// RangeTotals returns (day, total) for existing buckets in [start, end], ascending.
	RangeTotals(ctx context.Context, linkID string, start, end time.Time) ([]domain.DayTotal, error)
	// RangeBreakdown sums dim over [start, end], sorted by count desc then label asc.
	RangeBreakdown(ctx context.Context, linkID string, start, end time.Time, dim domain.Dimension, limit int) ([]domain.LabelCount, error)
	// PurgeLink drops every bucket of a deleted link.
	PurgeLink(ctx context.Context, linkID string) error
	// LinkIDs lists link ids that own at least one bucket.
	LinkIDs(ctx context.Context) ([]string, error)
}

// GeoLocator resolves a client IP to an ISO 3166-1 alpha-2 country code.
type GeoLocator interface {
	Country(ctx context.Context, ip string) (string, error)
}

// Classifier derives dimension values from a raw click. It never fails.
type Classifier interface {
	Classify(ctx context.Context, raw domain.RawClick) domain.ClassifiedClick
}

// ClickSink accepts redirect events without blocking the caller.
type ClickSink interface {
	Enqueue(raw domain.RawClick) bool
}

// LinkService defines the business logic operations of the link registry
type LinkService interface {
	Create(ctx context.Context, in CreateLinkInput) (*domain.Link, error)
	Resolve(ctx context.Context, slug string) (*domain.Link, error)
	GetLink(ctx context.Context, id, ownerID string) (*domain.Link, error)
	ListLinks(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, int64, error)
	UpdateLink(ctx context.Context, id, ownerID string, longURL, title *string) (*domain.Link, error)
	SetStatus(ctx context.Context, id, ownerID, status string) (*domain.Link, error)
	SoftDelete(ctx context.Context, id, ownerID string) (*domain.Link, error)
	Restore(ctx context.Context, id, ownerID string) (*domain.Link, error)
	HardDelete(ctx context.Context, id, ownerID string) (*domain.Link, error)
	UpdateTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error)
	AddTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error)
	RemoveTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error)
	MoveToFolder(ctx context.Context, id, ownerID string, folderID *string) (*domain.Link, error)
}

// CreateLinkInput carries the arguments of LinkService.Create.
type CreateLinkInput struct {
	LongURL string
	OwnerID string // empty for anonymous links
	Slug    string // optional custom slug
	Title   string
	Tags    []string
}

// AnalyticsService answers owner-scoped analytics queries.
type AnalyticsService interface {
	GetTimeseries(ctx context.Context, requesterID, linkID string, q domain.RangeQuery) (*domain.Timeseries, error)
	GetBreakdown(ctx context.Context, requesterID, linkID string, q domain.BreakdownQuery) (*domain.Breakdown, error)
}

// BulkService applies one operation to many links.
type BulkService interface {
	Apply(ctx context.Context, ownerID, op string, ids []string, payload domain.BulkPayload) (*domain.BulkReport, error)
}

// FolderService is the folder collaborator.
type FolderService interface {
	CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error)
	ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error)
	DeleteFolder(ctx context.Context, ownerID, id string) error
	// EnsureOwned is the precondition for filing links into folderID.
	EnsureOwned(ctx context.Context, ownerID, folderID string) error
}
