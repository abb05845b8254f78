package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	nanoid "github.com/jaevor/go-nanoid"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const (
	slugAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	slugLength     = 7
	slugMaxRetries = 5
	purgeTimeout   = 30 * time.Second
)

type LinkService struct {
	repo    ports.LinkRepository
	agg     ports.AggregateStore
	logger  *slog.Logger
	newSlug func() string
	now     func() time.Time
}

// NewLinkService wires the registry. agg may be nil, in which case hard
// deletes leave aggregates for the CLI purge command.
func NewLinkService(repo ports.LinkRepository, agg ports.AggregateStore, logger *slog.Logger) *LinkService {
	gen, err := nanoid.CustomASCII(slugAlphabet, slugLength)
	if err != nil {
		panic(err) // constant alphabet and length
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkService{
		repo:    repo,
		agg:     agg,
		logger:  logger,
		newSlug: gen,
		now:     time.Now,
	}
}

func (s *LinkService) Create(ctx context.Context, in ports.CreateLinkInput) (*domain.Link, error) {
	longURL, err := domain.NormalizeURL(in.LongURL)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	link := &domain.Link{
		ID:        uuid.NewString(),
		OwnerID:   in.OwnerID,
		LongURL:   longURL,
		Title:     strings.TrimSpace(in.Title),
		Status:    domain.StatusActive,
		Tags:      domain.NormalizeTags(in.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if in.Slug != "" {
		if err := domain.ValidateSlug(in.Slug); err != nil {
			return nil, err
		}
		link.Slug = in.Slug
		if err := s.repo.Create(ctx, link); err != nil {
			return nil, err
		}
		return link, nil
	}

	for attempt := 0; attempt < slugMaxRetries; attempt++ {
		link.Slug = s.newSlug()
		if err := domain.ValidateSlug(link.Slug); err != nil {
			s.logger.Debug("generated slug rejected", "slug", link.Slug, "error", err)
			continue
		}
		err := s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, domain.ErrSlugTaken) {
			return nil, err
		}
		s.logger.Debug("generated slug collided", "slug", link.Slug, "attempt", attempt+1)
	}
	return nil, fmt.Errorf("%w: could not generate a usable slug", domain.ErrConflict)
}

// Resolve returns the active link for slug. Paused, disabled and unknown
// slugs are indistinguishable to the caller.
func (s *LinkService) Resolve(ctx context.Context, slug string) (*domain.Link, error) {
	link, err := s.repo.GetActiveBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !link.Resolvable() {
		return nil, domain.ErrNotFound
	}
	return link, nil
}

func (s *LinkService) GetLink(ctx context.Context, id, ownerID string) (*domain.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := link.CheckOwner(ownerID); err != nil {
		return nil, err
	}
	return link, nil
}

func (s *LinkService) ListLinks(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, int64, error) {
	if ownerID == "" {
		return nil, 0, domain.ErrNotOwned
	}
	filter.Limit = domain.PageLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	links, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.repo.Count(ctx, ownerID, filter)
	if err != nil {
		return nil, 0, err
	}

	return links, count, nil
}

// mutateOwned runs fn against the owner's link inside the repository's
// read-modify-write.
func (s *LinkService) mutateOwned(ctx context.Context, id, ownerID string, fn func(*domain.Link, time.Time) error) (*domain.Link, error) {
	return s.repo.Mutate(ctx, id, func(l *domain.Link) error {
		if err := l.CheckOwner(ownerID); err != nil {
			return err
		}
		return fn(l, s.now().UTC())
	})
}

func (s *LinkService) UpdateLink(ctx context.Context, id, ownerID string, longURL, title *string) (*domain.Link, error) {
	var normalized string
	if longURL != nil {
		var err error
		if normalized, err = domain.NormalizeURL(*longURL); err != nil {
			return nil, err
		}
	}
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		if longURL != nil {
			l.LongURL = normalized
		}
		if title != nil {
			l.Title = strings.TrimSpace(*title)
		}
		l.UpdatedAt = now
		return nil
	})
}

func (s *LinkService) SetStatus(ctx context.Context, id, ownerID, status string) (*domain.Link, error) {
	to, err := domain.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		return l.Transition(to, now)
	})
}

func (s *LinkService) SoftDelete(ctx context.Context, id, ownerID string) (*domain.Link, error) {
	return s.SetStatus(ctx, id, ownerID, string(domain.StatusDisabled))
}

func (s *LinkService) Restore(ctx context.Context, id, ownerID string) (*domain.Link, error) {
	return s.SetStatus(ctx, id, ownerID, string(domain.StatusActive))
}

// HardDelete removes the record and purges its aggregates in the background.
func (s *LinkService) HardDelete(ctx context.Context, id, ownerID string) (*domain.Link, error) {
	removed, err := s.repo.Remove(ctx, id, func(l *domain.Link) error {
		return l.CheckOwner(ownerID)
	})
	if err != nil {
		return nil, err
	}

	if s.agg != nil {
		go func(linkID string) {
			ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
			defer cancel()
			if err := s.agg.PurgeLink(ctx, linkID); err != nil {
				s.logger.Error("purge aggregates failed", "link_id", linkID, "error", err)
			}
		}(removed.ID)
	}
	return removed, nil
}

// UpdateTags replaces the tag set with the normalized input.
func (s *LinkService) UpdateTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error) {
	tags := domain.NormalizeTags(rawTags)
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		l.Tags = tags
		l.UpdatedAt = now
		return nil
	})
}

func (s *LinkService) AddTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error) {
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		l.Tags = domain.UnionTags(l.Tags, rawTags)
		l.UpdatedAt = now
		return nil
	})
}

func (s *LinkService) RemoveTags(ctx context.Context, id, ownerID string, rawTags []string) (*domain.Link, error) {
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		l.Tags = domain.SubtractTags(l.Tags, rawTags)
		l.UpdatedAt = now
		return nil
	})
}

// MoveToFolder files the link; nil unfiles it. Folder ownership is the
// caller's precondition (see FolderService.EnsureOwned).
func (s *LinkService) MoveToFolder(ctx context.Context, id, ownerID string, folderID *string) (*domain.Link, error) {
	var target *string
	if folderID != nil && *folderID != "" {
		f := *folderID
		target = &f
	}
	return s.mutateOwned(ctx, id, ownerID, func(l *domain.Link, now time.Time) error {
		l.FolderID = target
		l.UpdatedAt = now
		return nil
	})
}

var _ ports.LinkService = (*LinkService)(nil)
