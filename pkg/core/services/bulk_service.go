package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/metrics"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const (
	DefaultBulkConcurrency = 8
	DefaultBulkMaxIDs      = 500
)

// BulkService fans one operation out over many ids through the link
// registry. Per-id failures are reported, never returned.
type BulkService struct {
	links       ports.LinkService
	concurrency int
	maxIDs      int
	logger      *slog.Logger
}

func NewBulkService(links ports.LinkService, concurrency, maxIDs int, logger *slog.Logger) *BulkService {
	if concurrency <= 0 {
		concurrency = DefaultBulkConcurrency
	}
	if maxIDs <= 0 {
		maxIDs = DefaultBulkMaxIDs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkService{links: links, concurrency: concurrency, maxIDs: maxIDs, logger: logger}
}

// Apply validates the call as a whole, then runs op for every distinct id.
// Only a bad op, an empty id list or too many ids fail the whole call.
func (s *BulkService) Apply(ctx context.Context, ownerID, op string, ids []string, payload domain.BulkPayload) (*domain.BulkReport, error) {
	bulkOp, err := domain.ParseBulkOp(op)
	if err != nil {
		return nil, err
	}
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: ids must not be empty", domain.ErrInvalidInput)
	}
	if len(ids) > s.maxIDs {
		return nil, fmt.Errorf("%w: at most %d ids per call, got %d", domain.ErrInvalidInput, s.maxIDs, len(ids))
	}

	results := make([]domain.BulkItemResult, len(ids))
	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.applyOne(ctx, ownerID, bulkOp, id, payload)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	report := domain.NewBulkReport(bulkOp, results)
	s.logger.Info("bulk operation applied",
		"op", bulkOp, "owner_id", ownerID, "succeeded", len(report.Succeeded), "failed", len(report.Failed))
	return report, nil
}

func (s *BulkService) applyOne(ctx context.Context, ownerID string, op domain.BulkOp, id string, payload domain.BulkPayload) domain.BulkItemResult {
	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = domain.StorageError("bulk "+string(op), ctxErr)
	} else {
		switch op {
		case domain.BulkPause:
			_, err = s.links.SetStatus(ctx, id, ownerID, string(domain.StatusPaused))
		case domain.BulkResume, domain.BulkRestore:
			_, err = s.links.SetStatus(ctx, id, ownerID, string(domain.StatusActive))
		case domain.BulkDisable:
			_, err = s.links.SoftDelete(ctx, id, ownerID)
		case domain.BulkHardDelete:
			_, err = s.links.HardDelete(ctx, id, ownerID)
		case domain.BulkAddTags:
			if err = requireTags(payload); err == nil {
				_, err = s.links.AddTags(ctx, id, ownerID, payload.Tags)
			}
		case domain.BulkRemoveTags:
			if err = requireTags(payload); err == nil {
				_, err = s.links.RemoveTags(ctx, id, ownerID, payload.Tags)
			}
		case domain.BulkMoveToFolder:
			_, err = s.links.MoveToFolder(ctx, id, ownerID, payload.FolderID)
		}
	}

	if err != nil {
		metrics.BulkItems.WithLabelValues(string(op), "failed").Inc()
		return domain.BulkItemResult{ID: id, Kind: domain.KindOf(err), Reason: err.Error()}
	}
	metrics.BulkItems.WithLabelValues(string(op), "succeeded").Inc()
	return domain.BulkItemResult{ID: id, OK: true}
}

// requireTags rejects tag payloads that normalize to nothing.
func requireTags(payload domain.BulkPayload) error {
	if len(domain.NormalizeTags(payload.Tags)) == 0 {
		return fmt.Errorf("%w: payload has no valid tags", domain.ErrInvalidTags)
	}
	return nil
}

// dedupeIDs trims ids and drops blanks and repeats, keeping first-seen order.
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var _ ports.BulkService = (*BulkService)(nil)
