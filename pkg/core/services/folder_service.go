package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

const maxFolderName = 64

type FolderService struct {
	repo   ports.FolderRepository
	logger *slog.Logger
}

func NewFolderService(repo ports.FolderRepository, logger *slog.Logger) *FolderService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FolderService{repo: repo, logger: logger}
}

func (s *FolderService) CreateFolder(ctx context.Context, ownerID, name string) (*domain.Folder, error) {
	if ownerID == "" {
		return nil, domain.ErrNotOwned
	}
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxFolderName {
		return nil, fmt.Errorf("%w: folder name must be 1-%d characters", domain.ErrInvalidInput, maxFolderName)
	}

	folder := &domain.Folder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *FolderService) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	return s.repo.ListFolders(ctx, ownerID)
}

// DeleteFolder removes an owned folder; its links become unfiled.
func (s *FolderService) DeleteFolder(ctx context.Context, ownerID, id string) error {
	if err := s.EnsureOwned(ctx, ownerID, id); err != nil {
		return err
	}
	unfiled, err := s.repo.DeleteFolder(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("folder deleted", "folder_id", id, "unfiled_links", unfiled)
	return nil
}

// EnsureOwned fails with ErrFolderNotFound for unknown folders and
// ErrNotOwned for folders of another owner.
func (s *FolderService) EnsureOwned(ctx context.Context, ownerID, folderID string) error {
	f, err := s.repo.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if ownerID == "" || f.OwnerID != ownerID {
		return domain.ErrNotOwned
	}
	return nil
}

var _ ports.FolderService = (*FolderService)(nil)
