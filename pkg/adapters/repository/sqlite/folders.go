package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
)

// --- Folder Repository Implementation ---

const folderSelect = `SELECT f.id, f.owner_id, f.name, f.created_at,
		(SELECT COUNT(*) FROM links l WHERE l.folder_id = f.id) AS link_count
	FROM folders f`

func scanFolder(s scanner) (*domain.Folder, error) {
	var (
		f         domain.Folder
		createdAt string
	)
	if err := s.Scan(&f.ID, &f.OwnerID, &f.Name, &createdAt, &f.LinkCount); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	return &f, nil
}

func (r *SQLiteRepository) CreateFolder(ctx context.Context, folder *domain.Folder) error {
	query := `INSERT INTO folders (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, folder.ID, folder.OwnerID, folder.Name, formatTime(folder.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: folder %q already exists", domain.ErrConflict, folder.Name)
	}
	return domain.StorageError("insert folder", err)
}

func (r *SQLiteRepository) GetFolder(ctx context.Context, id string) (*domain.Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx, folderSelect+` WHERE f.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrFolderNotFound
	}
	if err != nil {
		return nil, domain.StorageError("get folder", err)
	}
	return f, nil
}

func (r *SQLiteRepository) ListFolders(ctx context.Context, ownerID string) ([]domain.Folder, error) {
	rows, err := r.db.QueryContext(ctx, folderSelect+` WHERE f.owner_id = ? ORDER BY f.name`, ownerID)
	if err != nil {
		return nil, domain.StorageError("list folders", err)
	}
	defer rows.Close()

	folders := []domain.Folder{}
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, domain.StorageError("scan folder", err)
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

// DeleteFolder unfiles the folder's links and removes it in one transaction.
func (r *SQLiteRepository) DeleteFolder(ctx context.Context, id string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, domain.StorageError("begin delete folder", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE links SET folder_id = NULL, updated_at = ? WHERE folder_id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return 0, domain.StorageError("unfile links", err)
	}
	unfiled, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id)
	if err != nil {
		return 0, domain.StorageError("delete folder", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, domain.ErrFolderNotFound
	}
	if err := tx.Commit(); err != nil {
		return 0, domain.StorageError("commit delete folder", err)
	}
	return unfiled, nil
}
