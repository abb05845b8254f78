package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	_ "modernc.org/sqlite"                               // Local SQLite driver

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// One connection serializes writers and keeps ":memory:" databases
		// shared across the pool.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		owner_id TEXT NOT NULL DEFAULT '',
		long_url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		tags TEXT NOT NULL DEFAULT '[]',
		folder_id TEXT,
		clicks INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner ON links(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_links_folder ON links(folder_id);

	CREATE TABLE IF NOT EXISTS click_aggregates (
		link_id TEXT NOT NULL,
		day TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		desktop INTEGER NOT NULL DEFAULT 0,
		mobile INTEGER NOT NULL DEFAULT 0,
		tablet INTEGER NOT NULL DEFAULT 0,
		bot INTEGER NOT NULL DEFAULT 0,
		other INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (link_id, day)
	);

	CREATE TABLE IF NOT EXISTS click_aggregate_labels (
		link_id TEXT NOT NULL,
		day TEXT NOT NULL,
		dimension TEXT NOT NULL,
		label TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (link_id, day, dimension, label)
	);
	`
	_, err := db.Exec(query)
	return err
}

const linkColumns = `id, slug, owner_id, long_url, title, status, tags, folder_id, clicks, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanLink(s scanner) (*domain.Link, error) {
	var (
		l                    domain.Link
		status, tagsJSON     string
		folderID, deletedAt  sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&l.ID, &l.Slug, &l.OwnerID, &l.LongURL, &l.Title, &status, &tagsJSON,
		&folderID, &l.Clicks, &createdAt, &updatedAt, &deletedAt); err != nil {
		return nil, err
	}
	l.Status = domain.LinkStatus(status)
	l.Tags = []string{}
	_ = json.Unmarshal([]byte(tagsJSON), &l.Tags)
	if folderID.Valid {
		l.FolderID = &folderID.String
	}
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		l.DeletedAt = &t
	}
	return &l, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	query := `INSERT INTO links (` + linkColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	tagsJSON, err := marshalTags(link.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, link.ID, link.Slug, link.OwnerID, link.LongURL, link.Title,
		string(link.Status), tagsJSON, nullString(link.FolderID), link.Clicks,
		formatTime(link.CreatedAt), formatTime(link.UpdatedAt), nullTime(link.DeletedAt))
	if isUniqueViolation(err) {
		return domain.ErrSlugTaken
	}
	return domain.StorageError("insert link", err)
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id)
	return scanOne(row, "get link")
}

func (r *SQLiteRepository) GetActiveBySlug(ctx context.Context, slug string) (*domain.Link, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE slug = ? AND status = ?`,
		slug, string(domain.StatusActive))
	return scanOne(row, "resolve slug")
}

func scanOne(row *sql.Row, op string) (*domain.Link, error) {
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.StorageError(op, err)
	}
	return link, nil
}

func (r *SQLiteRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM links WHERE slug = ? LIMIT 1`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageError("check slug", err)
	}
	return true, nil
}

// Mutate performs a read-modify-write inside one transaction. The clicks
// column is never written here, so concurrent IncrementClicks calls are
// not lost.
func (r *SQLiteRepository) Mutate(ctx context.Context, id string, fn func(*domain.Link) error) (*domain.Link, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageError("begin mutate", err)
	}
	defer tx.Rollback()

	link, err := scanOne(tx.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id), "load link")
	if err != nil {
		return nil, err
	}
	if err := fn(link); err != nil {
		return nil, err
	}

	tagsJSON, err := marshalTags(link.Tags)
	if err != nil {
		return nil, err
	}
	query := `UPDATE links SET long_url = ?, title = ?, status = ?, tags = ?, folder_id = ?, updated_at = ?, deleted_at = ?
			  WHERE id = ?`
	if _, err := tx.ExecContext(ctx, query, link.LongURL, link.Title, string(link.Status), tagsJSON,
		nullString(link.FolderID), formatTime(link.UpdatedAt), nullTime(link.DeletedAt), id); err != nil {
		return nil, domain.StorageError("update link", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.StorageError("commit mutate", err)
	}
	return link, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, id string, check func(*domain.Link) error) (*domain.Link, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StorageError("begin remove", err)
	}
	defer tx.Rollback()

	link, err := scanOne(tx.QueryRowContext(ctx, `SELECT `+linkColumns+` FROM links WHERE id = ?`, id), "load link")
	if err != nil {
		return nil, err
	}
	if check != nil {
		if err := check(link); err != nil {
			return nil, err
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, id); err != nil {
		return nil, domain.StorageError("delete link", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, domain.StorageError("commit remove", err)
	}
	return link, nil
}

func (r *SQLiteRepository) IncrementClicks(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE links SET clicks = clicks + 1 WHERE id = ?`, id)
	if err != nil {
		return domain.StorageError("increment clicks", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func buildFilter(ownerID string, f domain.LinkFilter) (string, []any) {
	where := ` WHERE owner_id = ?`
	args := []any{ownerID}

	if f.Status != "" {
		where += " AND status = ?"
		args = append(args, string(f.Status))
	}
	if f.Tag != "" {
		where += " AND EXISTS (SELECT 1 FROM json_each(links.tags) WHERE value = ?)"
		args = append(args, strings.ToLower(strings.TrimSpace(f.Tag)))
	}
	if f.Unfiled {
		where += " AND folder_id IS NULL"
	} else if f.FolderID != "" {
		where += " AND folder_id = ?"
		args = append(args, f.FolderID)
	}
	if f.Search != "" {
		where += " AND (title LIKE ? OR long_url LIKE ? OR slug LIKE ?)"
		like := "%" + f.Search + "%"
		args = append(args, like, like, like)
	}
	return where, args
}

func (r *SQLiteRepository) List(ctx context.Context, ownerID string, filter domain.LinkFilter) ([]domain.Link, error) {
	where, args := buildFilter(ownerID, filter)
	query := `SELECT ` + linkColumns + ` FROM links` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list links", err)
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, domain.StorageError("scan link", err)
		}
		links = append(links, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("list links", err)
	}
	return links, nil
}

func (r *SQLiteRepository) Count(ctx context.Context, ownerID string, filter domain.LinkFilter) (int64, error) {
	where, args := buildFilter(ownerID, filter)

	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM links`+where, args...).Scan(&count); err != nil {
		return 0, domain.StorageError("count links", err)
	}
	return count, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at, id`)
	if err != nil {
		return nil, domain.StorageError("dump links", err)
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, domain.StorageError("scan link", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	return string(b), err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Ensure interface compliance
var (
	_ ports.LinkRepository   = (*SQLiteRepository)(nil)
	_ ports.FolderRepository = (*SQLiteRepository)(nil)
)
