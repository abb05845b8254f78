package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/wadjakorntonsri/shortlink-analytics/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink-analytics/pkg/ports"
)

// DefaultMaxLabels caps distinct labels per bucket and dimension.
const DefaultMaxLabels = 1000

// AggregateStore keeps click buckets in the click_aggregates tables. Device
// counts are fixed columns; country and referrer counts are label rows.
type AggregateStore struct {
	db        *sql.DB
	maxLabels int
}

// NewAggregateStore shares the repository's connection pool.
func (r *SQLiteRepository) NewAggregateStore(maxLabels int) *AggregateStore {
	if maxLabels <= 0 {
		maxLabels = DefaultMaxLabels
	}
	return &AggregateStore{db: r.db, maxLabels: maxLabels}
}

// deviceColumn maps a device onto its whitelisted column name.
func deviceColumn(d domain.Device) string {
	if !d.Valid() {
		return string(domain.DeviceOther)
	}
	return string(d)
}

// Record applies the click in a single transaction: either the total and
// every dimension move together or nothing does.
func (s *AggregateStore) Record(ctx context.Context, linkID string, click domain.ClassifiedClick) error {
	day := click.Day.Format(domain.DayLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin record", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO click_aggregates (link_id, day) VALUES (?, ?) ON CONFLICT (link_id, day) DO NOTHING`,
		linkID, day); err != nil {
		return domain.StorageError("create bucket", err)
	}

	col := deviceColumn(click.Device)
	if _, err := tx.ExecContext(ctx,
		`UPDATE click_aggregates SET total = total + 1, `+col+` = `+col+` + 1 WHERE link_id = ? AND day = ?`,
		linkID, day); err != nil {
		return domain.StorageError("increment bucket", err)
	}

	for _, dim := range []domain.Dimension{domain.DimensionCountry, domain.DimensionReferrer} {
		label, err := s.admitLabel(ctx, tx, linkID, day, dim, click.Label(dim))
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO click_aggregate_labels (link_id, day, dimension, label, count) VALUES (?, ?, ?, ?, 1)
			ON CONFLICT (link_id, day, dimension, label) DO UPDATE SET count = count + 1`,
			linkID, day, string(dim), label); err != nil {
			return domain.StorageError("increment label", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit record", err)
	}
	return nil
}

// admitLabel returns label, or the overflow label once the bucket already
// holds maxLabels distinct labels for dim.
func (s *AggregateStore) admitLabel(ctx context.Context, tx *sql.Tx, linkID, day string, dim domain.Dimension, label string) (string, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM click_aggregate_labels WHERE link_id = ? AND day = ? AND dimension = ? AND label = ?`,
		linkID, day, string(dim), label).Scan(&one)
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", domain.StorageError("lookup label", err)
	}

	var distinct int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM click_aggregate_labels WHERE link_id = ? AND day = ? AND dimension = ? AND label <> ?`,
		linkID, day, string(dim), domain.OverflowLabel).Scan(&distinct); err != nil {
		return "", domain.StorageError("count labels", err)
	}
	if distinct >= s.maxLabels {
		return domain.OverflowLabel, nil
	}
	return label, nil
}

func (s *AggregateStore) RangeTotals(ctx context.Context, linkID string, start, end time.Time) ([]domain.DayTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day, total FROM click_aggregates WHERE link_id = ? AND day BETWEEN ? AND ? ORDER BY day`,
		linkID, start.Format(domain.DayLayout), end.Format(domain.DayLayout))
	if err != nil {
		return nil, domain.StorageError("range totals", err)
	}
	defer rows.Close()

	totals := []domain.DayTotal{}
	for rows.Next() {
		var (
			day string
			dt  domain.DayTotal
		)
		if err := rows.Scan(&day, &dt.Total); err != nil {
			return nil, domain.StorageError("scan totals", err)
		}
		if dt.Day, err = time.Parse(domain.DayLayout, day); err != nil {
			return nil, domain.StorageError("parse bucket day", err)
		}
		totals = append(totals, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("range totals", err)
	}
	return totals, nil
}

func (s *AggregateStore) RangeBreakdown(ctx context.Context, linkID string, start, end time.Time, dim domain.Dimension, limit int) ([]domain.LabelCount, error) {
	from, to := start.Format(domain.DayLayout), end.Format(domain.DayLayout)

	if dim == domain.DimensionDevice {
		var d, m, t, b, o int64
		err := s.db.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(desktop), 0), COALESCE(SUM(mobile), 0), COALESCE(SUM(tablet), 0),
				COALESCE(SUM(bot), 0), COALESCE(SUM(other), 0)
			FROM click_aggregates WHERE link_id = ? AND day BETWEEN ? AND ?`,
			linkID, from, to).Scan(&d, &m, &t, &b, &o)
		if err != nil {
			return nil, domain.StorageError("device breakdown", err)
		}
		return domain.RankLabels(map[string]int64{
			string(domain.DeviceDesktop): d,
			string(domain.DeviceMobile):  m,
			string(domain.DeviceTablet):  t,
			string(domain.DeviceBot):     b,
			string(domain.DeviceOther):   o,
		}, limit), nil
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, SUM(count) AS c FROM click_aggregate_labels
		WHERE link_id = ? AND dimension = ? AND day BETWEEN ? AND ?
		GROUP BY label ORDER BY c DESC, label ASC LIMIT ?`,
		linkID, string(dim), from, to, limit)
	if err != nil {
		return nil, domain.StorageError("label breakdown", err)
	}
	defer rows.Close()

	out := []domain.LabelCount{}
	for rows.Next() {
		var lc domain.LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count); err != nil {
			return nil, domain.StorageError("scan breakdown", err)
		}
		out = append(out, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("label breakdown", err)
	}
	return out, nil
}

func (s *AggregateStore) PurgeLink(ctx context.Context, linkID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin purge", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM click_aggregate_labels WHERE link_id = ?`, linkID); err != nil {
		return domain.StorageError("purge labels", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM click_aggregates WHERE link_id = ?`, linkID); err != nil {
		return domain.StorageError("purge buckets", err)
	}
	return domain.StorageError("commit purge", tx.Commit())
}

func (s *AggregateStore) LinkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT link_id FROM click_aggregates ORDER BY link_id`)
	if err != nil {
		return nil, domain.StorageError("list aggregate links", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StorageError("scan aggregate link", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

var _ ports.AggregateStore = (*AggregateStore)(nil)
