package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	insertAlertSQL = `INSERT INTO alerts (
        triggered_at,
        side,
        change_pct,
        old_price,
        new_price,
        trader
    ) VALUES (
        $1,$2,$3,$4,$5,$6
    )
    RETURNING id, triggered_at, side, change_pct, old_price, new_price, trader, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        triggered_at,
        side,
        change_pct,
        old_price,
        new_price,
        trader,
        created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	deleteAlertsBeforeSQL = `DELETE FROM alerts WHERE created_at < $1;`
)

// AlertRecord is one emitted alert kept for auditing.
type AlertRecord struct {
	ID          int64
	TriggeredAt time.Time
	Side        string
	ChangePct   decimal.Decimal
	OldPrice    decimal.Decimal
	NewPrice    decimal.Decimal
	Trader      *string
	CreatedAt   time.Time
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error
}

// Store provides Postgres-backed alert auditing.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		alert.TriggeredAt,
		alert.Side,
		alert.ChangePct.String(),
		alert.OldPrice.String(),
		alert.NewPrice.String(),
		alert.Trader,
	)

	rec, err := scanAlert(row)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", err)
	}
	return rec, nil
}

// ListRecentAlerts lists the most recent alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		rec, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

// DeleteAlertsBefore deletes historical alerts.
func (s *Store) DeleteAlertsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAlertsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete alerts before: %w", execErr)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (AlertRecord, error) {
	var (
		rec       AlertRecord
		changeStr string
		oldStr    string
		newStr    string
	)
	if err := row.Scan(
		&rec.ID,
		&rec.TriggeredAt,
		&rec.Side,
		&changeStr,
		&oldStr,
		&newStr,
		&rec.Trader,
		&rec.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	var err error
	if rec.ChangePct, err = decimal.NewFromString(changeStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse change pct: %w", err)
	}
	if rec.OldPrice, err = decimal.NewFromString(oldStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse old price: %w", err)
	}
	if rec.NewPrice, err = decimal.NewFromString(newStr); err != nil {
		return AlertRecord{}, fmt.Errorf("parse new price: %w", err)
	}
	return rec, nil
}

var _ AlertStore = (*Store)(nil)
