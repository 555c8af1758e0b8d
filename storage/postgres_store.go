package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"pricehound/models"
)

// PostgresStore persists tracking data in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS tracked_items (
			user_id    TEXT        NOT NULL,
			url        TEXT        NOT NULL,
			chat_id    TEXT        NOT NULL DEFAULT '',
			email      TEXT        NOT NULL DEFAULT '',
			name       TEXT        NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, url)
		);

		CREATE TABLE IF NOT EXISTS price_samples (
			id          BIGSERIAL PRIMARY KEY,
			user_id     TEXT             NOT NULL,
			url         TEXT             NOT NULL,
			date        VARCHAR(10)      NOT NULL,
			time        VARCHAR(8)       NOT NULL,
			price       DOUBLE PRECISION NOT NULL,
			title       TEXT             NOT NULL DEFAULT '',
			recorded_at TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_price_samples_item ON price_samples(user_id, url, id);
	`)
	return err
}

func (ps *PostgresStore) RegisterTrackedItem(ctx context.Context, item *models.TrackedItem) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO tracked_items (user_id, url, chat_id, email, name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, url) DO UPDATE
		SET chat_id = EXCLUDED.chat_id, email = EXCLUDED.email, name = EXCLUDED.name
	`, item.SubscriberID, item.URL, item.ChatID, item.Email, item.DisplayName, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: register %s: %w", item.Key(), err)
	}
	return nil
}

func (ps *PostgresStore) UnregisterTrackedItem(ctx context.Context, subscriberID, url string) error {
	res, err := ps.db.ExecContext(ctx,
		`DELETE FROM tracked_items WHERE user_id = $1 AND url = $2`, subscriberID, url)
	if err != nil {
		return fmt.Errorf("postgres: unregister: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStore) TrackedItems(ctx context.Context) ([]*models.TrackedItem, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT user_id, url, chat_id, email, name, created_at
		FROM tracked_items
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("postgres: tracked items: %w", err)
	}
	defer rows.Close()

	var items []*models.TrackedItem
	for rows.Next() {
		it := &models.TrackedItem{}
		if err := rows.Scan(&it.SubscriberID, &it.URL, &it.ChatID, &it.Email, &it.DisplayName, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (ps *PostgresStore) AppendSample(ctx context.Context, s *models.PriceSample) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO price_samples (user_id, url, date, time, price, title, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.SubscriberID, s.URL, s.Date(), s.Clock(), s.Price, s.Title, s.Timestamp)
	if err != nil {
		return fmt.Errorf("postgres: append sample: %w", err)
	}
	return nil
}

const sampleColumns = `user_id, url, price, title, recorded_at`

func scanSample(row interface{ Scan(...any) error }) (*models.PriceSample, error) {
	s := &models.PriceSample{}
	if err := row.Scan(&s.SubscriberID, &s.URL, &s.Price, &s.Title, &s.Timestamp); err != nil {
		return nil, err
	}
	return s, nil
}

func (ps *PostgresStore) LastSample(ctx context.Context, subscriberID, url string) (*models.PriceSample, error) {
	row := ps.db.QueryRowContext(ctx, `
		SELECT `+sampleColumns+`
		FROM price_samples
		WHERE user_id = $1 AND url = $2
		ORDER BY id DESC
		LIMIT 1
	`, subscriberID, url)

	s, err := scanSample(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: last sample: %w", err)
	}
	return s, nil
}

func (ps *PostgresStore) Samples(ctx context.Context, subscriberID, url string) ([]*models.PriceSample, error) {
	rows, err := ps.db.QueryContext(ctx, `
		SELECT `+sampleColumns+`
		FROM price_samples
		WHERE user_id = $1 AND url = $2
		ORDER BY id
	`, subscriberID, url)
	if err != nil {
		return nil, fmt.Errorf("postgres: samples: %w", err)
	}
	defer rows.Close()

	var samples []*models.PriceSample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
