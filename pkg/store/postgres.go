package store

import (
	"context"
	"fmt"

	"github.com/grwebhook/grwebhook/pkg/sale"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Writes records to a Postgres table with a unique (email, timestamp) constraint.
type Postgres struct {
	db    *pgxpool.Pool
	table string
}

func newDatabasePool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}

func NewPostgres(ctx context.Context, url string, table string) (*Postgres, error) {
	if table == "" {
		table = DefaultTable
	}

	db, err := newDatabasePool(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise database: %w", err)
	}

	return &Postgres{
		db:    db,
		table: table,
	}, nil
}

// Creates the record table if it does not exist yet.
func (postgres *Postgres) Migrate(ctx context.Context) error {
	table := pgx.Identifier{postgres.table}.Sanitize()
	_, err := postgres.db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS `+table+` (
		email text NOT NULL,
		timestamp bigint NOT NULL,
		value bigint NOT NULL,
		offer_code text NOT NULL,
		country text NOT NULL,
		refunded smallint NOT NULL,
		data jsonb NOT NULL,
		_ga text NOT NULL DEFAULT '',
		updated_at bigint NOT NULL,
		PRIMARY KEY (email, timestamp)
	);
	`)
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", postgres.table, err)
	}
	return nil
}

func (postgres *Postgres) Upsert(ctx context.Context, record *sale.Record) error {
	if err := validate(record); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	data := record.Data
	if data == nil {
		data = map[string]any{}
	}

	table := pgx.Identifier{postgres.table}.Sanitize()
	_, err := postgres.db.Exec(ctx, `
	INSERT INTO `+table+` (email, timestamp, value, offer_code, country, refunded, data, _ga, updated_at) VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (email, timestamp) DO UPDATE SET
		value = EXCLUDED.value,
		offer_code = EXCLUDED.offer_code,
		country = EXCLUDED.country,
		refunded = EXCLUDED.refunded,
		data = EXCLUDED.data,
		_ga = EXCLUDED._ga,
		updated_at = EXCLUDED.updated_at;
	`, record.Email, record.Timestamp, record.Value, record.OfferCode, record.Country, record.Refunded, data, record.GA, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	return nil
}

// Reads back the record for a sale. Nil is returned if no record is found.
func (postgres *Postgres) Get(ctx context.Context, email string, timestamp int64) (*sale.Record, error) {
	table := pgx.Identifier{postgres.table}.Sanitize()
	row := postgres.db.QueryRow(ctx, `
	SELECT email, timestamp, value, offer_code, country, refunded, data, _ga, updated_at FROM `+table+`
	WHERE email = $1 AND timestamp = $2;
	`, email, timestamp)

	record := &sale.Record{}
	err := row.Scan(&record.Email, &record.Timestamp, &record.Value, &record.OfferCode, &record.Country, &record.Refunded, &record.Data, &record.GA, &record.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (postgres *Postgres) Close() {
	postgres.db.Close()
}
