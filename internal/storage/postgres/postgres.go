package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// PostgresStorage — Postgres реализация FieldReportsStorage
type PostgresStorage struct {
	pool           *pgxpool.Pool
	maxRecordBytes int
}

// New подключается к БД и проверяет соединение
func New(ctx context.Context, databaseURL string, maxRecordBytes int) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	return &PostgresStorage{pool: pool, maxRecordBytes: maxRecordBytes}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}
