// Package postgres implements link and click storage on top of PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

func linkExists(ctx context.Context, db *sqlx.DB, shortCode string) (bool, error) {
	const op = "adapter.repository.postgres.linkExists"
	const query = `SELECT EXISTS (SELECT 1 FROM links WHERE short_code = $1)`

	var exists bool

	if err := db.GetContext(ctx, &exists, query, shortCode); err != nil {
		return false, fmt.Errorf("%s: failed to check links table: %w", op, err)
	}

	return exists, nil
}
