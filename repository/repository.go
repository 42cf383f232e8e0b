// Package repository implements every service store on Postgres.
package repository

import (
	"context"
	"database/sql"
	stderrors "errors"

	"triaright-platform/errors"
	"triaright-platform/logger"

	"github.com/lib/pq"
)

// Store is the Postgres-backed persistence shared by all services.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// mapErr translates driver errors into error kinds. what names the entity
// for NotFound messages.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.E(errors.NotFound, what+" not found")
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errors.E(errors.Conflict, what+" already exists", err)
	}
	logger.Error("[DB] %s query failed: %v", what, err)
	return errors.E(errors.Internal, "database error", err)
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.E(errors.Internal, "error starting transaction", err)
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.E(errors.Internal, "error committing transaction", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

type scanner interface {
	Scan(dest ...interface{}) error
}
