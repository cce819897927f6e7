package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/stockledger/internal/shared"
)

// PostgreSQL SQLSTATE codes the repositories care about.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// Classify maps raw driver errors onto the shared error kinds. Errors that
// already carry a kind, and pgx.ErrNoRows, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if shared.Kind(err) != "internal" || errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected:
			return fmt.Errorf("%w: concurrent update, re-read and retry: %w", shared.ErrConflict, err)
		case CodeForeignKeyViolation:
			return fmt.Errorf("%w: referenced record missing: %w", shared.ErrNotFound, err)
		}
	}
	return fmt.Errorf("%w: %w", shared.ErrPersistence, err)
}

// UniqueConstraint names the constraint behind a unique violation, or returns
// "" when err is not one.
func UniqueConstraint(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName
	}
	return ""
}
