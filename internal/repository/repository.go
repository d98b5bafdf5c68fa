// Package repository implements all database queries for the mentor booking
// system. It uses pgx directly (no ORM).
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories query through.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when a slot already has an active booking. It is
// raised by the partial unique index on bookings(slot_id).
var ErrSlotTaken = errors.New("slot already booked")

// ErrMissingReference is returned when an insert references a row that does
// not exist (foreign key violation).
var ErrMissingReference = errors.New("referenced row does not exist")

const defaultQueryTimeout = 10 * time.Second

// PostgreSQL error codes.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// bounded applies the repository's query timeout to ctx.
func bounded(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// deref returns the pointed-to string or "" for NULL columns.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
