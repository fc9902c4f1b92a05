// Package sequence assigns yearly, human-readable document numbers of the
// form PREFIX-YYYY-0001. Proposed numbers are only made safe by the unique
// index on the number column; callers retry propose+insert as one unit.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// RequisitionPrefix and its zero-padded sequence width.
	RequisitionPrefix = "REQ"
	RequisitionWidth  = 4
	// PurchaseOrderPrefix and its zero-padded sequence width.
	PurchaseOrderPrefix = "PO"
	PurchaseOrderWidth  = 5

	// maxAttempts bounds the propose+insert retry loop.
	maxAttempts = 3
)

// ErrExhausted is returned when retries keep colliding on the number column.
var ErrExhausted = errors.New("sequence: retries exhausted")

// MaxLookup reports the highest sequence already issued for a prefix/year,
// or ok=false when no document exists yet for that year.
type MaxLookup interface {
	MaxSequence(ctx context.Context, prefix string, year int) (int, bool, error)
}

// Format renders a document number with a fixed zero-padded width.
func Format(prefix string, year, seq, width int) string {
	return fmt.Sprintf("%s-%d-%0*d", prefix, year, width, seq)
}

// Parse extracts the numeric suffix from a formatted number.
func Parse(number string) (int, error) {
	idx := strings.LastIndex(number, "-")
	if idx < 0 || idx == len(number)-1 {
		return 0, fmt.Errorf("sequence: malformed number %q", number)
	}
	seq, err := strconv.Atoi(number[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("sequence: malformed number %q: %w", number, err)
	}
	return seq, nil
}

// Next proposes the next number for prefix/year. The result is not reserved;
// the insert that uses it must be guarded by the unique constraint.
func Next(ctx context.Context, lookup MaxLookup, prefix string, year, width int) (string, error) {
	max, ok, err := lookup.MaxSequence(ctx, prefix, year)
	if err != nil {
		return "", err
	}
	if !ok {
		return Format(prefix, year, 1, width), nil
	}
	return Format(prefix, year, max+1, width), nil
}

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Retry runs fn, which must propose a fresh number and attempt the insert,
// retrying on unique violations up to the attempt budget. Sequence gaps from
// failed attempts are acceptable; duplicate numbers are not.
func Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrExhausted, err)
}
