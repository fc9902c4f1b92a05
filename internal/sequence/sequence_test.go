package sequence

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	max map[string]int
}

func seriesKey(prefix string, year int) string {
	return fmt.Sprintf("%s-%d", prefix, year)
}

func (f *fakeLookup) MaxSequence(ctx context.Context, prefix string, year int) (int, bool, error) {
	seq, ok := f.max[seriesKey(prefix, year)]
	return seq, ok, nil
}

func lookupWith(prefix string, year, seq int) *fakeLookup {
	return &fakeLookup{max: map[string]int{seriesKey(prefix, year): seq}}
}

func TestFormat(t *testing.T) {
	require.Equal(t, "REQ-2026-0007", Format(RequisitionPrefix, 2026, 7, RequisitionWidth))
	require.Equal(t, "PO-2026-00042", Format(PurchaseOrderPrefix, 2026, 42, PurchaseOrderWidth))
	// Sequences past the padding width keep counting instead of wrapping.
	require.Equal(t, "REQ-2026-10001", Format(RequisitionPrefix, 2026, 10001, RequisitionWidth))
}

func TestParse(t *testing.T) {
	seq, err := Parse("PO-2026-00042")
	require.NoError(t, err)
	require.Equal(t, 42, seq)

	_, err = Parse("garbage")
	require.Error(t, err)
	_, err = Parse("REQ-2026-")
	require.Error(t, err)
}

func TestNextStartsAtOne(t *testing.T) {
	next, err := Next(context.Background(), &fakeLookup{max: map[string]int{}}, RequisitionPrefix, 2026, RequisitionWidth)
	require.NoError(t, err)
	require.Equal(t, "REQ-2026-0001", next)
}

func TestNextIncrementsExistingMax(t *testing.T) {
	next, err := Next(context.Background(), lookupWith(PurchaseOrderPrefix, 2026, 118), PurchaseOrderPrefix, 2026, PurchaseOrderWidth)
	require.NoError(t, err)
	require.Equal(t, "PO-2026-00119", next)
}

func TestNextMonotonic(t *testing.T) {
	lookup := &fakeLookup{max: map[string]int{}}
	seen := map[string]bool{}
	prev := 0
	for i := 0; i < 25; i++ {
		number, err := Next(context.Background(), lookup, RequisitionPrefix, 2026, RequisitionWidth)
		require.NoError(t, err)
		require.False(t, seen[number], "duplicate number %s", number)
		seen[number] = true

		seq, err := Parse(number)
		require.NoError(t, err)
		require.Greater(t, seq, prev)
		prev = seq

		// Simulate the committed insert the caller performs.
		lookup.max[seriesKey(RequisitionPrefix, 2026)] = seq
	}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "purchase_orders_number_key"}
}

func TestRetryRecoversFromCollision(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return uniqueViolation()
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterBudget(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return uniqueViolation()
	})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, 3, calls)
}

func TestRetryStopsOnUnrelatedError(t *testing.T) {
	boom := errors.New("connection reset")
	calls := 0
	err := Retry(context.Background(), func(ctx context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, calls)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, IsUniqueViolation(uniqueViolation()))
	require.False(t, IsUniqueViolation(errors.New("other")))
	require.False(t, IsUniqueViolation(nil))
}
