package snapshot

import (
	"io"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cemtrack/cemtrack/internal/balance"
	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

type memoryStore struct {
	rows map[string]DayBalance
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]DayBalance{}}
}

func storeKey(date time.Time, vehicle string) string {
	return date.Format(shared.DateLayout) + "|" + vehicle
}

func (m *memoryStore) Upsert(_ context.Context, b DayBalance) error {
	m.rows[storeKey(b.Date, b.VehicleNo)] = b
	return nil
}

func (m *memoryStore) Delete(_ context.Context, date time.Time, vehicleNo string) error {
	delete(m.rows, storeKey(date, vehicleNo))
	return nil
}

func (m *memoryStore) ListForDate(_ context.Context, date time.Time) ([]DayBalance, error) {
	var out []DayBalance
	for _, b := range m.rows {
		if b.Date.Equal(date) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryStore) LastDate(_ context.Context) (time.Time, bool, error) {
	var last time.Time
	for _, b := range m.rows {
		if b.Date.After(last) {
			last = b.Date
		}
	}
	return last, !last.IsZero(), nil
}

type dayActivity struct {
	sums map[string]map[string]product.Quantities
}

func newDayActivity() *dayActivity {
	return &dayActivity{sums: map[string]map[string]product.Quantities{}}
}

func (a *dayActivity) add(date time.Time, vehicle string, q product.Quantities) {
	key := date.Format(shared.DateLayout)
	if a.sums[key] == nil {
		a.sums[key] = map[string]product.Quantities{}
	}
	a.sums[key][vehicle] = a.sums[key][vehicle].Add(q)
}

func (a *dayActivity) VehicleDaySums(_ context.Context, date time.Time) ([]billing.VehicleDaySum, error) {
	var out []billing.VehicleDaySum
	for v, q := range a.sums[date.Format(shared.DateLayout)] {
		out = append(out, billing.VehicleDaySum{VehicleNo: v, Qty: q})
	}
	return out, nil
}

type deliveryDayActivity struct {
	inner *dayActivity
}

func (a deliveryDayActivity) VehicleDaySums(_ context.Context, date time.Time) ([]unloading.VehicleDaySum, error) {
	var out []unloading.VehicleDaySum
	for v, q := range a.inner.sums[date.Format(shared.DateLayout)] {
		out = append(out, unloading.VehicleDaySum{VehicleNo: v, Qty: q})
	}
	return out, nil
}

type fixedSeed struct {
	openings []balance.VehicleOpening
}

func (f fixedSeed) ListVehicleOpenings(context.Context, string) ([]balance.VehicleOpening, error) {
	return f.openings, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nov(d int) time.Time {
	return time.Date(2025, time.November, d, 0, 0, 0, 0, time.UTC)
}

func TestRebuildFoldsForwardFromEpoch(t *testing.T) {
	store := newMemoryStore()
	billed := newDayActivity()
	delivered := newDayActivity()
	billed.add(nov(1), "TRK001", product.Quantities{PPC: 10})
	delivered.add(nov(2), "TRK001", product.Quantities{PPC: 4})
	delivered.add(nov(3), "TRK001", product.Quantities{PPC: 6})

	b := NewBuilder(store, billed, deliveryDayActivity{delivered}, fixedSeed{}, testLogger())
	require.NoError(t, b.Rebuild(context.Background(), nov(4)))

	day1, ok := store.rows[storeKey(nov(1), "TRK001")]
	require.True(t, ok)
	require.InDelta(t, 10, day1.Qty.PPC, product.Epsilon)

	day2, ok := store.rows[storeKey(nov(2), "TRK001")]
	require.True(t, ok)
	require.InDelta(t, 6, day2.Qty.PPC, product.Epsilon)

	// Fully drained on the 3rd: no row kept from then on.
	_, ok = store.rows[storeKey(nov(3), "TRK001")]
	require.False(t, ok)
	_, ok = store.rows[storeKey(nov(4), "TRK001")]
	require.False(t, ok)
}

func TestRebuildClampsPerType(t *testing.T) {
	store := newMemoryStore()
	billed := newDayActivity()
	delivered := newDayActivity()
	billed.add(nov(1), "TRK001", product.Quantities{PPC: 5, OPC: 3})
	// Over-delivery of PPC on day 2 must not eat into OPC.
	delivered.add(nov(2), "TRK001", product.Quantities{PPC: 9})

	b := NewBuilder(store, billed, deliveryDayActivity{delivered}, fixedSeed{}, testLogger())
	require.NoError(t, b.Rebuild(context.Background(), nov(2)))

	day2 := store.rows[storeKey(nov(2), "TRK001")]
	require.Zero(t, day2.Qty.PPC)
	require.InDelta(t, 3, day2.Qty.OPC, product.Epsilon)
}

func TestRebuildSeedsEpochFromOpenings(t *testing.T) {
	store := newMemoryStore()
	seed := fixedSeed{openings: []balance.VehicleOpening{
		{VehicleNo: "TRK009", Month: shared.Epoch, Qty: product.Quantities{Premium: 2}},
	}}
	b := NewBuilder(store, newDayActivity(), deliveryDayActivity{newDayActivity()}, seed, testLogger())
	require.NoError(t, b.Rebuild(context.Background(), nov(1)))

	day1, ok := store.rows[storeKey(nov(1), "TRK009")]
	require.True(t, ok)
	require.InDelta(t, 2, day1.Qty.Premium, product.Epsilon)
}

func TestRebuildIdempotent(t *testing.T) {
	store := newMemoryStore()
	billed := newDayActivity()
	delivered := newDayActivity()
	billed.add(nov(1), "TRK001", product.Quantities{PPC: 10})
	delivered.add(nov(2), "TRK001", product.Quantities{PPC: 4})

	b := NewBuilder(store, billed, deliveryDayActivity{delivered}, fixedSeed{}, testLogger())
	require.NoError(t, b.Rebuild(context.Background(), nov(3)))
	first := map[string]DayBalance{}
	for k, v := range store.rows {
		first[k] = v
	}

	// Re-running must overwrite, not double-apply the deltas.
	require.NoError(t, b.Rebuild(context.Background(), nov(3)))
	require.Equal(t, len(first), len(store.rows))
	for k, v := range first {
		require.InDelta(t, v.Qty.PPC, store.rows[k].Qty.PPC, product.Epsilon, "key %s", k)
	}
}

func TestRebuildResumesFromLastDay(t *testing.T) {
	store := newMemoryStore()
	billed := newDayActivity()
	delivered := newDayActivity()
	billed.add(nov(1), "TRK001", product.Quantities{PPC: 10})

	b := NewBuilder(store, billed, deliveryDayActivity{delivered}, fixedSeed{}, testLogger())
	require.NoError(t, b.Rebuild(context.Background(), nov(2)))

	// New events on day 3 arrive; the next run extends the fold.
	delivered.add(nov(3), "TRK001", product.Quantities{PPC: 4})
	require.NoError(t, b.Rebuild(context.Background(), nov(3)))

	day3 := store.rows[storeKey(nov(3), "TRK001")]
	require.InDelta(t, 6, day3.Qty.PPC, product.Epsilon)
}

func TestRebuildRejectsPreEpochDate(t *testing.T) {
	b := NewBuilder(newMemoryStore(), newDayActivity(), deliveryDayActivity{newDayActivity()}, fixedSeed{}, testLogger())
	err := b.Rebuild(context.Background(), time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrDateBeforeEpoch)
}
