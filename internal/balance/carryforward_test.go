package balance

import (
	"io"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/shared"
)

type memoryStore struct {
	vehicle  map[string]VehicleOpening
	dealer   map[string]DealerOpening
	monetary map[string]MonetaryOpening
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		vehicle:  map[string]VehicleOpening{},
		dealer:   map[string]DealerOpening{},
		monetary: map[string]MonetaryOpening{},
	}
}

func (m *memoryStore) GetVehicleOpening(_ context.Context, vehicleNo, month string) (VehicleOpening, error) {
	o, ok := m.vehicle[vehicleNo+"|"+month]
	if !ok {
		return VehicleOpening{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) InsertCarriedVehicleOpening(_ context.Context, o VehicleOpening) error {
	key := o.VehicleNo + "|" + o.Month
	if _, ok := m.vehicle[key]; ok {
		return nil
	}
	m.vehicle[key] = o
	return nil
}

func (m *memoryStore) UpsertManualVehicleOpening(_ context.Context, o VehicleOpening) error {
	o.Source = SourceManual
	o.Complete = true
	m.vehicle[o.VehicleNo+"|"+o.Month] = o
	return nil
}

func (m *memoryStore) InvalidateCarriedVehicleFrom(_ context.Context, vehicleNo, month string) error {
	for key, o := range m.vehicle {
		if o.VehicleNo == vehicleNo && o.Month >= month && o.Source == SourceCarried {
			delete(m.vehicle, key)
		}
	}
	return nil
}

func (m *memoryStore) ListVehicleOpenings(_ context.Context, month string) ([]VehicleOpening, error) {
	var out []VehicleOpening
	for _, o := range m.vehicle {
		if o.Month == month {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryStore) GetDealerOpening(_ context.Context, dealerKey, month string) (DealerOpening, error) {
	o, ok := m.dealer[dealerKey+"|"+month]
	if !ok {
		return DealerOpening{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) InsertCarriedDealerOpening(_ context.Context, o DealerOpening) error {
	key := o.DealerKey + "|" + o.Month
	if _, ok := m.dealer[key]; ok {
		return nil
	}
	m.dealer[key] = o
	return nil
}

func (m *memoryStore) UpsertManualDealerOpening(_ context.Context, o DealerOpening) error {
	o.Source = SourceManual
	o.Complete = true
	m.dealer[o.DealerKey+"|"+o.Month] = o
	return nil
}

func (m *memoryStore) InvalidateCarriedDealerFrom(_ context.Context, dealerKey, month string) error {
	for key, o := range m.dealer {
		if o.DealerKey == dealerKey && o.Month >= month && o.Source == SourceCarried {
			delete(m.dealer, key)
		}
	}
	return nil
}

func (m *memoryStore) ListDealerOpenings(_ context.Context, month string) ([]DealerOpening, error) {
	var out []DealerOpening
	for _, o := range m.dealer {
		if o.Month == month {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryStore) GetMonetaryOpening(_ context.Context, dealerCode, month string) (MonetaryOpening, error) {
	o, ok := m.monetary[dealerCode+"|"+month]
	if !ok {
		return MonetaryOpening{}, shared.ErrNotFound
	}
	return o, nil
}

func (m *memoryStore) InsertCarriedMonetaryOpening(_ context.Context, o MonetaryOpening) error {
	key := o.DealerCode + "|" + o.Month
	if _, ok := m.monetary[key]; ok {
		return nil
	}
	m.monetary[key] = o
	return nil
}

func (m *memoryStore) UpsertManualMonetaryOpening(_ context.Context, o MonetaryOpening) error {
	o.Source = SourceManual
	o.Complete = true
	m.monetary[o.DealerCode+"|"+o.Month] = o
	return nil
}

func (m *memoryStore) InvalidateCarriedMonetaryFrom(_ context.Context, dealerCode, month string) error {
	for key, o := range m.monetary {
		if o.DealerCode == dealerCode && o.Month >= month && o.Source == SourceCarried {
			delete(m.monetary, key)
		}
	}
	return nil
}

// monthlyActivity answers range sums keyed by (subject, month of range start).
type monthlyActivity struct {
	sums map[string]product.Quantities
}

func (a *monthlyActivity) SumForVehicleRange(_ context.Context, vehicleNo string, from, _ time.Time) (product.Quantities, error) {
	return a.sums[vehicleNo+"|"+shared.MonthOf(from)], nil
}

func (a *monthlyActivity) SumForDealerRange(_ context.Context, dealerKey string, _ bool, from, _ time.Time) (product.Quantities, error) {
	return a.sums[dealerKey+"|"+shared.MonthOf(from)], nil
}

type monthlyMoney struct {
	amounts map[string]float64
}

func (a *monthlyMoney) SalesValueForDealerMonth(_ context.Context, dealerCode string, from, _ time.Time) (float64, error) {
	return a.amounts[dealerCode+"|"+shared.MonthOf(from)], nil
}

func (a *monthlyMoney) CollectionsForDealerMonth(_ context.Context, dealerCode string, from, _ time.Time) (float64, error) {
	return a.amounts[dealerCode+"|"+shared.MonthOf(from)], nil
}

type monthPresence struct {
	months map[string]bool
}

func (p *monthPresence) HasEventsInRange(_ context.Context, from, _ time.Time) (bool, error) {
	return p.months[shared.MonthOf(from)], nil
}

func allPresent(months ...string) *monthPresence {
	p := &monthPresence{months: map[string]bool{}}
	for _, m := range months {
		p.months[m] = true
	}
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(store StorePort, billed, delivered *monthlyActivity, presence Presence) *Resolver {
	return NewResolver(ResolverConfig{
		Store:            store,
		BilledVehicle:    billed,
		DeliveredVehicle: delivered,
		BilledDealer:     billed,
		DeliveredDealer:  delivered,
		Sales:            &monthlyMoney{amounts: map[string]float64{}},
		Collections:      &monthlyMoney{amounts: map[string]float64{}},
		BillingPresence:  presence,
		DeliveryPresence: presence,
		Logger:           discardLogger(),
	})
}

func TestVehicleCarryForwardFromEpoch(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 10},
		"TRK001|2025-12": {PPC: 4},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 4},
		"TRK001|2025-12": {PPC: 7},
	}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11", "2025-12"))

	o, err := r.VehicleOpening(context.Background(), "TRK001", "2026-01")
	require.NoError(t, err)
	// Nov: 0 + 10 - 4 = 6. Dec: 6 + 4 - 7 = 3.
	require.InDelta(t, 3, o.Qty.PPC, product.Epsilon)
	require.Equal(t, SourceCarried, o.Source)
	require.True(t, o.Complete)

	// Both intermediate months were memoized.
	dec, err := store.GetVehicleOpening(context.Background(), "TRK001", "2025-12")
	require.NoError(t, err)
	require.InDelta(t, 6, dec.Qty.PPC, product.Epsilon)
}

func TestVehicleOpeningClampedAtZero(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 5},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 9},
	}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11"))

	o, err := r.VehicleOpening(context.Background(), "TRK001", "2025-12")
	require.NoError(t, err)
	require.Zero(t, o.Qty.PPC)
}

func TestManualAnchorStopsWalk(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.UpsertManualVehicleOpening(context.Background(), VehicleOpening{
		VehicleNo: "TRK001", Month: "2025-12", Qty: product.Quantities{PPC: 50},
	}))
	// November activity must not matter once December is anchored.
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 999},
		"TRK001|2025-12": {PPC: 2},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11", "2025-12"))

	o, err := r.VehicleOpening(context.Background(), "TRK001", "2026-01")
	require.NoError(t, err)
	require.InDelta(t, 52, o.Qty.PPC, product.Epsilon)
	require.True(t, o.Complete)
}

func TestMemoizedValueReused(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 10},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11"))

	first, err := r.VehicleOpening(context.Background(), "TRK001", "2025-12")
	require.NoError(t, err)
	require.InDelta(t, 10, first.Qty.PPC, product.Epsilon)

	// A later query must come from the memoized row, not a recomputation.
	billed.sums["TRK001|2025-11"] = product.Quantities{PPC: 777}
	second, err := r.VehicleOpening(context.Background(), "TRK001", "2025-12")
	require.NoError(t, err)
	require.InDelta(t, 10, second.Qty.PPC, product.Epsilon)
}

func TestMissingMonthMarksIncomplete(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 10},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{}}
	// December has no events anywhere in the system.
	r := newTestResolver(store, billed, delivered, allPresent("2025-11"))

	o, err := r.VehicleOpening(context.Background(), "TRK001", "2026-01")
	require.NoError(t, err)
	require.InDelta(t, 10, o.Qty.PPC, product.Epsilon)
	require.False(t, o.Complete)
}

func TestDealerOpeningNotClamped(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"DLR42|2025-11": {OPC: 3},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{
		"DLR42|2025-11": {OPC: 8},
	}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11"))

	o, err := r.DealerOpening(context.Background(), "DLR42", "Sharma Traders", false, "2025-12")
	require.NoError(t, err)
	require.InDelta(t, -5, o.Qty.OPC, product.Epsilon)
}

func TestMonetaryCarryForward(t *testing.T) {
	store := newMemoryStore()
	r := NewResolver(ResolverConfig{
		Store:            store,
		BilledVehicle:    &monthlyActivity{sums: map[string]product.Quantities{}},
		DeliveredVehicle: &monthlyActivity{sums: map[string]product.Quantities{}},
		BilledDealer:     &monthlyActivity{sums: map[string]product.Quantities{}},
		DeliveredDealer:  &monthlyActivity{sums: map[string]product.Quantities{}},
		Sales:            &monthlyMoney{amounts: map[string]float64{"DLR42|2025-11": 120000}},
		Collections:      &monthlyMoney{amounts: map[string]float64{"DLR42|2025-11": 45000}},
		BillingPresence:  allPresent("2025-11"),
		DeliveryPresence: allPresent("2025-11"),
		Logger:           discardLogger(),
	})

	o, err := r.MonetaryOpening(context.Background(), "DLR42", "Sharma Traders", "2025-12")
	require.NoError(t, err)
	require.InDelta(t, 75000, o.Amount, 0.001)
}

func TestBeforeEpochRejected(t *testing.T) {
	store := newMemoryStore()
	r := newTestResolver(store,
		&monthlyActivity{sums: map[string]product.Quantities{}},
		&monthlyActivity{sums: map[string]product.Quantities{}},
		allPresent())

	_, err := r.VehicleOpening(context.Background(), "TRK001", "2025-10")
	require.ErrorIs(t, err, shared.ErrBeforeEpoch)
}

func TestManualEntryInvalidatesDownstream(t *testing.T) {
	store := newMemoryStore()
	billed := &monthlyActivity{sums: map[string]product.Quantities{
		"TRK001|2025-11": {PPC: 10},
		"TRK001|2025-12": {PPC: 5},
	}}
	delivered := &monthlyActivity{sums: map[string]product.Quantities{}}
	r := newTestResolver(store, billed, delivered, allPresent("2025-11", "2025-12"))
	svc := NewService(store, r, discardLogger())

	// Prime the memo: Jan opening = 10 + 5 = 15.
	o, err := svc.VehicleOpening(context.Background(), "TRK001", "2026-01")
	require.NoError(t, err)
	require.InDelta(t, 15, o.Qty.PPC, product.Epsilon)

	// Operator corrects December's opening; memoized months from Dec on go.
	_, err = svc.SetVehicleOpening(context.Background(), VehicleOpeningInput{
		VehicleNo: "TRK001", Month: "2025-12", PPC: 20,
	})
	require.NoError(t, err)
	_, err = store.GetVehicleOpening(context.Background(), "TRK001", "2026-01")
	require.ErrorIs(t, err, shared.ErrNotFound)

	o, err = svc.VehicleOpening(context.Background(), "TRK001", "2026-01")
	require.NoError(t, err)
	require.InDelta(t, 25, o.Qty.PPC, product.Epsilon)
}

func TestDealerKey(t *testing.T) {
	require.Equal(t, "DLR42", DealerKey("DLR42", "Sharma Traders"))
	require.Equal(t, "Roadside Buyer", DealerKey("", " Roadside Buyer "))
}
