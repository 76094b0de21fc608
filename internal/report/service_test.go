package report

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
	"github.com/cemtrack/cemtrack/internal/reconcile"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

type fakeBilled struct {
	acts []billing.DealerActivity
}

func (f *fakeBilled) DealerRangeSums(context.Context, time.Time, time.Time) ([]billing.DealerActivity, error) {
	return f.acts, nil
}

type fakeDelivered struct {
	acts []unloading.DealerActivity
}

func (f *fakeDelivered) DealerRangeSums(context.Context, time.Time, time.Time) ([]unloading.DealerActivity, error) {
	return f.acts, nil
}

type fakeOpenings struct {
	openings map[string]balance.DealerOpening
	stored   []balance.DealerOpening
}

func (f *fakeOpenings) DealerOpening(_ context.Context, code, name, _ string) (balance.DealerOpening, error) {
	key := balance.DealerKey(code, name)
	if o, ok := f.openings[key]; ok {
		return o, nil
	}
	return balance.DealerOpening{DealerKey: key, DealerName: name, Complete: true}, nil
}

func (f *fakeOpenings) ListDealerOpenings(context.Context, string) ([]balance.DealerOpening, error) {
	return f.stored, nil
}

type fakePending struct {
	reports []reconcile.Report
}

func (f *fakePending) PendingVehicles(context.Context, time.Time) ([]reconcile.Report, error) {
	return f.reports, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func nov(d int) time.Time {
	return time.Date(2025, time.November, d, 0, 0, 0, 0, time.UTC)
}

func TestDealerBalanceRollsUpOtherDealers(t *testing.T) {
	billed := &fakeBilled{acts: []billing.DealerActivity{
		{Key: "DLR42", DealerCode: "DLR42", DealerName: "Sharma Traders", Qty: product.Quantities{PPC: 10}, TotalValue: 52000},
		{Key: "Roadside A", DealerName: "Roadside A", IsOther: true, Qty: product.Quantities{OPC: 2}},
		{Key: "Roadside B", DealerName: "Roadside B", IsOther: true, Qty: product.Quantities{OPC: 3}},
	}}
	delivered := &fakeDelivered{acts: []unloading.DealerActivity{
		{Key: "DLR42", DealerCode: "DLR42", DealerName: "Sharma Traders", Qty: product.Quantities{PPC: 4}},
		{Key: "Roadside A", DealerName: "Roadside A", IsOther: true, Qty: product.Quantities{OPC: 1}},
	}}
	svc := NewService(billed, delivered, &fakeOpenings{}, &fakePending{}, nil, testLogger())

	rep, err := svc.DealerBalance(context.Background(), nov(15))
	require.NoError(t, err)
	require.Equal(t, "2025-11", rep.Month)
	require.Len(t, rep.Rows, 2)

	require.Equal(t, "Sharma Traders", rep.Rows[0].DealerName)
	require.InDelta(t, 6, rep.Rows[0].Closing.PPC, product.Epsilon)
	require.InDelta(t, 52000, rep.Rows[0].SalesValue, 0.001)

	// Both ad-hoc dealers collapse into one bucket, last in the list.
	other := rep.Rows[1]
	require.Equal(t, OtherDealersName, other.DealerName)
	require.True(t, other.IsOther)
	require.InDelta(t, 5, other.Billed.OPC, product.Epsilon)
	require.InDelta(t, 4, other.Closing.OPC, product.Epsilon)

	require.InDelta(t, 6, rep.Total.Closing.PPC, product.Epsilon)
	require.InDelta(t, 4, rep.Total.Closing.OPC, product.Epsilon)
}

func TestDealerBalanceNegativeClosingSurfaced(t *testing.T) {
	billed := &fakeBilled{acts: []billing.DealerActivity{
		{Key: "DLR42", DealerCode: "DLR42", DealerName: "Sharma Traders", Qty: product.Quantities{PPC: 2}},
	}}
	delivered := &fakeDelivered{acts: []unloading.DealerActivity{
		{Key: "DLR42", DealerCode: "DLR42", DealerName: "Sharma Traders", Qty: product.Quantities{PPC: 7}},
	}}
	svc := NewService(billed, delivered, &fakeOpenings{}, &fakePending{}, nil, testLogger())

	rep, err := svc.DealerBalance(context.Background(), nov(15))
	require.NoError(t, err)
	require.Len(t, rep.Rows, 1)
	require.InDelta(t, -5, rep.Rows[0].Closing.PPC, product.Epsilon)
}

func TestDealerBalanceOmitsSettledIncludesDormantBalance(t *testing.T) {
	// DLR01 has activity that nets to zero balance: still included (activity).
	// DLR02 has no activity but a stored opening: included via balance.
	// DLR03 has nothing: omitted.
	billed := &fakeBilled{acts: []billing.DealerActivity{
		{Key: "DLR01", DealerCode: "DLR01", DealerName: "Active Zero", Qty: product.Quantities{PPC: 5}},
	}}
	delivered := &fakeDelivered{acts: []unloading.DealerActivity{
		{Key: "DLR01", DealerCode: "DLR01", DealerName: "Active Zero", Qty: product.Quantities{PPC: 5}},
	}}
	openings := &fakeOpenings{
		openings: map[string]balance.DealerOpening{
			"DLR02": {DealerKey: "DLR02", DealerCode: "DLR02", DealerName: "Dormant", Qty: product.Quantities{OPC: 9}, Complete: true},
		},
		stored: []balance.DealerOpening{
			{DealerKey: "DLR02", DealerCode: "DLR02", DealerName: "Dormant"},
			{DealerKey: "DLR03", DealerCode: "DLR03", DealerName: "Empty"},
		},
	}
	svc := NewService(billed, delivered, openings, &fakePending{}, nil, testLogger())

	rep, err := svc.DealerBalance(context.Background(), nov(15))
	require.NoError(t, err)
	require.Len(t, rep.Rows, 2)
	require.Equal(t, "Active Zero", rep.Rows[0].DealerName)
	require.Equal(t, "Dormant", rep.Rows[1].DealerName)
	require.InDelta(t, 9, rep.Rows[1].Closing.OPC, product.Epsilon)
}

func TestPendingVehiclesPassThrough(t *testing.T) {
	pend := &fakePending{reports: []reconcile.Report{
		{Result: reconcile.Result{VehicleNo: "TRK001", Pending: product.Quantities{PPC: 3}}},
	}}
	svc := NewService(&fakeBilled{}, &fakeDelivered{}, &fakeOpenings{}, pend, nil, testLogger())

	reports, err := svc.PendingVehicles(context.Background(), nov(15))
	require.NoError(t, err)
	require.Len(t, reports, 1)
	require.Equal(t, "TRK001", reports[0].VehicleNo)
}
