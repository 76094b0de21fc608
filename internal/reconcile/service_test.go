package reconcile

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
	"github.com/cemtrack/cemtrack/internal/unloading"
)

type fakeBillings struct {
	events []billing.Event
}

func (f *fakeBillings) ListByVehicleRange(_ context.Context, vehicleNo string, from, to time.Time) ([]billing.Event, error) {
	var out []billing.Event
	for _, e := range f.events {
		if e.VehicleNo == vehicleNo && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeBillings) DistinctVehicles(_ context.Context, from, to time.Time) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, e := range f.events {
		if !e.Date.Before(from) && !e.Date.After(to) && !seen[e.VehicleNo] {
			seen[e.VehicleNo] = true
			out = append(out, e.VehicleNo)
		}
	}
	return out, nil
}

type fakeDeliveries struct {
	events []unloading.Event
}

func (f *fakeDeliveries) ListByVehicleRange(_ context.Context, vehicleNo string, from, to time.Time) ([]unloading.Event, error) {
	var out []unloading.Event
	for _, e := range f.events {
		if e.VehicleNo == vehicleNo && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeOpenings struct {
	openings map[string]balance.VehicleOpening
}

func (f *fakeOpenings) VehicleOpening(_ context.Context, vehicleNo, month string) (balance.VehicleOpening, error) {
	o, ok := f.openings[vehicleNo+"|"+month]
	if !ok {
		return balance.VehicleOpening{VehicleNo: vehicleNo, Month: month, Complete: true}, nil
	}
	return o, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVehicleReportWindowsByMonth(t *testing.T) {
	// October-equivalent data must not leak in: the window opens at the
	// month start, with prior history compressed into the opening.
	bills := &fakeBillings{events: []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(3), Qty: product.Quantities{PPC: 10}},
		{ID: 2, VehicleNo: "TRK001", Date: day(20), Qty: product.Quantities{PPC: 5}},
	}}
	dels := &fakeDeliveries{events: []unloading.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(4), Qty: product.Quantities{PPC: 6}},
		{ID: 2, VehicleNo: "TRK001", Date: day(25), Qty: product.Quantities{PPC: 2}},
	}}
	opens := &fakeOpenings{openings: map[string]balance.VehicleOpening{
		"TRK001|2025-11": {VehicleNo: "TRK001", Month: "2025-11", Qty: product.Quantities{PPC: 3}, Complete: true},
	}}
	svc := NewService(bills, dels, opens, testLogger())

	// As of the 10th only the first pair is in scope.
	rep, err := svc.VehicleReport(context.Background(), "TRK001", day(10))
	require.NoError(t, err)
	require.Equal(t, "2025-11", rep.Month)
	require.InDelta(t, 3, rep.Opening.PPC, product.Epsilon)
	// 3 opening + 10 billed - 6 delivered = 7.
	require.InDelta(t, 7, rep.Pending.PPC, product.Epsilon)
	require.Len(t, rep.Lots, 2)
	require.Equal(t, OriginOpening, rep.Lots[0].Origin)
	require.True(t, rep.Lots[0].FullyConsumed())

	// As of month end everything counts: 3 + 15 - 8 = 10.
	rep, err = svc.VehicleReport(context.Background(), "TRK001", day(30))
	require.NoError(t, err)
	require.InDelta(t, 10, rep.Pending.PPC, product.Epsilon)
}

func TestVehicleReportCarriesIncompleteFlag(t *testing.T) {
	opens := &fakeOpenings{openings: map[string]balance.VehicleOpening{
		"TRK001|2025-11": {VehicleNo: "TRK001", Month: "2025-11", Qty: product.Quantities{PPC: 1}, Complete: false},
	}}
	svc := NewService(&fakeBillings{}, &fakeDeliveries{}, opens, testLogger())

	rep, err := svc.VehicleReport(context.Background(), "TRK001", day(10))
	require.NoError(t, err)
	require.False(t, rep.Complete)
}

func TestPendingVehiclesFiltersSettled(t *testing.T) {
	bills := &fakeBillings{events: []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(3), Qty: product.Quantities{PPC: 10}},
		{ID: 2, VehicleNo: "TRK002", Date: day(3), Qty: product.Quantities{OPC: 4}},
		{ID: 3, VehicleNo: "TRK003", Date: day(5), Qty: product.Quantities{Premium: 2}},
	}}
	dels := &fakeDeliveries{events: []unloading.Event{
		{ID: 1, VehicleNo: "TRK002", Date: day(4), Qty: product.Quantities{OPC: 4}},
	}}
	svc := NewService(bills, dels, &fakeOpenings{}, testLogger())

	reports, err := svc.PendingVehicles(context.Background(), day(10))
	require.NoError(t, err)
	require.Len(t, reports, 2)
	require.Equal(t, "TRK001", reports[0].VehicleNo)
	require.Equal(t, "TRK003", reports[1].VehicleNo)
}

func TestBalanceMatchesReportPending(t *testing.T) {
	bills := &fakeBillings{events: []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(3), Qty: product.Quantities{PPC: 12, OPC: 1}},
	}}
	dels := &fakeDeliveries{events: []unloading.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(5), Qty: product.Quantities{PPC: 4}},
	}}
	svc := NewService(bills, dels, &fakeOpenings{}, testLogger())

	q, err := svc.Balance(context.Background(), "TRK001", day(10))
	require.NoError(t, err)
	require.InDelta(t, 8, q.PPC, product.Epsilon)
	require.InDelta(t, 1, q.OPC, product.Epsilon)
}
