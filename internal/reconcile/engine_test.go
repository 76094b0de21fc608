package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
	"github.com/cemtrack/cemtrack/internal/unloading"
)

func day(d int) time.Time {
	return time.Date(2025, time.November, d, 0, 0, 0, 0, time.UTC)
}

func TestFIFOOrdering(t *testing.T) {
	billings := []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(1), Qty: product.Quantities{PPC: 10}},
		{ID: 2, VehicleNo: "TRK001", Date: day(5), Qty: product.Quantities{PPC: 10}},
	}
	deliveries := []unloading.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(6), Qty: product.Quantities{PPC: 15}},
	}

	res := Reconcile("TRK001", nil, billings, deliveries)
	require.Len(t, res.Lots, 2)
	require.InDelta(t, 0, res.Lots[0].Remaining.PPC, product.Epsilon)
	require.True(t, res.Lots[0].FullyConsumed())
	require.InDelta(t, 5, res.Lots[1].Remaining.PPC, product.Epsilon)
	require.InDelta(t, 5, res.Pending.PPC, product.Epsilon)
}

func TestBoundaryScenario(t *testing.T) {
	// TRK001 billed 12.0 MT PPC on 2025-11-05, nothing delivered yet.
	billings := []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(5), Qty: product.Quantities{PPC: 12}},
	}

	res := Reconcile("TRK001", nil, billings, nil)
	require.InDelta(t, 12.0, res.Pending.PPC, product.Epsilon)

	// A 12.0 MT delivery two days later fully consumes the lot.
	deliveries := []unloading.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(7), Qty: product.Quantities{PPC: 12}},
	}
	res = Reconcile("TRK001", nil, billings, deliveries)
	require.InDelta(t, 0, res.Pending.PPC, product.Epsilon)
	require.True(t, res.Lots[0].FullyConsumed())
}

func TestOpeningLotConsumedFirst(t *testing.T) {
	opening := &Opening{Qty: product.Quantities{PPC: 4}, BillingDate: day(1)}
	billings := []billing.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(3), Qty: product.Quantities{PPC: 10}},
	}
	deliveries := []unloading.Event{
		{ID: 1, VehicleNo: "TRK001", Date: day(4), Qty: product.Quantities{PPC: 6}},
	}

	res := Reconcile("TRK001", opening, billings, deliveries)
	require.Len(t, res.Lots, 2)
	require.Equal(t, OriginOpening, res.Lots[0].Origin)
	require.True(t, res.Lots[0].FullyConsumed())
	require.InDelta(t, 8, res.Lots[1].Remaining.PPC, product.Epsilon)
}

func TestConservation(t *testing.T) {
	opening := &Opening{Qty: product.Quantities{PPC: 3, Premium: 2}, BillingDate: day(1)}
	billings := []billing.Event{
		{ID: 1, Date: day(2), Qty: product.Quantities{PPC: 7, OPC: 5}},
		{ID: 2, Date: day(4), Qty: product.Quantities{PPC: 6, Premium: 1}},
		{ID: 3, Date: day(9), Qty: product.Quantities{OPC: 2.5}},
	}
	deliveries := []unloading.Event{
		{ID: 1, Date: day(3), Qty: product.Quantities{PPC: 5}},
		{ID: 2, Date: day(5), Qty: product.Quantities{PPC: 4, Premium: 2, OPC: 3}},
		{ID: 3, Date: day(10), Qty: product.Quantities{OPC: 1}},
	}

	res := Reconcile("TRK001", opening, billings, deliveries)

	totalIn := opening.Qty
	for _, b := range billings {
		totalIn = totalIn.Add(b.Qty)
	}
	var totalOut product.Quantities
	for _, d := range deliveries {
		totalOut = totalOut.Add(d.Qty)
	}
	var remaining product.Quantities
	for _, l := range res.Lots {
		remaining = remaining.Add(l.Remaining)
	}
	expect := totalIn.Sub(totalOut)
	for _, typ := range product.Types {
		require.InDelta(t, expect.Get(typ), remaining.Get(typ), product.Epsilon, "type %s", typ)
	}
	require.True(t, res.Anomaly.IsZero())
}

func TestSingleDeliverySplitsAcrossLots(t *testing.T) {
	billings := []billing.Event{
		{ID: 10, Date: day(1), Qty: product.Quantities{OPC: 6}},
		{ID: 11, Date: day(2), Qty: product.Quantities{OPC: 6}},
	}
	deliveries := []unloading.Event{
		{ID: 5, Date: day(3), Qty: product.Quantities{OPC: 9}},
	}

	res := Reconcile("TRK001", nil, billings, deliveries)
	require.Len(t, res.Lots[0].Consumptions, 1)
	require.Len(t, res.Lots[1].Consumptions, 1)
	require.InDelta(t, 6, res.Lots[0].Consumptions[0].Qty.OPC, product.Epsilon)
	require.InDelta(t, 3, res.Lots[1].Consumptions[0].Qty.OPC, product.Epsilon)
	require.Equal(t, int64(5), res.Lots[1].Consumptions[0].DeliveryID)
}

func TestExcessDeliveryFlaggedNotDropped(t *testing.T) {
	billings := []billing.Event{
		{ID: 1, Date: day(1), Qty: product.Quantities{PPC: 5}},
	}
	deliveries := []unloading.Event{
		{ID: 1, Date: day(2), Qty: product.Quantities{PPC: 8}},
	}

	res := Reconcile("TRK001", nil, billings, deliveries)
	require.True(t, res.Lots[0].FullyConsumed())
	require.InDelta(t, 3, res.Anomaly.PPC, product.Epsilon)
	require.InDelta(t, 0, res.Pending.PPC, product.Epsilon)
}

func TestFloatingNoiseTreatedAsZero(t *testing.T) {
	billings := []billing.Event{
		{ID: 1, Date: day(1), Qty: product.Quantities{Premium: 0.1 + 0.2}},
	}
	deliveries := []unloading.Event{
		{ID: 1, Date: day(2), Qty: product.Quantities{Premium: 0.3}},
	}

	res := Reconcile("TRK001", nil, billings, deliveries)
	require.True(t, res.Lots[0].FullyConsumed())
	require.True(t, res.Pending.IsZero())
}

func TestPendingLotsFiltersConsumed(t *testing.T) {
	billings := []billing.Event{
		{ID: 1, Date: day(1), Qty: product.Quantities{PPC: 5}},
		{ID: 2, Date: day(2), Qty: product.Quantities{PPC: 5}},
	}
	deliveries := []unloading.Event{
		{ID: 1, Date: day(3), Qty: product.Quantities{PPC: 5}},
	}

	res := Reconcile("TRK001", nil, billings, deliveries)
	pending := res.PendingLots()
	require.Len(t, pending, 1)
	require.Equal(t, int64(2), pending[0].BillingID)
}
