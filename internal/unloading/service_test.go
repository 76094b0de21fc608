package unloading

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cemtrack/cemtrack/internal/billing"
	"github.com/cemtrack/cemtrack/internal/product"
)

type memoryRepo struct {
	events []Event
	nextID int64
}

func (r *memoryRepo) InsertBatch(_ context.Context, events []Event) ([]Event, error) {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		r.nextID++
		e.ID = r.nextID
		e.CreatedAt = time.Now()
		r.events = append(r.events, e)
		out = append(out, e)
	}
	return out, nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	for i, e := range r.events {
		if e.ID == id {
			r.events = append(r.events[:i], r.events[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Event, error) {
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, nil
}

func (r *memoryRepo) UpdateAssociation(_ context.Context, id int64, assoc Association) error {
	for i, e := range r.events {
		if e.ID == id {
			r.events[i].Source = assoc.Source
			r.events[i].Rule = assoc.Rule
			if r.events[i].DealerCode == "" {
				r.events[i].DealerCode = assoc.DealerCode
			}
		}
	}
	return nil
}

func (r *memoryRepo) ListByVehicleRange(_ context.Context, vehicleNo string, from, to time.Time) ([]Event, error) {
	var out []Event
	for _, e := range r.events {
		if e.VehicleNo == vehicleNo && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) SumForVehicle(_ context.Context, vehicleNo string, to time.Time) (product.Quantities, error) {
	var q product.Quantities
	for _, e := range r.events {
		if e.VehicleNo == vehicleNo && !e.Date.After(to) {
			q = q.Add(e.Qty)
		}
	}
	return q, nil
}

type fixedBilled struct{ q product.Quantities }

func (f fixedBilled) SumForVehicle(context.Context, string, time.Time) (product.Quantities, error) {
	return f.q, nil
}

type fixedOpenings struct{ q product.Quantities }

func (f fixedOpenings) ManualVehicleOpeningTotal(context.Context, string) (product.Quantities, error) {
	return f.q, nil
}

func newTestService(repo *memoryRepo, billed product.Quantities, opening product.Quantities, history []billing.Event) *Service {
	resolver := NewResolver(&fakeBilling{events: history}, discardLogger())
	return NewService(repo, fixedBilled{q: billed}, fixedOpenings{q: opening}, resolver, discardLogger())
}

func TestIngestRejectsOverDelivery(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, product.Quantities{PPC: 10}, product.Quantities{}, nil)

	_, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK001", DealerName: "Sharma Traders", Date: "2025-11-07", PPC: 10.5},
	})
	require.ErrorIs(t, err, ErrExceedsBilled)
	require.Empty(t, repo.events)
}

func TestIngestToleratesEpsilonOverrun(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, product.Quantities{PPC: 10}, product.Quantities{}, nil)

	_, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK001", DealerName: "Sharma Traders", Date: "2025-11-07", PPC: 10.005},
	})
	require.NoError(t, err)
}

func TestIngestCountsOpeningBalanceAsBillable(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, product.Quantities{PPC: 4}, product.Quantities{PPC: 8}, nil)

	_, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK001", DealerName: "Sharma Traders", Date: "2025-11-07", PPC: 11},
	})
	require.NoError(t, err)
}

func TestIngestValidatesBatchCumulatively(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, product.Quantities{PPC: 10}, product.Quantities{}, nil)

	// Each row alone fits; together they exceed the billed total.
	_, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK001", DealerName: "A", Date: "2025-11-07", PPC: 6},
		{VehicleNo: "TRK001", DealerName: "A", Date: "2025-11-08", PPC: 6},
	})
	require.ErrorIs(t, err, ErrExceedsBilled)
}

func TestIngestResolvesAndPersistsAssociation(t *testing.T) {
	repo := &memoryRepo{}
	history := []billing.Event{
		{ID: 1, VehicleNo: "TRK001", DealerCode: "1001", DealerName: "Sharma Traders", Date: day(7), Source: billing.SourceDepot},
	}
	svc := newTestService(repo, product.Quantities{PPC: 100}, product.Quantities{}, history)

	events, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK001", Date: "2025-11-07", PPC: 5},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, RuleSameDaySingle, events[0].Rule)
	require.Equal(t, billing.SourceDepot, events[0].Source)
	require.Equal(t, "1001", events[0].DealerCode)
	require.Equal(t, billing.SourceDepot, repo.events[0].Source)
}

func TestIngestUnresolvedIsNotFatal(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo, product.Quantities{OPC: 50}, product.Quantities{}, nil)

	events, err := svc.Ingest(context.Background(), []EventInput{
		{VehicleNo: "TRK999", Date: "2025-11-07", OPC: 5},
	})
	require.NoError(t, err)
	require.Equal(t, RuleDefault, events[0].Rule)
	require.Equal(t, billing.SourcePlant, events[0].Source)
}
