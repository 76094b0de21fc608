package unloading

import (
	"context"
	"log/slog"
	"time"

	"github.com/cemtrack/cemtrack/internal/billing"
)

// BillingLookup is the slice of the billing store the resolver reads.
type BillingLookup interface {
	SameDay(ctx context.Context, vehicleNo string, date time.Time) ([]billing.Event, error)
	Window(ctx context.Context, vehicleNo string, date time.Time, days int) ([]billing.Event, error)
	DistinctSources(ctx context.Context, vehicleNo string) ([]billing.Source, error)
}

// Resolver infers a dealer/source association for a delivery that lacks one.
// Rules run in priority order and the first match wins; the terminal default
// rule always matches, so Resolve never fails.
type Resolver struct {
	billing BillingLookup
	logger  *slog.Logger
	rules   []resolverRule
}

type resolverRule func(ctx context.Context, e Event) (Association, bool, error)

// NewResolver constructs Resolver with the standard rule chain.
func NewResolver(billingLookup BillingLookup, logger *slog.Logger) *Resolver {
	r := &Resolver{billing: billingLookup, logger: logger}
	r.rules = []resolverRule{
		r.sameDay,
		r.nearby,
		r.history,
		r.fallback,
	}
	return r
}

// Resolve walks the rule chain. Deterministic for a fixed billing history.
func (r *Resolver) Resolve(ctx context.Context, e Event) (Association, error) {
	for _, rule := range r.rules {
		assoc, ok, err := rule(ctx, e)
		if err != nil {
			return Association{}, err
		}
		if ok {
			if assoc.Unresolved() && r.logger != nil {
				r.logger.Warn("delivery association unresolved",
					slog.String("vehicle", e.VehicleNo),
					slog.Time("date", e.Date),
					slog.Int64("delivery_id", e.ID))
			}
			return assoc, nil
		}
	}
	// Unreachable: fallback always matches.
	return Association{Source: billing.SourcePlant, Rule: RuleDefault}, nil
}

// sameDay covers both single- and multi-billing days. A lone billing is
// adopted outright; with several, a dealer-code match wins, then a source
// shared by every candidate.
func (r *Resolver) sameDay(ctx context.Context, e Event) (Association, bool, error) {
	candidates, err := r.billing.SameDay(ctx, e.VehicleNo, e.Date)
	if err != nil {
		return Association{}, false, err
	}
	switch {
	case len(candidates) == 0:
		return Association{}, false, nil
	case len(candidates) == 1:
		b := candidates[0]
		return Association{Source: b.Source, DealerCode: b.DealerCode, DealerName: b.DealerName, Rule: RuleSameDaySingle}, true, nil
	}
	if e.DealerCode != "" {
		for _, b := range candidates {
			if b.DealerCode == e.DealerCode {
				return Association{Source: b.Source, DealerCode: b.DealerCode, DealerName: b.DealerName, Rule: RuleSameDayDealer}, true, nil
			}
		}
	}
	if src, ok := unanimousSource(candidates); ok {
		return Association{Source: src, Rule: RuleSameDayUnanimous}, true, nil
	}
	return Association{}, false, nil
}

// nearby searches ±WindowDays around the delivery, candidates ordered by
// absolute day distance with earlier dates first on ties. A dealer-code match
// beats proximity; otherwise the closest billing is taken regardless of dealer.
func (r *Resolver) nearby(ctx context.Context, e Event) (Association, bool, error) {
	candidates, err := r.billing.Window(ctx, e.VehicleNo, e.Date, WindowDays)
	if err != nil {
		return Association{}, false, err
	}
	if len(candidates) == 0 {
		return Association{}, false, nil
	}
	if e.DealerCode != "" {
		for _, b := range candidates {
			if b.DealerCode == e.DealerCode {
				return Association{Source: b.Source, DealerCode: b.DealerCode, DealerName: b.DealerName, Rule: RuleNearbyDealer}, true, nil
			}
		}
	}
	b := candidates[0]
	return Association{Source: b.Source, DealerCode: b.DealerCode, DealerName: b.DealerName, Rule: RuleNearbyClosest}, true, nil
}

// history applies when the vehicle's entire billing history uses one source.
func (r *Resolver) history(ctx context.Context, e Event) (Association, bool, error) {
	sources, err := r.billing.DistinctSources(ctx, e.VehicleNo)
	if err != nil {
		return Association{}, false, err
	}
	if len(sources) == 1 {
		return Association{Source: sources[0], DealerCode: e.DealerCode, DealerName: e.DealerName, Rule: RuleHistorySingle}, true, nil
	}
	return Association{}, false, nil
}

// fallback assigns the default source. Plant billing dominates the network.
func (r *Resolver) fallback(context.Context, Event) (Association, bool, error) {
	return Association{Source: billing.SourcePlant, Rule: RuleDefault}, true, nil
}

func unanimousSource(events []billing.Event) (billing.Source, bool) {
	src := events[0].Source
	for _, b := range events[1:] {
		if b.Source != src {
			return "", false
		}
	}
	return src, true
}
