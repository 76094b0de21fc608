package admin

import (
	"context"
	"log/slog"
)

// StorePort abstracts repository usage for service.
type StorePort interface {
	Purge(ctx context.Context) (map[string]int64, error)
}

// PurgeResult reports what a purge removed.
type PurgeResult struct {
	Tables map[string]int64 `json:"tables"`
	Total  int64            `json:"total"`
}

// Service coordinates maintenance operations.
type Service struct {
	store    StorePort
	logger   *slog.Logger
	onChange func(context.Context)
}

// NewService builds Service.
func NewService(store StorePort, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// SetOnChange registers a callback invoked after a purge. Used to bump
// derived-report caches.
func (s *Service) SetOnChange(fn func(context.Context)) {
	s.onChange = fn
}

// Purge empties every data table. There is no undo; the route carrying this
// sits behind the admin key.
func (s *Service) Purge(ctx context.Context) (PurgeResult, error) {
	counts, err := s.store.Purge(ctx)
	if err != nil {
		return PurgeResult{}, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	if s.onChange != nil {
		s.onChange(ctx)
	}
	s.logger.Warn("database purged", slog.Int64("rows", total))
	return PurgeResult{Tables: counts, Total: total}, nil
}
