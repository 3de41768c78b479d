// Package catalog records fetch/process runs per city in a relational
// store, so operators can see what ran, how far it got, and what it
// produced. The catalog is optional; a disabled catalog is a NopStore.
package catalog

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/metrograph/demandgen/internal/model"
)

// Filter narrows a run listing.
type Filter struct {
	Status model.RunStatus `json:"status,omitempty"`
	City   string          `json:"city,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store is the run catalog persistence interface.
type Store interface {
	CreateRun(ctx context.Context, city string) (*model.CityRun, error)
	UpdateStage(ctx context.Context, runID, stage string) error
	CompleteRun(ctx context.Context, runID string, counts model.RunCounts) error
	FailRun(ctx context.Context, runID string, runErr error) error
	GetRun(ctx context.Context, runID string) (*model.CityRun, error)
	ListRuns(ctx context.Context, filter Filter) ([]model.CityRun, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a store for the configured driver: "sqlite", "postgres" or
// "" for the nop store.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "":
		return NopStore{}, nil
	case "sqlite":
		s, err := NewSQLite(dsn)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgres(ctx, dsn, nil)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, eris.Errorf("catalog: unknown driver %q", driver)
	}
}

// NopStore satisfies Store without persisting anything.
type NopStore struct{}

func (NopStore) CreateRun(context.Context, string) (*model.CityRun, error) {
	return &model.CityRun{ID: "nop", Status: model.RunStatusRunning}, nil
}
func (NopStore) UpdateStage(context.Context, string, string) error { return nil }

func (NopStore) CompleteRun(context.Context, string, model.RunCounts) error { return nil }

func (NopStore) FailRun(context.Context, string, error) error { return nil }

func (NopStore) GetRun(context.Context, string) (*model.CityRun, error) { return nil, nil }

func (NopStore) ListRuns(context.Context, Filter) ([]model.CityRun, error) { return nil, nil }

func (NopStore) Migrate(context.Context) error { return nil }

func (NopStore) Close() error { return nil }
