// Package checkpoint persists per-client adapter parameters at evaluation
// boundaries. The orchestrator treats persistence as an external concern;
// the default store is a no-op.
package checkpoint

import (
	"context"

	"github.com/fan1dy/personalized-llms-colm/model"
)

type Store interface {
	Save(ctx context.Context, clientID, iteration int, params model.Params) error
	Load(ctx context.Context, clientID, iteration int) (model.Params, error)
	Close() error
}

type noopStore struct{}

func NewNoop() Store {
	return &noopStore{}
}

func (s *noopStore) Save(context.Context, int, int, model.Params) error {
	return nil
}

func (s *noopStore) Load(context.Context, int, int) (model.Params, error) {
	return nil, ErrNotFound
}

func (s *noopStore) Close() error {
	return nil
}
