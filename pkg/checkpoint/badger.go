package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/fan1dy/personalized-llms-colm/model"
)

var ErrNotFound = errors.New("checkpoint not found")

// badgerStore keeps adapter parameters in an embedded Badger database keyed
// by client and iteration.
type badgerStore struct {
	db *badger.DB
}

func NewBadger(path string) (Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	return &badgerStore{db: db}, nil
}

func key(clientID, iteration int) []byte {
	return []byte(fmt.Sprintf("client/%d/iteration/%d", clientID, iteration))
}

func (s *badgerStore) Save(_ context.Context, clientID, iteration int, params model.Params) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshaling checkpoint: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(clientID, iteration), data)
	})
	if err != nil {
		return fmt.Errorf("saving checkpoint for client %d at iteration %d: %w", clientID, iteration, err)
	}

	return nil
}

func (s *badgerStore) Load(_ context.Context, clientID, iteration int) (model.Params, error) {
	var params model.Params
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(clientID, iteration))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &params)
		})
	})
	if err != nil {
		return nil, err
	}

	return params, nil
}

func (s *badgerStore) Close() error {
	return s.db.Close()
}
