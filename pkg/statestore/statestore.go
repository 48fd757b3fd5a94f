// Package statestore implements the state store: a save/load contract
// over two backends (local file, object store), plus a bbolt-backed
// history log for operator inspection of past snapshots.
// There are two independent stores per project — one for infra state, one
// for placement state — each constructed with its own Backend.
package statestore

import "context"

// Backend persists and retrieves a single blob of raw bytes. Read returns
// present=false (not an error) when nothing has been saved yet.
type Backend interface {
	Write(ctx context.Context, data []byte) error
	Read(ctx context.Context) (data []byte, present bool, err error)
}

// Store adapts a Backend to a typed save/load contract via JSON
// marshaling, matching the shape of the original backend.rs trait:
// save(&State) -> Result<()>, load() -> Result<(State, bool)>.
type Store[T any] struct {
	backend Backend
}

func NewStore[T any](backend Backend) *Store[T] {
	return &Store[T]{backend: backend}
}

func (s *Store[T]) Save(ctx context.Context, v T) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, data)
}

// Load returns the zero value of T and present=false if nothing has been
// saved — an empty state when the backing file does not exist yet.
func (s *Store[T]) Load(ctx context.Context) (T, bool, error) {
	var zero T
	data, present, err := s.backend.Read(ctx)
	if err != nil {
		return zero, false, err
	}
	if !present {
		return zero, false, nil
	}
	v, err := unmarshal[T](data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}
