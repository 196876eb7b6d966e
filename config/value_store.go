package config

import "sync/atomic"

// ValueStore holds a configuration snapshot for lock-free reads.
type ValueStore struct {
	value atomic.Value // map[string]any
}

func NewValueStore() *ValueStore {
	s := &ValueStore{}
	s.value.Store(make(map[string]any))
	return s
}

func (s *ValueStore) Load() map[string]any {
	v, _ := s.value.Load().(map[string]any)
	return v
}

// Store replaces the snapshot. Callers must not mutate data afterwards.
func (s *ValueStore) Store(data map[string]any) {
	s.value.Store(data)
}
