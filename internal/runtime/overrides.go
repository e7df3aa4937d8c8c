// Package runtime holds process-wide, atomically-swapped configuration that
// changes during the life of the process — today, only the degraded mode
// entered when the monthly budget is exceeded. Everything else lives in an
// immutable config.Config value.
package runtime

import "sync/atomic"

// Overrides captures the cooperative, process-global toggles that the cost
// guard (component M) can flip at runtime. Components read the current
// value at the top of each operation; nobody holds onto a stale copy across
// a suspension point.
type Overrides struct {
	// FallbackMode is true once the monthly budget has been exceeded.
	FallbackMode bool
}

// Store is a small wrapper around atomic.Pointer[Overrides] that always
// returns a non-nil value.
type Store struct {
	v atomic.Pointer[Overrides]
}

// NewStore creates a Store with fallback mode disabled.
func NewStore() *Store {
	s := &Store{}
	s.v.Store(&Overrides{})
	return s
}

// Load returns the current overrides. The returned value must be treated as
// immutable by the caller.
func (s *Store) Load() *Overrides {
	if v := s.v.Load(); v != nil {
		return v
	}
	return &Overrides{}
}

// EnableFallback atomically switches the process into fallback mode. It is
// idempotent.
func (s *Store) EnableFallback() {
	s.v.Store(&Overrides{FallbackMode: true})
}

// Clear atomically turns fallback mode off. Exposed for operators and tests;
// nothing in the pipeline calls it automatically (spec.md §8 invariant 10
// requires fallback to persist "until explicitly cleared").
func (s *Store) Clear() {
	s.v.Store(&Overrides{})
}
