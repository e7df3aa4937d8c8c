package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStore_StartsWithFallbackDisabled(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Load().FallbackMode)
}

func TestEnableFallback_SwitchesModeOn(t *testing.T) {
	s := NewStore()
	s.EnableFallback()
	assert.True(t, s.Load().FallbackMode)
}

func TestClear_TurnsFallbackOff(t *testing.T) {
	s := NewStore()
	s.EnableFallback()
	s.Clear()
	assert.False(t, s.Load().FallbackMode)
}

func TestEnableFallback_IsIdempotent(t *testing.T) {
	s := NewStore()
	s.EnableFallback()
	s.EnableFallback()
	assert.True(t, s.Load().FallbackMode)
}
