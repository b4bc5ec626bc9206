package due_test

import (
	"testing"
	"time"

	"github.com/rezkam/torque/internal/due"
	"github.com/stretchr/testify/assert"
)

func TestAt_AddsTimeoutAndJitter(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := due.At(now, 30, 3)
	want := now.Add(30*time.Second + 3*37*time.Millisecond)

	assert.True(t, got.Equal(want))
}

func TestAt_JitterWrapsEveryTenRetries(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := due.At(now, 0, 3)
	b := due.At(now, 0, 13)

	assert.True(t, a.Equal(b), "jitter should repeat with period 10")
}

func TestAt_ZeroTimeoutIsRescheduleCase(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := due.At(now, 0, 0)
	assert.True(t, got.Equal(now))
}
