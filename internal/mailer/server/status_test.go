package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusStarting, StatusReady, true},
		{StatusStarting, StatusServiceUnavailable, true},
		{StatusStarting, StatusRotatingIP, false},
		{StatusReady, StatusRotatingIP, true},
		{StatusReady, StatusStarting, true},
		{StatusReady, StatusReady, true},
		{StatusRotatingIP, StatusReady, true},
		{StatusRotatingIP, StatusRotatingIP, false},
		{StatusServiceUnavailable, StatusRotatingIP, true},
		{StatusError, StatusRotatingIP, false},
		{StatusStopped, StatusReady, false},
		{StatusTerminated, StatusStarting, false},
		{StatusReady, StatusRechecking, false},
		{StatusStarting, StatusUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusRechecking.IsViewOnly())
	assert.False(t, StatusRechecking.IsValid())
	assert.True(t, StatusStarting.IsTransitioning())
	assert.True(t, StatusRotatingIP.IsTransitioning())
	assert.False(t, StatusReady.IsTransitioning())
	assert.True(t, StatusStopped.IsTerminal())
	assert.True(t, StatusError.IsProbeResult())
}

func TestProviderState(t *testing.T) {
	for _, s := range []ProviderState{ProviderStopping, ProviderStopped, ProviderTerminated} {
		assert.True(t, s.IsGone(), s)
	}
	assert.False(t, ProviderRunning.IsGone())
	assert.False(t, ProviderUnknown.IsGone())
	assert.True(t, ProviderPending.IsPendingLike())
	assert.True(t, ProviderTerminated.IsDeleting())
	assert.False(t, ProviderStopped.IsDeleting())
}

func TestServer_Timing(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &Server{
		UserID:    "u1",
		Class:     ClassPersistent,
		ExpiresAt: now.Add(-time.Second),
		UpdatedAt: now.Add(-61 * time.Second),
	}

	assert.True(t, s.IsExpired(now))
	assert.True(t, s.QuietFor(now, time.Minute))
	assert.False(t, s.QuietFor(now, 2*time.Minute))
	assert.True(t, s.IsPersistent())
	assert.True(t, s.OwnedBy("u1"))
	assert.False(t, s.OwnedBy("u2"))

	s.ExpiresAt = now
	assert.False(t, s.IsExpired(now), "expiry at exactly now is still active")
}

func TestParseClass(t *testing.T) {
	c, err := ParseClass("persistent")
	assert.NoError(t, err)
	assert.Equal(t, ClassPersistent, c)

	_, err = ParseClass("premium")
	assert.Error(t, err)
}

func TestNewView_DefaultsMissingStatus(t *testing.T) {
	v := NewView(&Server{ID: "s1"}, ProviderRunning)
	assert.Equal(t, StatusReady, v.Status)
	assert.Equal(t, ProviderRunning, v.ProviderState)
}
