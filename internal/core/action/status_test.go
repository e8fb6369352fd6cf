package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Paths(t *testing.T) {
	tests := []struct {
		name    string
		path    []Status
		outcome Status
	}{
		{"cache hit", []Status{StatusPreconditionChecked, StatusCacheHit, StatusDone}, StatusCacheHit},
		{"success", []Status{StatusPreconditionChecked, StatusCacheMiss, StatusRunning, StatusSucceeded, StatusDone}, StatusSucceeded},
		{"skip", []Status{StatusPreconditionChecked, StatusCacheMiss, StatusRunning, StatusSkipped, StatusDone}, StatusSkipped},
		{"run failure", []Status{StatusPreconditionChecked, StatusCacheMiss, StatusRunning, StatusFailed, StatusError}, StatusFailed},
		{"precondition failure", []Status{StatusFailed, StatusError}, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			for _, s := range tt.path {
				require.NoError(t, tr.Advance(s))
			}
			assert.Equal(t, tt.outcome, tr.Outcome())
			assert.True(t, tr.Current().IsTerminal())
			assert.Equal(t, append([]Status{StatusPending}, tt.path...), tr.Trace())
		})
	}
}

func TestTracker_RejectsInvalidTransitions(t *testing.T) {
	tr := NewTracker()
	require.Error(t, tr.Advance(StatusRunning))
	require.NoError(t, tr.Advance(StatusPreconditionChecked))
	require.NoError(t, tr.Advance(StatusCacheHit))
	require.Error(t, tr.Advance(StatusRunning), "cache hits never run")
}

func TestTracker_Fail(t *testing.T) {
	tr := NewTracker()
	require.NoError(t, tr.Advance(StatusPreconditionChecked))
	require.NoError(t, tr.Advance(StatusCacheMiss))
	tr.Fail()

	assert.Equal(t, StatusError, tr.Current())
	assert.Equal(t, StatusFailed, tr.Outcome())

	tr.Fail()
	assert.Equal(t, StatusError, tr.Current(), "failing twice is a no-op")
}
