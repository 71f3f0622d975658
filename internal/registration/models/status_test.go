package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "stagepass/pkg/domain-errors"
)

func TestStatusTransitionTable(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusRegistered, StatusWon},
		{StatusRegistered, StatusLost},
		{StatusRegistered, StatusCancelled},
		{StatusWon, StatusConfirmed},
		{StatusWon, StatusCancelled},
		{StatusConfirmed, StatusUsed},
	}
	for _, tc := range allowed {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	all := []Status{StatusRegistered, StatusWon, StatusLost, StatusCancelled, StatusConfirmed, StatusUsed}
	allowedSet := map[[2]Status]bool{}
	for _, tc := range allowed {
		allowedSet[[2]Status{tc.from, tc.to}] = true
	}
	for _, from := range all {
		for _, to := range all {
			if allowedSet[[2]Status{from, to}] {
				continue
			}
			assert.False(t, from.CanTransitionTo(to), "%s -> %s should be rejected", from, to)
		}
	}
}

// TestStatusNeverRegresses pins the property that terminal states have no
// outgoing edges: a used ticket can never become registered again.
func TestStatusNeverRegresses(t *testing.T) {
	for _, terminal := range []Status{StatusLost, StatusCancelled, StatusUsed} {
		assert.True(t, terminal.IsTerminal(), "%s should be terminal", terminal)
		for _, to := range []Status{StatusRegistered, StatusWon, StatusLost, StatusCancelled, StatusConfirmed, StatusUsed} {
			assert.False(t, terminal.CanTransitionTo(to), "%s -> %s must be impossible", terminal, to)
		}
	}
}

func TestStatusIsActive(t *testing.T) {
	assert.True(t, StatusRegistered.IsActive())
	assert.True(t, StatusWon.IsActive())
	assert.True(t, StatusConfirmed.IsActive())
	assert.False(t, StatusLost.IsActive())
	assert.False(t, StatusCancelled.IsActive())
	assert.False(t, StatusUsed.IsActive())
}

func TestParseStatus(t *testing.T) {
	t.Run("accepts known statuses", func(t *testing.T) {
		for _, s := range []string{"registered", "won", "lost", "cancelled", "confirmed", "used"} {
			parsed, err := ParseStatus(s)
			require.NoError(t, err)
			assert.Equal(t, Status(s), parsed)
		}
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := ParseStatus("pending")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects empty status", func(t *testing.T) {
		_, err := ParseStatus("")
		require.Error(t, err)
	})
}
