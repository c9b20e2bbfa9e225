package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPenalty(t *testing.T) {
	base := 5.0

	assert.Equal(t, 0.0, Penalty(ActionCancelPending, base))
	assert.Equal(t, 0.0, Penalty(ActionAutoCancel, base))
	assert.Equal(t, 5.0, Penalty(ActionCancelAccepted, base))

	// No-show costs double a cancellation.
	assert.Equal(t, 10.0, Penalty(ActionNoShow, base))
}

func TestPenalty_TracksBase(t *testing.T) {
	assert.Equal(t, 8.0, Penalty(ActionCancelAccepted, 8.0))
	assert.Equal(t, 16.0, Penalty(ActionNoShow, 8.0))
}

func TestApply(t *testing.T) {
	assert.Equal(t, 85.0, Apply(90.0, ActionCancelAccepted, 5.0))
	assert.Equal(t, 80.0, Apply(90.0, ActionNoShow, 5.0))

	// Free actions leave the rate untouched.
	assert.Equal(t, 90.0, Apply(90.0, ActionCancelPending, 5.0))
	assert.Equal(t, 90.0, Apply(90.0, ActionAutoCancel, 5.0))
}

func TestApply_ClampsAtZero(t *testing.T) {
	assert.Equal(t, 0.0, Apply(3.0, ActionNoShow, 5.0))
	assert.Equal(t, 0.0, Apply(0.0, ActionCancelAccepted, 5.0))
}

func TestApply_ClampsAtHundred(t *testing.T) {
	// A corrupted over-100 rate still comes out bounded.
	assert.Equal(t, 100.0, Apply(110.0, ActionCancelPending, 5.0))
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"cancel-pending", "cancel-accepted", "no-show", "auto-cancel"} {
		action, err := ParseAction(s)
		assert.NoError(t, err)
		assert.Equal(t, Action(s), action)
	}

	_, err := ParseAction("rage-quit")
	assert.Error(t, err)
	_, err = ParseAction("")
	assert.Error(t, err)
}

func TestNewLedgerFromEnv(t *testing.T) {
	t.Setenv("RELIABILITY_BASE_PENALTY", "")
	assert.Equal(t, DefaultBasePenalty, NewLedgerFromEnv().Base)

	t.Setenv("RELIABILITY_BASE_PENALTY", "7.5")
	assert.Equal(t, 7.5, NewLedgerFromEnv().Base)

	// Garbage and negatives fall back to the default.
	t.Setenv("RELIABILITY_BASE_PENALTY", "lots")
	assert.Equal(t, DefaultBasePenalty, NewLedgerFromEnv().Base)
	t.Setenv("RELIABILITY_BASE_PENALTY", "-3")
	assert.Equal(t, DefaultBasePenalty, NewLedgerFromEnv().Base)
}

func TestPreview(t *testing.T) {
	ledger := Ledger{Base: 5.0}

	assert.Equal(t, 95.0, ledger.Preview(100.0, ActionCancelAccepted))
	assert.Equal(t, 90.0, ledger.Preview(100.0, ActionNoShow))
	assert.Equal(t, 100.0, ledger.Preview(100.0, ActionCancelPending))
}
