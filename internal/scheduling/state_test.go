package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to AppointmentStatus
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCanceled, true},
		{StatusPending, StatusCanceledByDoctor, true},
		{StatusPending, StatusNoShow, true},
		{StatusPending, StatusRescheduled, true},
		{StatusConfirmed, StatusInProgress, true},
		{StatusConfirmed, StatusCanceled, true},
		{StatusConfirmed, StatusCanceledByDoctor, true},
		{StatusConfirmed, StatusNoShow, true},
		{StatusConfirmed, StatusRescheduled, true},
		{StatusInProgress, StatusCompleted, true},

		{StatusPending, StatusCompleted, false},
		{StatusConfirmed, StatusConfirmed, false},
		{StatusInProgress, StatusCanceled, false},
		{StatusInProgress, StatusNoShow, false},
		{StatusCompleted, StatusCanceled, false},
		{StatusCanceled, StatusPending, false},
		{StatusCanceledByDoctor, StatusConfirmed, false},
		{StatusNoShow, StatusPending, false},
		{StatusRescheduled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCompleted, StatusCanceled, StatusCanceledByDoctor, StatusNoShow, StatusRescheduled} {
		assert.True(t, IsTerminal(s), "%s should be terminal", s)
		for _, to := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCanceled} {
			assert.False(t, CanTransition(s, to), "%s -> %s should be illegal", s, to)
		}
	}
	for _, s := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusInProgress} {
		assert.False(t, IsTerminal(s), "%s should not be terminal", s)
	}
}

func TestReleasingStates(t *testing.T) {
	for _, s := range []AppointmentStatus{StatusCanceled, StatusCanceledByDoctor, StatusNoShow, StatusRescheduled} {
		assert.True(t, ReleasesSlot(s), "%s should release the slot", s)
	}
	for _, s := range []AppointmentStatus{StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted} {
		assert.False(t, ReleasesSlot(s), "%s should keep the slot consumed", s)
	}
}

func TestCancelStatusFor(t *testing.T) {
	assert.Equal(t, StatusCanceled, cancelStatusFor(RolePatient))
	assert.Equal(t, StatusCanceledByDoctor, cancelStatusFor(RoleDoctor))
	assert.Equal(t, StatusCanceledByDoctor, cancelStatusFor(RoleAdmin))
}
