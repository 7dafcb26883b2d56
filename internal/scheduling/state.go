package scheduling

// transitions is the legal status graph. Anything absent fails with
// ErrInvalidTransition.
var transitions = map[AppointmentStatus]map[AppointmentStatus]bool{
	StatusPending: {
		StatusConfirmed:        true,
		StatusInProgress:       true,
		StatusCanceled:         true,
		StatusCanceledByDoctor: true,
		StatusNoShow:           true,
		StatusRescheduled:      true,
	},
	StatusConfirmed: {
		StatusInProgress:       true,
		StatusCanceled:         true,
		StatusCanceledByDoctor: true,
		StatusNoShow:           true,
		StatusRescheduled:      true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// terminal states never transition again. rescheduled is terminal for the
// superseded row; the replacement row re-enters pending.
var terminal = map[AppointmentStatus]bool{
	StatusCompleted:        true,
	StatusCanceled:         true,
	StatusCanceledByDoctor: true,
	StatusNoShow:           true,
	StatusRescheduled:      true,
}

// releasing states give the slot reservation back on entry.
var releasing = map[AppointmentStatus]bool{
	StatusCanceled:         true,
	StatusCanceledByDoctor: true,
	StatusNoShow:           true,
	StatusRescheduled:      true,
}

func CanTransition(from, to AppointmentStatus) bool {
	return transitions[from][to]
}

func IsTerminal(s AppointmentStatus) bool { return terminal[s] }

// ReleasesSlot reports whether entering s returns capacity to the slot.
func ReleasesSlot(s AppointmentStatus) bool { return releasing[s] }

// cancelStatusFor maps the acting role onto the cancellation status.
func cancelStatusFor(actor Role) AppointmentStatus {
	if actor == RoleDoctor || actor == RoleAdmin {
		return StatusCanceledByDoctor
	}
	return StatusCanceled
}
