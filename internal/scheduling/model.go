package scheduling

import (
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
)

type AppointmentStatus string

const (
	StatusPending          AppointmentStatus = "pending"
	StatusConfirmed        AppointmentStatus = "confirmed"
	StatusInProgress       AppointmentStatus = "in_progress"
	StatusCompleted        AppointmentStatus = "completed"
	StatusCanceled         AppointmentStatus = "canceled"
	StatusCanceledByDoctor AppointmentStatus = "canceled_by_doctor"
	StatusNoShow           AppointmentStatus = "no_show"
	StatusRescheduled      AppointmentStatus = "rescheduled"
)

type SlotKind string

const (
	SlotRegular   SlotKind = "regular"
	SlotEmergency SlotKind = "emergency"
	SlotFollowUp  SlotKind = "follow_up"
)

// Role is the pre-authorized caller identity; authentication happens upstream.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

type Doctor struct {
	ID          uuid.UUID
	Name        string
	Specialty   *string
	CenterID    *uuid.UUID
	Active      bool
	SlotMinutes *int // per-doctor granularity override
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MedicalService struct {
	ID             uuid.UUID
	Name           string
	DefaultMinutes int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Procedure struct {
	ID        uuid.UUID
	ServiceID uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot is the atomic bookable unit. (DoctorID, Date, Start) is unique;
// BookedCount never exceeds Capacity.
type Slot struct {
	ID          uuid.UUID
	DoctorID    uuid.UUID
	Date        time.Time
	Start       availability.TimeOfDay
	End         availability.TimeOfDay
	Kind        SlotKind
	Capacity    int
	BookedCount int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s Slot) Available() bool { return s.BookedCount < s.Capacity }

func (s Slot) StartsAt() time.Time { return s.Start.At(s.Date) }
func (s Slot) EndsAt() time.Time   { return s.End.At(s.Date) }

// Appointment rows are never deleted; terminal states are retained for
// history. Every appointment occupies exactly one slot reservation.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	DoctorID        uuid.UUID
	ServiceID       uuid.UUID
	ProcedureID     *uuid.UUID
	SlotID          uuid.UUID
	Status          AppointmentStatus
	ScheduledAt     time.Time
	DurationMinutes int
	Reason          string
	Notes           *string
	RescheduledFrom *uuid.UUID
	ReminderSentAt  *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// AppointmentDetail joins display fields for the query surface.
type AppointmentDetail struct {
	Appointment
	Slot    *Slot
	Patient *Patient
	Doctor  *Doctor
	Service *MedicalService
}

type NotificationType string

const (
	NotifyConfirmationPending NotificationType = "appointment_confirmation"
	NotifyCancellation        NotificationType = "appointment_cancellation"
	NotifyRescheduled         NotificationType = "appointment_rescheduled"
	NotifyReminder            NotificationType = "appointment_reminder"
)

// NotificationIntent is handed to an external delivery service; the core
// never waits on delivery.
type NotificationIntent struct {
	UserID        uuid.UUID        `json:"user_id"`
	Type          NotificationType `json:"type"`
	AppointmentID uuid.UUID        `json:"appointment_id"`
}

// AppointmentFilter narrows the list query surface.
type AppointmentFilter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    *AppointmentStatus
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
