package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrWindowNotFound      = errors.New("availability window not found")
	ErrBlockNotFound       = errors.New("schedule block not found")
	ErrSlotFull            = errors.New("slot is at capacity")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDoctorInactive      = errors.New("doctor is not active")
	ErrUnavailable         = errors.New("storage unavailable")
)

// Repository contains all DB interactions needed by the ledger and the
// booking coordinator. Implementations must make TryReserve and Release
// single atomic read-modify-writes, and InsertSlots insert-if-absent.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveDoctors(ctx context.Context) ([]Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)

	// Availability inputs
	ListWindows(ctx context.Context, doctorID uuid.UUID) ([]availability.Window, error)
	CreateWindow(ctx context.Context, w availability.Window) (*availability.Window, error)
	DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error
	ListBlocksOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Block, error)
	CreateBlock(ctx context.Context, b availability.Block) (*availability.Block, error)
	DeleteBlock(ctx context.Context, doctorID, blockID uuid.UUID) error

	// Slot ledger
	GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	InsertSlots(ctx context.Context, slots []Slot) (int, error)
	ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error)
	TryReserve(ctx context.Context, slotID uuid.UUID) error
	Release(ctx context.Context, slotID uuid.UUID) error

	// Appointments
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)
	InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, from ...AppointmentStatus) (*Appointment, error)
	FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error)
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error

	// Query surface
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error)

	// InTx runs fn against a transaction-scoped repository; all writes
	// inside fn commit or roll back as a unit.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// Directory is the external read-only lookup used to validate bookings.
// The pg repository satisfies it; deployments may substitute a remote one.
type Directory interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
}

// Notifier receives notification intents fire-and-forget.
type Notifier interface {
	Notify(ctx context.Context, intent NotificationIntent)
}
