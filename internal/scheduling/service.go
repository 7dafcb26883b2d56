package scheduling

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
	"github.com/caremesh/clinic-scheduling/internal/config"
)

// Service is the booking coordinator: the only entry point that creates or
// mutates appointments in ways that touch slot capacity. Every such path
// runs the reservation and the appointment write in one transaction.
type Service struct {
	repo      Repository
	directory Directory
	ledger    *Ledger
	notifier  Notifier
	cfg       config.Config
}

func NewService(repo Repository, directory Directory, ledger *Ledger, notifier Notifier, cfg config.Config) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		ledger:    ledger,
		notifier:  notifier,
		cfg:       cfg,
	}
}

type CreateParams struct {
	PatientID   uuid.UUID
	DoctorID    uuid.UUID
	ServiceID   uuid.UUID
	ProcedureID *uuid.UUID
	SlotID      uuid.UUID
	Reason      string
}

// Create books a slot for a patient. The slot reservation and the
// appointment row are committed atomically; losing the reservation race
// surfaces as ErrSlotFull with no other effect.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Appointment, error) {
	if _, err := s.repo.GetPatientByID(ctx, p.PatientID); err != nil {
		return nil, err
	}

	doctor, err := s.directory.GetDoctorByID(ctx, p.DoctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	if _, err := s.directory.GetServiceByID(ctx, p.ServiceID); err != nil {
		return nil, err
	}

	slot, err := s.repo.GetSlotByID(ctx, p.SlotID)
	if err != nil {
		return nil, err
	}
	if slot.DoctorID != p.DoctorID {
		return nil, ErrSlotNotFound
	}

	var created *Appointment
	err = s.repo.InTx(ctx, func(tx Repository) error {
		if err := tx.TryReserve(ctx, p.SlotID); err != nil {
			return err
		}

		appt := Appointment{
			PatientID:       p.PatientID,
			DoctorID:        p.DoctorID,
			ServiceID:       p.ServiceID,
			ProcedureID:     p.ProcedureID,
			SlotID:          p.SlotID,
			Status:          StatusPending,
			ScheduledAt:     slot.StartsAt(),
			DurationMinutes: int(slot.End - slot.Start),
			Reason:          p.Reason,
		}

		created, err = tx.InsertAppointment(ctx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, NotificationIntent{
		UserID:        created.PatientID,
		Type:          NotifyConfirmationPending,
		AppointmentID: created.ID,
	})

	return created, nil
}

// Confirm moves a pending appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusConfirmed)
}

// CheckIn moves a pending or confirmed appointment to in_progress.
func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusInProgress)
}

// Complete finishes an in-progress consult.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted)
}

// transition applies a pure status change with no slot-capacity effect.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, to, appt.Status)
	if errors.Is(err, ErrAppointmentNotFound) {
		// Lost a race with a concurrent transition.
		return nil, ErrInvalidTransition
	}
	return updated, err
}

// Cancel transitions the appointment to canceled or canceled_by_doctor
// depending on the acting role and releases its slot exactly once.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Role) (*Appointment, error) {
	target := cancelStatusFor(actor)

	var updated *Appointment
	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(appt.Status, target) {
			return ErrInvalidTransition
		}

		updated, err = tx.UpdateAppointmentStatus(ctx, id, target, appt.Status)
		if err != nil {
			return err
		}
		return tx.Release(ctx, appt.SlotID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, NotificationIntent{
		UserID:        updated.PatientID,
		Type:          NotifyCancellation,
		AppointmentID: updated.ID,
	})

	return updated, nil
}

// Reschedule reserves the new slot first; only then is the old slot released
// and the appointment superseded. If the new reservation fails nothing
// changes and the caller sees ErrSlotFull. The old row is retained as
// rescheduled history; the replacement re-enters pending on the new slot.
func (s *Service) Reschedule(ctx context.Context, id, newSlotID uuid.UUID) (*Appointment, error) {
	var created *Appointment
	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(appt.Status, StatusRescheduled) {
			return ErrInvalidTransition
		}

		newSlot, err := tx.GetSlotByID(ctx, newSlotID)
		if err != nil {
			return err
		}
		if newSlot.DoctorID != appt.DoctorID {
			return ErrSlotNotFound
		}

		if err := tx.TryReserve(ctx, newSlotID); err != nil {
			return err
		}
		if err := tx.Release(ctx, appt.SlotID); err != nil {
			return err
		}
		if _, err := tx.UpdateAppointmentStatus(ctx, id, StatusRescheduled, appt.Status); err != nil {
			return err
		}

		oldID := appt.ID
		replacement := Appointment{
			PatientID:       appt.PatientID,
			DoctorID:        appt.DoctorID,
			ServiceID:       appt.ServiceID,
			ProcedureID:     appt.ProcedureID,
			SlotID:          newSlotID,
			Status:          StatusPending,
			ScheduledAt:     newSlot.StartsAt(),
			DurationMinutes: int(newSlot.End - newSlot.Start),
			Reason:          appt.Reason,
			Notes:           appt.Notes,
			RescheduledFrom: &oldID,
		}
		created, err = tx.InsertAppointment(ctx, replacement)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, NotificationIntent{
		UserID:        created.PatientID,
		Type:          NotifyRescheduled,
		AppointmentID: created.ID,
	})

	return created, nil
}

// MarkNoShow transitions a pending or confirmed appointment to no_show and
// releases the (already elapsed) slot.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var updated *Appointment
	err := s.repo.InTx(ctx, func(tx Repository) error {
		appt, err := tx.LockAppointment(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(appt.Status, StatusNoShow) {
			return ErrInvalidTransition
		}

		updated, err = tx.UpdateAppointmentStatus(ctx, id, StatusNoShow, appt.Status)
		if err != nil {
			return err
		}
		return tx.Release(ctx, appt.SlotID)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SweepNoShows is called periodically by the slot worker. Appointments
// still pending/confirmed past their scheduled end plus the grace period
// become no_show.
func (s *Service) SweepNoShows(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.NoShowGrace)
	overdue, err := s.repo.FindOverdue(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find overdue appointments: %w", err)
	}

	for _, appt := range overdue {
		if _, err := s.MarkNoShow(ctx, appt.ID); err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrAppointmentNotFound) {
				continue // transitioned concurrently
			}
			log.Printf("failed to mark appointment %s as no_show: %v", appt.ID, err)
		}
	}
	return nil
}

// SweepReminders emits a reminder intent once per appointment starting
// within the reminder lead window.
func (s *Service) SweepReminders(ctx context.Context) error {
	now := time.Now()
	due, err := s.repo.FindDueReminders(ctx, now, now.Add(s.cfg.ReminderLead))
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		s.notifier.Notify(ctx, NotificationIntent{
			UserID:        appt.PatientID,
			Type:          NotifyReminder,
			AppointmentID: appt.ID,
		})
		if err := s.repo.MarkReminderSent(ctx, appt.ID, now); err != nil {
			log.Printf("failed to mark reminder sent for appointment %s: %v", appt.ID, err)
		}
	}
	return nil
}

// MaterializeHorizon ensures slots exist for every active doctor over the
// configured booking horizon.
func (s *Service) MaterializeHorizon(ctx context.Context) error {
	doctors, err := s.repo.ListActiveDoctors(ctx)
	if err != nil {
		return fmt.Errorf("list active doctors: %w", err)
	}

	now := time.Now()
	to := now.AddDate(0, 0, s.cfg.HorizonDays)
	for _, doctor := range doctors {
		if _, err := s.ledger.EnsureSlots(ctx, &doctor, now, to, now); err != nil {
			log.Printf("failed to materialize slots for doctor %s: %v", doctor.ID, err)
		}
	}
	return nil
}

// ListAvailableSlots materializes any missing slots for the range, then
// returns those with remaining capacity.
func (s *Service) ListAvailableSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	doctor, err := s.directory.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.Active {
		return nil, ErrDoctorInactive
	}

	if _, err := s.ledger.EnsureSlots(ctx, doctor, from, to, time.Now()); err != nil {
		return nil, err
	}
	return s.ledger.ListOpen(ctx, doctorID, from, to)
}

// CreateWindow validates and stores a recurring availability window.
func (s *Service) CreateWindow(ctx context.Context, w availability.Window) (*availability.Window, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDoctorByID(ctx, w.DoctorID); err != nil {
		return nil, err
	}
	return s.repo.CreateWindow(ctx, w)
}

func (s *Service) DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error {
	return s.repo.DeleteWindow(ctx, doctorID, windowID)
}

// CreateBlock validates and stores an unavailability block.
func (s *Service) CreateBlock(ctx context.Context, b availability.Block) (*availability.Block, error) {
	if b.Kind == "" {
		b.Kind = availability.BlockUnavailable
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.directory.GetDoctorByID(ctx, b.DoctorID); err != nil {
		return nil, err
	}
	return s.repo.CreateBlock(ctx, b)
}

func (s *Service) DeleteBlock(ctx context.Context, doctorID, blockID uuid.UUID) error {
	return s.repo.DeleteBlock(ctx, doctorID, blockID)
}

// GetAppointment retrieves a fully hydrated appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	return s.repo.GetAppointmentDetail(ctx, id)
}

// ListAppointments retrieves appointments matching the filter.
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.ListAppointments(ctx, f)
}
