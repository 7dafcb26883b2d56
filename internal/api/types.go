package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	PatientID   string  `json:"patient_id"`
	DoctorID    string  `json:"doctor_id"`
	ServiceID   string  `json:"service_id"`
	ProcedureID *string `json:"procedure_id,omitempty"`
	SlotID      string  `json:"slot_id"`
	Reason      string  `json:"reason,omitempty"`
}

type CancelAppointmentRequest struct {
	Actor string `json:"actor,omitempty"`
}

type RescheduleAppointmentRequest struct {
	NewSlotID string `json:"new_slot_id"`
}

type CreateWindowRequest struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type CreateBlockRequest struct {
	Kind     string    `json:"kind,omitempty"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	ServiceID       uuid.UUID  `json:"service_id"`
	ProcedureID     *uuid.UUID `json:"procedure_id,omitempty"`
	SlotID          uuid.UUID  `json:"slot_id"`
	Status          string     `json:"status"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Reason          string     `json:"reason,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	RescheduledFrom *uuid.UUID `json:"rescheduled_from,omitempty"`
}

type AppointmentDetailResponse struct {
	AppointmentResponse
	PatientName *string `json:"patient_name,omitempty"`
	DoctorName  *string `json:"doctor_name,omitempty"`
	ServiceName *string `json:"service_name,omitempty"`
}

type SlotResponse struct {
	ID        uuid.UUID `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	Start     string    `json:"start"`
	End       string    `json:"end"`
	Kind      string    `json:"kind"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
}

type WindowResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Weekday  int       `json:"weekday"`
	Start    string    `json:"start"`
	End      string    `json:"end"`
}

type BlockResponse struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctor_id"`
	Kind     string    `json:"kind"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
