package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/caremesh/clinic-scheduling/internal/availability"
)

// DB is the querier surface shared by pgxpool.Pool and pgx.Tx, which lets
// InTx hand out a transaction-scoped repository and tests inject a mock pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	db DB
}

func NewPgRepository(db DB) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, service_id, procedure_id, slot_id, status,
		scheduled_at, duration_minutes, reason, notes, rescheduled_from, reminder_sent_at,
		created_at, updated_at`

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialty,
		&d.CenterID,
		&d.Active,
		&d.SlotMinutes,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.DefaultMinutes,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanWindow(row pgx.Row) (*availability.Window, error) {
	var w availability.Window
	var weekday, startMinute, endMinute int
	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&weekday,
		&startMinute,
		&endMinute,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWindowNotFound
		}
		return nil, err
	}
	w.Weekday = time.Weekday(weekday)
	w.Start = availability.TimeOfDay(startMinute)
	w.End = availability.TimeOfDay(endMinute)
	return &w, nil
}

func scanBlock(row pgx.Row) (*availability.Block, error) {
	var b availability.Block
	var kind string
	err := row.Scan(
		&b.ID,
		&b.DoctorID,
		&kind,
		&b.StartsAt,
		&b.EndsAt,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	b.Kind = availability.BlockKind(kind)
	return &b, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var kind string
	var startMinute, endMinute int
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&startMinute,
		&endMinute,
		&kind,
		&s.Capacity,
		&s.BookedCount,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	s.Kind = SlotKind(kind)
	s.Start = availability.TimeOfDay(startMinute)
	s.End = availability.TimeOfDay(endMinute)
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.ServiceID,
		&a.ProcedureID,
		&a.SlotID,
		&status,
		&a.ScheduledAt,
		&a.DurationMinutes,
		&a.Reason,
		&a.Notes,
		&a.RescheduledFrom,
		&a.ReminderSentAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	a.Status = AppointmentStatus(status)
	return &a, nil
}

// Directory lookups

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, specialty, center_id, active, slot_minutes, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialty, center_id, active, slot_minutes, created_at, updated_at
		FROM doctors
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	return result, rows.Err()
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, name, default_minutes, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

// Availability inputs

func (r *PgRepository) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]availability.Window, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
		FROM availability_windows
		WHERE doctor_id = $1
		ORDER BY weekday, start_minute
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Window
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateWindow(ctx context.Context, w availability.Window) (*availability.Window, error) {
	id := w.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO availability_windows (id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING id, doctor_id, weekday, start_minute, end_minute, created_at, updated_at
	`, id, w.DoctorID, int(w.Weekday), int(w.Start), int(w.End))
	return scanWindow(row)
}

func (r *PgRepository) DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM availability_windows
		WHERE id = $1 AND doctor_id = $2
	`, windowID, doctorID)
	if err != nil {
		return fmt.Errorf("delete window: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

func (r *PgRepository) ListBlocksOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Block, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, kind, starts_at, ends_at, created_at
		FROM schedule_blocks
		WHERE doctor_id = $1
		  AND starts_at < $3
		  AND ends_at > $2
		ORDER BY starts_at
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []availability.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	return result, rows.Err()
}

func (r *PgRepository) CreateBlock(ctx context.Context, b availability.Block) (*availability.Block, error) {
	id := b.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO schedule_blocks (id, doctor_id, kind, starts_at, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, doctor_id, kind, starts_at, ends_at, created_at
	`, id, b.DoctorID, string(b.Kind), b.StartsAt, b.EndsAt)
	return scanBlock(row)
}

func (r *PgRepository) DeleteBlock(ctx context.Context, doctorID, blockID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM schedule_blocks
		WHERE id = $1 AND doctor_id = $2
	`, blockID, doctorID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrBlockNotFound
	}
	return nil
}

// Slot ledger

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, doctor_id, slot_date, start_minute, end_minute, kind, capacity, booked_count, created_at, updated_at
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

// InsertSlots materializes slots insert-if-absent: existing rows, including
// manual admin edits to capacity or kind, are never overwritten. Returns how
// many rows were actually inserted.
func (r *PgRepository) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	inserted := 0
	for _, s := range slots {
		id := s.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		tag, err := r.db.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, slot_date, start_minute, end_minute, kind, capacity, booked_count, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 0, now(), now())
			ON CONFLICT (doctor_id, slot_date, start_minute) DO NOTHING
		`, id, s.DoctorID, s.Date, int(s.Start), int(s.End), string(s.Kind), s.Capacity)
		if err != nil {
			return inserted, fmt.Errorf("insert slot: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (r *PgRepository) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, slot_date, start_minute, end_minute, kind, capacity, booked_count, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1
		  AND slot_date >= $2
		  AND slot_date <= $3
		  AND booked_count < capacity
		ORDER BY slot_date, start_minute
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

// TryReserve is the critical section of the whole core: a single conditional
// read-modify-write on the occupancy counter. Never read-then-write.
func (r *PgRepository) TryReserve(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET booked_count = booked_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count < capacity
	`, slotID)
	if err != nil {
		return fmt.Errorf("reserve slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows affected: slot is either full or absent.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if !exists {
		return ErrSlotNotFound
	}
	return ErrSlotFull
}

// Release decrements occupancy, floored at zero. Pairing 1:1 with a prior
// reservation is the coordinator's responsibility.
func (r *PgRepository) Release(ctx context.Context, slotID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE slots
		SET booked_count = booked_count - 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count > 0
	`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`, slotID).Scan(&exists); err != nil {
		return fmt.Errorf("check slot: %w", err)
	}
	if !exists {
		return ErrSlotNotFound
	}
	return nil
}

// Appointments

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// LockAppointment reads the row FOR UPDATE; only meaningful inside InTx.
func (r *PgRepository) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, service_id, procedure_id, slot_id, status,
			scheduled_at, duration_minutes, reason, notes, rescheduled_from, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.DoctorID, a.ServiceID, a.ProcedureID, a.SlotID, string(a.Status),
		a.ScheduledAt, a.DurationMinutes, a.Reason, a.Notes, a.RescheduledFrom)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, from ...AppointmentStatus) (*Appointment, error) {
	fromStates := make([]string, len(from))
	for i, s := range from {
		fromStates[i] = string(s)
	}
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, string(to), fromStates)
	return scanAppointment(row)
}

func (r *PgRepository) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND scheduled_at + make_interval(mins => duration_minutes) < $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('pending', 'confirmed')
		  AND reminder_sent_at IS NULL
		  AND scheduled_at >= $1
		  AND scheduled_at < $2
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent_at = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

// Query surface

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &AppointmentDetail{Appointment: *appt}

	if detail.Slot, err = r.GetSlotByID(ctx, appt.SlotID); err != nil && !errors.Is(err, ErrSlotNotFound) {
		return nil, err
	}
	if detail.Patient, err = r.GetPatientByID(ctx, appt.PatientID); err != nil && !errors.Is(err, ErrPatientNotFound) {
		return nil, err
	}
	if detail.Doctor, err = r.GetDoctorByID(ctx, appt.DoctorID); err != nil && !errors.Is(err, ErrDoctorNotFound) {
		return nil, err
	}
	if detail.Service, err = r.GetServiceByID(ctx, appt.ServiceID); err != nil && !errors.Is(err, ErrServiceNotFound) {
		return nil, err
	}

	return detail, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE 1=1`
	var args []any

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PatientID != nil {
		query += ` AND patient_id = ` + next(*f.PatientID)
	}
	if f.DoctorID != nil {
		query += ` AND doctor_id = ` + next(*f.DoctorID)
	}
	if f.Status != nil {
		query += ` AND status = ` + next(string(*f.Status))
	}
	if f.From != nil {
		query += ` AND scheduled_at >= ` + next(*f.From)
	}
	if f.To != nil {
		query += ` AND scheduled_at < ` + next(*f.To)
	}

	query += ` ORDER BY scheduled_at`
	query += ` LIMIT ` + next(f.Limit)
	query += ` OFFSET ` + next(f.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, AppointmentDetail{Appointment: *a})
	}
	return result, rows.Err()
}

// InTx wraps fn in a pgx transaction. pgx.Tx satisfies DB, so the callback
// repository issues every statement against the same transaction.
func (r *PgRepository) InTx(ctx context.Context, fn func(Repository) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PgRepository{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrUnavailable, err)
	}
	return nil
}
