package scheduling

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
)

var errInsertFailed = errors.New("induced insert failure")

// memRepo is an in-memory Repository (and Directory) for coordinator tests.
// InTx serializes transactions and restores slot/appointment state on error,
// mirroring the all-or-nothing guarantee of the pg implementation.
type memRepo struct {
	mu   sync.Mutex
	txMu sync.Mutex

	doctors      map[uuid.UUID]Doctor
	patients     map[uuid.UUID]Patient
	services     map[uuid.UUID]MedicalService
	windows      map[uuid.UUID]availability.Window
	blocks       map[uuid.UUID]availability.Block
	slots        map[uuid.UUID]Slot
	appointments map[uuid.UUID]Appointment

	failInsertAppointment bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		doctors:      make(map[uuid.UUID]Doctor),
		patients:     make(map[uuid.UUID]Patient),
		services:     make(map[uuid.UUID]MedicalService),
		windows:      make(map[uuid.UUID]availability.Window),
		blocks:       make(map[uuid.UUID]availability.Block),
		slots:        make(map[uuid.UUID]Slot),
		appointments: make(map[uuid.UUID]Appointment),
	}
}

// Seed and inspection helpers

func (m *memRepo) addDoctor(active bool) Doctor {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := Doctor{ID: uuid.New(), Name: "Dr. Test", Active: active}
	m.doctors[d.ID] = d
	return d
}

func (m *memRepo) addPatient() Patient {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := Patient{ID: uuid.New(), Name: "Pat Test"}
	m.patients[p.ID] = p
	return p
}

func (m *memRepo) addService() MedicalService {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := MedicalService{ID: uuid.New(), Name: "Consultation", DefaultMinutes: 30}
	m.services[s.ID] = s
	return s
}

func (m *memRepo) addSlot(doctorID uuid.UUID, date time.Time, start availability.TimeOfDay, capacity, booked int) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Slot{
		ID:          uuid.New(),
		DoctorID:    doctorID,
		Date:        date,
		Start:       start,
		End:         start + 30,
		Kind:        SlotRegular,
		Capacity:    capacity,
		BookedCount: booked,
	}
	m.slots[s.ID] = s
	return s
}

func (m *memRepo) addWindow(doctorID uuid.UUID, weekday time.Weekday, start, end availability.TimeOfDay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := availability.Window{ID: uuid.New(), DoctorID: doctorID, Weekday: weekday, Start: start, End: end}
	m.windows[w.ID] = w
}

func (m *memRepo) slot(id uuid.UUID) Slot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[id]
}

func (m *memRepo) appointment(id uuid.UUID) Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[id]
}

func (m *memRepo) setAppointmentStatus(id uuid.UUID, s AppointmentStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.appointments[id]
	a.Status = s
	m.appointments[id] = a
}

// Repository implementation

func (m *memRepo) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memRepo) ListActiveDoctors(ctx context.Context) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Doctor
	for _, d := range m.doctors {
		if d.Active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memRepo) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *memRepo) GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return &s, nil
}

func (m *memRepo) ListWindows(ctx context.Context, doctorID uuid.UUID) ([]availability.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.Window
	for _, w := range m.windows {
		if w.DoctorID == doctorID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memRepo) CreateWindow(ctx context.Context, w availability.Window) (*availability.Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	m.windows[w.ID] = w
	return &w, nil
}

func (m *memRepo) DeleteWindow(ctx context.Context, doctorID, windowID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[windowID]
	if !ok || w.DoctorID != doctorID {
		return ErrWindowNotFound
	}
	delete(m.windows, windowID)
	return nil
}

func (m *memRepo) ListBlocksOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]availability.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []availability.Block
	for _, b := range m.blocks {
		if b.DoctorID == doctorID && b.StartsAt.Before(to) && b.EndsAt.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memRepo) CreateBlock(ctx context.Context, b availability.Block) (*availability.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.blocks[b.ID] = b
	return &b, nil
}

func (m *memRepo) DeleteBlock(ctx context.Context, doctorID, blockID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[blockID]
	if !ok || b.DoctorID != doctorID {
		return ErrBlockNotFound
	}
	delete(m.blocks, blockID)
	return nil
}

func (m *memRepo) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &s, nil
}

func (m *memRepo) InsertSlots(ctx context.Context, slots []Slot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inserted := 0
	for _, s := range slots {
		conflict := false
		for _, existing := range m.slots {
			if existing.DoctorID == s.DoctorID && existing.Date.Equal(s.Date) && existing.Start == s.Start {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		m.slots[s.ID] = s
		inserted++
	}
	return inserted, nil
}

func (m *memRepo) ListOpenSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Slot
	for _, s := range m.slots {
		if s.DoctorID != doctorID || !s.Available() {
			continue
		}
		if s.Date.Before(from) || s.Date.After(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out, nil
}

func (m *memRepo) TryReserve(ctx context.Context, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if s.BookedCount >= s.Capacity {
		return ErrSlotFull
	}
	s.BookedCount++
	m.slots[slotID] = s
	return nil
}

func (m *memRepo) Release(ctx context.Context, slotID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		s.BookedCount--
		m.slots[slotID] = s
	}
	return nil
}

func (m *memRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (m *memRepo) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return m.GetAppointmentByID(ctx, id)
}

func (m *memRepo) InsertAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertAppointment {
		return nil, errInsertFailed
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.appointments[a.ID] = a
	return &a, nil
}

func (m *memRepo) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, from ...AppointmentStatus) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	eligible := false
	for _, f := range from {
		if a.Status == f {
			eligible = true
			break
		}
	}
	if !eligible {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	m.appointments[id] = a
	return &a, nil
}

func (m *memRepo) FindOverdue(ctx context.Context, cutoff time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if (a.Status == StatusPending || a.Status == StatusConfirmed) && a.EndsAt().Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status != StatusPending && a.Status != StatusConfirmed {
			continue
		}
		if a.ReminderSentAt != nil {
			continue
		}
		if !a.ScheduledAt.Before(from) && a.ScheduledAt.Before(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memRepo) MarkReminderSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.ReminderSentAt = &at
	m.appointments[id] = a
	return nil
}

func (m *memRepo) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	a, err := m.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	detail := &AppointmentDetail{Appointment: *a}
	if s, ok := m.slots[a.SlotID]; ok {
		detail.Slot = &s
	}
	if p, ok := m.patients[a.PatientID]; ok {
		detail.Patient = &p
	}
	if d, ok := m.doctors[a.DoctorID]; ok {
		detail.Doctor = &d
	}
	if svc, ok := m.services[a.ServiceID]; ok {
		detail.Service = &svc
	}
	return detail, nil
}

func (m *memRepo) ListAppointments(ctx context.Context, f AppointmentFilter) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.From != nil && a.ScheduledAt.Before(*f.From) {
			continue
		}
		if f.To != nil && !a.ScheduledAt.Before(*f.To) {
			continue
		}
		out = append(out, AppointmentDetail{Appointment: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) InTx(ctx context.Context, fn func(Repository) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	slotSnap := maps.Clone(m.slots)
	apptSnap := maps.Clone(m.appointments)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.slots = slotSnap
		m.appointments = apptSnap
		m.mu.Unlock()
		return err
	}
	return nil
}

// passLocker runs the critical section without any locking.
type passLocker struct{}

func (passLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	return fn(ctx)
}

// captureNotifier records emitted intents.
type captureNotifier struct {
	mu      sync.Mutex
	intents []NotificationIntent
}

func (n *captureNotifier) Notify(ctx context.Context, intent NotificationIntent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = append(n.intents, intent)
}

func (n *captureNotifier) byType(t NotificationType) []NotificationIntent {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []NotificationIntent
	for _, i := range n.intents {
		if i.Type == t {
			out = append(out, i)
		}
	}
	return out
}
