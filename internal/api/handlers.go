package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caremesh/clinic-scheduling/internal/availability"
	"github.com/caremesh/clinic-scheduling/internal/scheduling"
)

const dateLayout = "2006-01-02"

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_service_id", "service_id must be a valid UUID")
			return
		}
		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}

		params := scheduling.CreateParams{
			PatientID: patientID,
			DoctorID:  doctorID,
			ServiceID: serviceID,
			SlotID:    slotID,
			Reason:    req.Reason,
		}
		if req.ProcedureID != nil {
			procedureID, err := uuid.Parse(*req.ProcedureID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_procedure_id", "procedure_id must be a valid UUID")
				return
			}
			params.ProcedureID = &procedureID
		}

		appt, err := svc.Create(r.Context(), params)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		// Body is optional; absent or empty means a patient-initiated cancel.
		var req CancelAppointmentRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		actor := scheduling.RolePatient
		switch req.Actor {
		case "", string(scheduling.RolePatient):
		case string(scheduling.RoleDoctor):
			actor = scheduling.RoleDoctor
		case string(scheduling.RoleAdmin):
			actor = scheduling.RoleAdmin
		default:
			writeError(w, http.StatusBadRequest, "invalid_actor", "actor must be patient, doctor or admin")
			return
		}

		appt, err := svc.Cancel(r.Context(), id, actor)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		var req RescheduleAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		newSlotID, err := uuid.Parse(req.NewSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_new_slot_id", "new_slot_id must be a valid UUID")
			return
		}

		appt, err := svc.Reschedule(r.Context(), id, newSlotID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

// transitionHandler serves the pure status transitions that share a shape:
// POST with an ID, no body, updated appointment back.
func transitionHandler(fn func(r *http.Request, id uuid.UUID) (*scheduling.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := fn(r, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toDetailResponse(detail))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f scheduling.AppointmentFilter
		q := r.URL.Query()

		if v := q.Get("patient_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			f.PatientID = &id
		}
		if v := q.Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = &id
		}
		if v := q.Get("status"); v != "" {
			status := scheduling.AppointmentStatus(v)
			f.Status = &status
		}
		if v := q.Get("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be RFC 3339")
				return
			}
			f.From = &t
		}
		if v := q.Get("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be RFC 3339")
				return
			}
			f.To = &t
		}
		f.Limit = intQuery(q.Get("limit"))
		f.Offset = intQuery(q.Get("offset"))

		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toDetailResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listSlotsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		from := time.Now()
		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			from = t
		}
		to := from.AddDate(0, 0, 7)
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
			to = t
		}
		if to.Before(from) {
			writeError(w, http.StatusBadRequest, "invalid_range", "to must not precede from")
			return
		}

		slots, err := svc.ListAvailableSlots(r.Context(), doctorID, from, to)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func createWindowHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		var req CreateWindowRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		start, err := availability.ParseTimeOfDay(req.Start)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start", "start must be HH:MM")
			return
		}
		end, err := availability.ParseTimeOfDay(req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end", "end must be HH:MM")
			return
		}

		window, err := svc.CreateWindow(r.Context(), availability.Window{
			DoctorID: doctorID,
			Weekday:  time.Weekday(req.Weekday),
			Start:    start,
			End:      end,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWindowResponse(window))
	}
}

func deleteWindowHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "doctorID")
		if !ok {
			return
		}
		windowID, ok := parseIDParam(w, r, "windowID")
		if !ok {
			return
		}

		if err := svc.DeleteWindow(r.Context(), doctorID, windowID); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func createBlockHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "doctorID")
		if !ok {
			return
		}

		var req CreateBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		block, err := svc.CreateBlock(r.Context(), availability.Block{
			DoctorID: doctorID,
			Kind:     availability.BlockKind(req.Kind),
			StartsAt: req.StartsAt,
			EndsAt:   req.EndsAt,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBlockResponse(block))
	}
}

func deleteBlockHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := parseIDParam(w, r, "doctorID")
		if !ok {
			return
		}
		blockID, ok := parseIDParam(w, r, "blockID")
		if !ok {
			return
		}

		if err := svc.DeleteBlock(r.Context(), doctorID, blockID); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func intQuery(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrWindowNotFound):
		writeError(w, http.StatusNotFound, "window_not_found", err.Error())
	case errors.Is(err, scheduling.ErrBlockNotFound):
		writeError(w, http.StatusNotFound, "block_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrDoctorInactive):
		writeError(w, http.StatusUnprocessableEntity, "doctor_inactive", err.Error())
	case errors.Is(err, availability.ErrInvalidWindow):
		writeError(w, http.StatusUnprocessableEntity, "invalid_interval", err.Error())
	case errors.Is(err, scheduling.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		ServiceID:       a.ServiceID,
		ProcedureID:     a.ProcedureID,
		SlotID:          a.SlotID,
		Status:          string(a.Status),
		ScheduledAt:     a.ScheduledAt,
		DurationMinutes: a.DurationMinutes,
		Reason:          a.Reason,
		Notes:           a.Notes,
		RescheduledFrom: a.RescheduledFrom,
	}
}

func toDetailResponse(d *scheduling.AppointmentDetail) AppointmentDetailResponse {
	resp := AppointmentDetailResponse{AppointmentResponse: toAppointmentResponse(&d.Appointment)}
	if d.Patient != nil {
		resp.PatientName = &d.Patient.Name
	}
	if d.Doctor != nil {
		resp.DoctorName = &d.Doctor.Name
	}
	if d.Service != nil {
		resp.ServiceName = &d.Service.Name
	}
	return resp
}

func toSlotResponse(s scheduling.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		DoctorID:  s.DoctorID,
		Date:      s.Date.Format(dateLayout),
		Start:     s.Start.String(),
		End:       s.End.String(),
		Kind:      string(s.Kind),
		Capacity:  s.Capacity,
		Remaining: s.Capacity - s.BookedCount,
	}
}

func toWindowResponse(w *availability.Window) WindowResponse {
	return WindowResponse{
		ID:       w.ID,
		DoctorID: w.DoctorID,
		Weekday:  int(w.Weekday),
		Start:    w.Start.String(),
		End:      w.End.String(),
	}
}

func toBlockResponse(b *availability.Block) BlockResponse {
	return BlockResponse{
		ID:       b.ID,
		DoctorID: b.DoctorID,
		Kind:     string(b.Kind),
		StartsAt: b.StartsAt,
		EndsAt:   b.EndsAt,
	}
}
