package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/scheduling-service/internal/metrics"
	"github.com/medportal/scheduling-service/internal/notify"
	redisclient "github.com/medportal/scheduling-service/internal/redis"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCanceled  = "APPOINTMENT_CANCELED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrSlotConflict      = errors.New("interval overlaps an existing appointment")
	ErrDoctorBusy        = errors.New("doctor calendar is being modified, please retry")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type BookRequest struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
	Type      Type
	ActorID   uuid.UUID
}

type Service struct {
	repo         Repository
	locker       redisclient.Locker
	availability *Availability
	notifier     notify.Notifier
	log          zerolog.Logger
	mc           *metrics.Collector

	now func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, notifier notify.Notifier, log zerolog.Logger, mc *metrics.Collector) *Service {
	return &Service{
		repo:         repo,
		locker:       locker,
		availability: NewAvailability(repo),
		notifier:     notifier,
		log:          log,
		mc:           mc,
		now:          time.Now,
	}
}

// Book reserves an interval on a doctor's calendar and creates the
// appointment in the booked state. The conflict check and the insert
// run under a per-doctor lock so that two concurrent requests for
// overlapping intervals cannot both succeed; the database exclusion
// constraint backs the same invariant.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	now := s.now()

	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrValidation, req.Type)
	}
	if !req.EndsAt.After(req.StartsAt) {
		return nil, fmt.Errorf("%w: end must be strictly after start", ErrValidation)
	}
	if !req.StartsAt.After(now) {
		return nil, fmt.Errorf("%w: start must be in the future", ErrValidation)
	}

	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	doctor, err := s.repo.GetDoctorByID(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	svc, err := s.repo.GetServiceByID(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load service: %w", err)
	}

	appt := &Appointment{
		ID:                   uuid.New(),
		PatientID:            req.PatientID,
		DoctorID:             req.DoctorID,
		ServiceID:            req.ServiceID,
		ServiceName:          svc.Name,
		StartsAt:             req.StartsAt,
		EndsAt:               req.EndsAt,
		Status:               StatusBooked,
		Type:                 req.Type,
		Price:                svc.Price,
		DoctorName:           doctor.Name,
		DoctorSpecialization: doctor.Specialization,
	}

	// In-person visits carry a clinic snapshot taken at booking time.
	if req.Type.RequiresClinic() {
		if doctor.ClinicID == nil {
			return nil, fmt.Errorf("%w: doctor has no clinic for in-person visits", ErrValidation)
		}
		clinic, err := s.repo.GetClinicByID(ctx, *doctor.ClinicID)
		if err != nil {
			return nil, fmt.Errorf("load clinic: %w", err)
		}
		appt.ClinicName = &clinic.Name
		appt.ClinicAddress = &clinic.Address
	}

	var created *Appointment

	err = s.locker.WithDoctorLock(ctx, req.DoctorID, func(lockCtx context.Context) error {
		booked, err := s.availability.IsBooked(lockCtx, req.DoctorID, req.StartsAt, req.EndsAt)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if booked {
			return ErrSlotConflict
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotConflict
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, req.ActorID, EventAppointmentBooked, map[string]any{
			"doctor_id":  req.DoctorID.String(),
			"patient_id": req.PatientID.String(),
			"starts_at":  req.StartsAt,
			"ends_at":    req.EndsAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrDoctorBusy
		}
		if errors.Is(err, ErrSlotConflict) && s.mc != nil {
			s.mc.SlotConflictsTotal.Inc()
		}
		return nil, err
	}

	s.countTransition(StatusBooked)
	s.publish(ctx, notify.KindBooked, created.ID, &req.ActorID, nil)

	return created, nil
}

// Confirm moves a booked appointment to confirmed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, StatusConfirmed) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusConfirmed)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusBooked, StatusConfirmed)
	if err != nil {
		// Lost a race: the row left booked between read and update.
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: appointment no longer booked", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, uuid.Nil, EventAppointmentConfirmed, nil)
	s.countTransition(StatusConfirmed)
	s.publish(ctx, notify.KindConfirmed, updated.ID, nil, nil)

	return updated, nil
}

// Cancel releases the appointment's interval by flipping it to
// canceled. Allowed only while the appointment has not started; a
// canceled or completed appointment cannot be canceled again.
func (s *Service) Cancel(ctx context.Context, id, actorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, StatusCanceled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCanceled)
	}
	if !appt.StartsAt.After(s.now()) {
		return nil, fmt.Errorf("%w: appointment already started", ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, appt.Status, StatusCanceled)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, actorID, EventAppointmentCanceled, map[string]any{
		"from": string(appt.Status),
	})
	s.countTransition(StatusCanceled)
	s.publish(ctx, notify.KindCanceled, updated.ID, &actorID, map[string]any{
		"starts_at": updated.StartsAt,
	})

	return updated, nil
}

// Complete marks a confirmed appointment as history once its end has
// passed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !CanTransition(appt.Status, StatusCompleted) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, StatusCompleted)
	}
	if appt.EndsAt.After(s.now()) {
		return nil, fmt.Errorf("%w: appointment has not ended yet", ErrInvalidTransition)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusConfirmed, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("%w: status changed concurrently", ErrInvalidTransition)
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, uuid.Nil, EventAppointmentCompleted, nil)
	s.countTransition(StatusCompleted)
	s.publish(ctx, notify.KindCompleted, updated.ID, nil, nil)

	return updated, nil
}

// CompleteElapsed is the periodic sweep run by the completion worker.
// It moves every confirmed appointment whose end has passed into
// completed and reports how many rows it touched.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	now := s.now()
	elapsed, err := s.repo.FindElapsedConfirmed(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find elapsed confirmed appointments: %w", err)
	}

	completed := 0
	for _, appt := range elapsed {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue // moved by someone else between find and update
			}
			s.log.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to complete appointment")
			continue
		}
		completed++

		s.logEvent(ctx, updated.ID, uuid.Nil, EventAppointmentCompleted, map[string]any{
			"reason": "worker",
		})
		s.countTransition(StatusCompleted)
		s.publish(ctx, notify.KindCompleted, updated.ID, nil, nil)
	}

	if s.mc != nil {
		s.mc.CompletedSweepsTotal.Inc()
	}

	return completed, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return appt, nil
}

// ListByPatient returns a patient's appointments filtered to the
// requested view. Upcoming means starting strictly after now and not
// canceled; past is everything else, canceled ones included whatever
// their date.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, view View, limit, offset int) ([]Appointment, error) {
	if !view.Valid() {
		return nil, fmt.Errorf("%w: unknown view %q", ErrValidation, view)
	}
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}

	if view == ViewAll {
		return appointments, nil
	}

	now := s.now()
	filtered := make([]Appointment, 0, len(appointments))
	for _, a := range appointments {
		if a.Upcoming(now) == (view == ViewUpcoming) {
			filtered = append(filtered, a)
		}
	}
	return filtered, nil
}

func (s *Service) countTransition(to Status) {
	if s.mc != nil {
		s.mc.TransitionsTotal.WithLabelValues(string(to)).Inc()
	}
}

// publish emits the notification hook event. Delivery is best-effort:
// failures are logged and counted, never returned.
func (s *Service) publish(ctx context.Context, kind string, appointmentID uuid.UUID, actorID *uuid.UUID, payload map[string]any) {
	if s.notifier == nil {
		return
	}

	ev := notify.Event{
		Kind:          kind,
		AppointmentID: appointmentID,
		ActorID:       actorID,
		At:            s.now(),
		Payload:       payload,
	}

	if err := s.notifier.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Str("appointment_id", appointmentID.String()).Msg("notification publish failed")
		if s.mc != nil {
			s.mc.NotifyFailuresTotal.Inc()
		}
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID, actorID uuid.UUID, eventType string, payload map[string]any) {
	var data []byte
	if payload != nil {
		var err error
		data, err = json.Marshal(payload)
		if err != nil {
			s.log.Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
			data = nil
		}
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &appointmentID,
		Payload:       data,
		CreatedAt:     s.now(),
	}
	if actorID != uuid.Nil {
		actor := actorID
		ev.ActorID = &actor
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("event_type", eventType).Str("appointment_id", appointmentID.String()).Msg("failed to insert event log")
	}
}
