package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrClinicNotFound      = errors.New("clinic not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken surfaces the database exclusion constraint when a
	// write slips past the in-process conflict check.
	ErrSlotTaken = errors.New("interval already taken for this doctor")
)

// View selects which part of a patient's history a listing returns.
type View string

const (
	ViewAll      View = "all"
	ViewUpcoming View = "upcoming"
	ViewPast     View = "past"
)

func (v View) Valid() bool {
	switch v {
	case ViewAll, ViewUpcoming, ViewPast:
		return true
	}
	return false
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*MedicalService, error)
	GetClinicByID(ctx context.Context, id uuid.UUID) (*Clinic, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CountOverlapping counts non-canceled appointments for the doctor
	// whose half-open interval overlaps [start, end).
	CountOverlapping(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (int, error)

	// ListByDoctorAndRange returns non-canceled appointments for the
	// doctor overlapping [start, end), ordered by starts_at.
	ListByDoctorAndRange(ctx context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error)

	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus is a compare-and-set: the row only moves
	// when it is still in the expected source status.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// FindElapsedConfirmed returns confirmed appointments whose end has
	// passed, for the completion sweep.
	FindElapsedConfirmed(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
