package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "booked"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
	StatusCompleted Status = "completed"
)

// transitions is the full status machine. Canceled and completed are
// terminal; a canceled appointment never re-enters an active state.
var transitions = map[Status][]Status{
	StatusBooked:    {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusCanceled, StatusCompleted},
	StatusCanceled:  {},
	StatusCompleted: {},
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeOnline    Type = "online"
	TypeOffline   Type = "offline"
	TypeHomeVisit Type = "home_visit"
)

func (t Type) Valid() bool {
	switch t {
	case TypeOnline, TypeOffline, TypeHomeVisit:
		return true
	}
	return false
}

// RequiresClinic reports whether appointments of this type must carry a
// clinic snapshot.
func (t Type) RequiresClinic() bool {
	return t != TypeOnline
}

type Clinic struct {
	ID        uuid.UUID
	Name      string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type MedicalService struct {
	ID          uuid.UUID
	Name        string
	Description *string
	Price       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Doctor struct {
	ID             uuid.UUID
	Name           string
	Specialization string
	ClinicID       *uuid.UUID
	WorkStart      int // minutes from midnight
	WorkEnd        int // minutes from midnight
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Appointment rows are never deleted; canceled ones stay reachable
// through the past view for history.
type Appointment struct {
	ID        uuid.UUID
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	ServiceID uuid.UUID
	StartsAt  time.Time
	EndsAt    time.Time
	Status    Status
	Type      Type
	Price     float64

	// Snapshots taken at booking time so historical records keep the
	// display data they were booked with.
	ServiceName          string
	ClinicName           *string
	ClinicAddress        *string
	DoctorName           string
	DoctorSpecialization string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Upcoming reports whether the appointment belongs to the upcoming view:
// it starts strictly after now and has not been canceled. Everything
// else, canceled ones included regardless of date, is past.
func (a *Appointment) Upcoming(now time.Time) bool {
	return a.StartsAt.After(now) && a.Status != StatusCanceled
}

// TimeSlot is a derived candidate interval, never persisted.
type TimeSlot struct {
	ID        string    `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Available bool      `json:"is_available"`
}

func slotID(doctorID uuid.UUID, startsAt time.Time) string {
	return fmt.Sprintf("slot-%s-%s", doctorID, startsAt.UTC().Format(time.RFC3339))
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	ActorID       *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
