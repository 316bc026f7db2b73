package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medportal/scheduling-service/internal/appointment"
)

type BookAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	ServiceID string `json:"service_id"`
	StartsAt  string `json:"starts_at"`
	EndsAt    string `json:"ends_at"`
	Type      string `json:"type"`
}

type CancelAppointmentRequest struct {
	ActorID string `json:"actor_id"`
}

type AppointmentResponse struct {
	ID                   uuid.UUID `json:"id"`
	PatientID            uuid.UUID `json:"patient_id"`
	DoctorID             uuid.UUID `json:"doctor_id"`
	ServiceID            uuid.UUID `json:"service_id"`
	ServiceName          string    `json:"service_name"`
	StartsAt             time.Time `json:"starts_at"`
	EndsAt               time.Time `json:"ends_at"`
	Status               string    `json:"status"`
	Type                 string    `json:"type"`
	Price                float64   `json:"price"`
	ClinicName           *string   `json:"clinic_name,omitempty"`
	ClinicAddress        *string   `json:"clinic_address,omitempty"`
	DoctorName           string    `json:"doctor_name,omitempty"`
	DoctorSpecialization string    `json:"doctor_specialization,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                   a.ID,
		PatientID:            a.PatientID,
		DoctorID:             a.DoctorID,
		ServiceID:            a.ServiceID,
		ServiceName:          a.ServiceName,
		StartsAt:             a.StartsAt,
		EndsAt:               a.EndsAt,
		Status:               string(a.Status),
		Type:                 string(a.Type),
		Price:                a.Price,
		ClinicName:           a.ClinicName,
		ClinicAddress:        a.ClinicAddress,
		DoctorName:           a.DoctorName,
		DoctorSpecialization: a.DoctorSpecialization,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type SlotListResponse struct {
	DoctorID uuid.UUID              `json:"doctor_id"`
	Slots    []appointment.TimeSlot `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
