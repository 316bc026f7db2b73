package appointment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medportal/scheduling-service/internal/notify"
	redisclient "github.com/medportal/scheduling-service/internal/redis"
)

// fakeRepo is an in-memory Repository mirroring the Postgres semantics,
// including the CAS status update and the overlap exclusion on insert.
type fakeRepo struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]*Patient
	doctors      map[uuid.UUID]*Doctor
	services     map[uuid.UUID]*MedicalService
	clinics      map[uuid.UUID]*Clinic
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		patients:     make(map[uuid.UUID]*Patient),
		doctors:      make(map[uuid.UUID]*Doctor),
		services:     make(map[uuid.UUID]*MedicalService),
		clinics:      make(map[uuid.UUID]*Clinic),
		appointments: make(map[uuid.UUID]*Appointment),
	}
}

func (r *fakeRepo) addClinic(name, address string) *Clinic {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := &Clinic{ID: uuid.New(), Name: name, Address: address}
	r.clinics[c.ID] = c
	return c
}

func (r *fakeRepo) addDoctor(name, spec string, clinicID *uuid.UUID) *Doctor {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := &Doctor{
		ID:             uuid.New(),
		Name:           name,
		Specialization: spec,
		ClinicID:       clinicID,
		WorkStart:      9 * 60,
		WorkEnd:        17 * 60,
	}
	r.doctors[d.ID] = d
	return d
}

func (r *fakeRepo) addPatient(name string) *Patient {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &Patient{ID: uuid.New(), Name: name}
	r.patients[p.ID] = p
	return p
}

func (r *fakeRepo) addService(name string, price float64) *MedicalService {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &MedicalService{ID: uuid.New(), Name: name, Price: price}
	r.services[s.ID] = s
	return s
}

func (r *fakeRepo) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func (r *fakeRepo) GetDoctorByID(_ context.Context, id uuid.UUID) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (r *fakeRepo) GetServiceByID(_ context.Context, id uuid.UUID) (*MedicalService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	return s, nil
}

func (r *fakeRepo) GetClinicByID(_ context.Context, id uuid.UUID) (*Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return c, nil
}

func (r *fakeRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) CountOverlapping(_ context.Context, doctorID uuid.UUID, start, end time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countOverlappingLocked(doctorID, start, end), nil
}

func (r *fakeRepo) countOverlappingLocked(doctorID uuid.UUID, start, end time.Time) int {
	n := 0
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Status != StatusCanceled && Overlaps(start, end, a.StartsAt, a.EndsAt) {
			n++
		}
	}
	return n
}

func (r *fakeRepo) ListByDoctorAndRange(_ context.Context, doctorID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && a.Status != StatusCanceled && Overlaps(start, end, a.StartsAt, a.EndsAt) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *fakeRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) CreateAppointment(_ context.Context, a *Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countOverlappingLocked(a.DoctorID, a.StartsAt, a.EndsAt) > 0 {
		return nil, ErrSlotTaken
	}
	cp := *a
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.appointments[cp.ID] = &cp
	result := cp
	return &result, nil
}

func (r *fakeRepo) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	a.UpdatedAt = time.Now()
	cp := *a
	return &cp, nil
}

func (r *fakeRepo) FindElapsedConfirmed(_ context.Context, now time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.appointments {
		if a.Status == StatusConfirmed && a.EndsAt.Before(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.EventType)
	}
	return types
}

// passLocker runs the critical section inline without any locking.
type passLocker struct{}

func (passLocker) WithDoctorLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// heldLocker simulates a lock someone else is holding.
type heldLocker struct{}

func (heldLocker) WithDoctorLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return redisclient.ErrLockNotAcquired
}

// captureNotifier records published events.
type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *captureNotifier) Publish(_ context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *captureNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]string, 0, len(n.events))
	for _, ev := range n.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

// failNotifier always fails to deliver.
type failNotifier struct{}

func (failNotifier) Publish(context.Context, notify.Event) error {
	return errors.New("broker unreachable")
}

// testNow is a Monday morning before working hours.
var testNow = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, notifier notify.Notifier) *Service {
	svc := NewService(repo, passLocker{}, notifier, zerolog.Nop(), nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func newTestGenerator(repo *fakeRepo) *SlotGenerator {
	gen := NewSlotGenerator(repo, 30*time.Minute, 9*60, 17*60)
	gen.now = func() time.Time { return testNow }
	return gen
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}
