package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medportal/scheduling-service/internal/notify"
)

func setup(t *testing.T) (*fakeRepo, *captureNotifier, *Service, *Doctor, *Patient, uuid.UUID) {
	t.Helper()

	repo := newFakeRepo()
	clinic := repo.addClinic("MedCenter General Hospital", "123 Healthcare Ave")
	doctor := repo.addDoctor("Dr. Sarah Smith", "Cardiology", &clinic.ID)
	patient := repo.addPatient("Alex Doe")
	service := repo.addService("Cardiac Consultation", 150)

	notifier := &captureNotifier{}
	svc := newTestService(repo, notifier)

	return repo, notifier, svc, doctor, patient, service.ID
}

func TestBookSuccess(t *testing.T) {
	repo, notifier, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOffline,
		ActorID:   patient.ID,
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, StatusBooked, appt.Status)
	assert.Equal(t, patient.ID, appt.PatientID)
	assert.Equal(t, doctor.ID, appt.DoctorID)

	// Snapshots taken at booking time.
	assert.Equal(t, "Cardiac Consultation", appt.ServiceName)
	assert.Equal(t, float64(150), appt.Price)
	assert.Equal(t, "Dr. Sarah Smith", appt.DoctorName)
	assert.Equal(t, "Cardiology", appt.DoctorSpecialization)
	require.NotNil(t, appt.ClinicName)
	assert.Equal(t, "MedCenter General Hospital", *appt.ClinicName)
	require.NotNil(t, appt.ClinicAddress)

	assert.Equal(t, []string{EventAppointmentBooked}, repo.eventTypes())
	assert.Equal(t, []string{notify.KindBooked}, notifier.kinds())
}

func TestBookOnlineNeedsNoClinic(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Michael Johnson", "Neurology", nil)
	patient := repo.addPatient("Alex Doe")
	service := repo.addService("Neurological Examination", 180)

	svc := newTestService(repo, &captureNotifier{})

	appt, err := svc.Book(context.Background(), BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: service.ID,
		StartsAt:  at(14, 30),
		EndsAt:    at(15, 30),
		Type:      TypeOnline,
	})
	require.NoError(t, err)
	assert.Nil(t, appt.ClinicName)
	assert.Nil(t, appt.ClinicAddress)
}

func TestBookOfflineWithoutClinic(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Michael Johnson", "Neurology", nil)
	patient := repo.addPatient("Alex Doe")
	service := repo.addService("Neurological Examination", 180)

	svc := newTestService(repo, &captureNotifier{})

	_, err := svc.Book(context.Background(), BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: service.ID,
		StartsAt:  at(14, 30),
		EndsAt:    at(15, 30),
		Type:      TypeHomeVisit,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBookValidation(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	base := BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		Type:      TypeOnline,
	}

	t.Run("end before start", func(t *testing.T) {
		req := base
		req.StartsAt = at(10, 0)
		req.EndsAt = at(9, 0)
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("zero length", func(t *testing.T) {
		req := base
		req.StartsAt = at(10, 0)
		req.EndsAt = at(10, 0)
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("start in the past", func(t *testing.T) {
		req := base
		req.StartsAt = testNow.Add(-time.Hour)
		req.EndsAt = testNow.Add(-30 * time.Minute)
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown type", func(t *testing.T) {
		req := base
		req.StartsAt = at(10, 0)
		req.EndsAt = at(11, 0)
		req.Type = Type("telepathy")
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestBookUnknownReferences(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	base := BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	}

	t.Run("patient", func(t *testing.T) {
		req := base
		req.PatientID = uuid.New()
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrPatientNotFound)
	})

	t.Run("doctor", func(t *testing.T) {
		req := base
		req.DoctorID = uuid.New()
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrDoctorNotFound)
	})

	t.Run("service", func(t *testing.T) {
		req := base
		req.ServiceID = uuid.New()
		_, err := svc.Book(ctx, req)
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})
}

func TestBookConflict(t *testing.T) {
	repo, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	first := BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	}
	_, err := svc.Book(ctx, first)
	require.NoError(t, err)

	// Overlapping interval for the same doctor must be rejected.
	second := first
	second.StartsAt = at(10, 30)
	second.EndsAt = at(11, 30)
	_, err = svc.Book(ctx, second)
	assert.ErrorIs(t, err, ErrSlotConflict)

	assert.Len(t, repo.appointments, 1)
}

func TestBookTouchingIntervalsBothSucceed(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	req := BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	}
	_, err := svc.Book(ctx, req)
	require.NoError(t, err)

	req.StartsAt = at(11, 0)
	req.EndsAt = at(12, 0)
	_, err = svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestBookAfterCancelReusesInterval(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	req := BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	}
	appt, err := svc.Book(ctx, req)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	require.NoError(t, err)

	_, err = svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestBookDoctorLockHeld(t *testing.T) {
	repo, _, _, doctor, patient, serviceID := setup(t)

	svc := NewService(repo, heldLocker{}, &captureNotifier{}, zerolog.Nop(), nil)
	svc.now = func() time.Time { return testNow }

	_, err := svc.Book(context.Background(), BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	assert.ErrorIs(t, err, ErrDoctorBusy)
}

func TestBookNotifierFailureDoesNotFailBooking(t *testing.T) {
	repo, _, _, doctor, patient, serviceID := setup(t)

	svc := NewService(repo, passLocker{}, failNotifier{}, zerolog.Nop(), nil)
	svc.now = func() time.Time { return testNow }

	appt, err := svc.Book(context.Background(), BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, appt.Status)
}

func TestConfirm(t *testing.T) {
	repo, notifier, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)

	updated, err := svc.Confirm(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	// Confirming twice violates the state machine.
	_, err = svc.Confirm(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	assert.Contains(t, repo.eventTypes(), EventAppointmentConfirmed)
	assert.Contains(t, notifier.kinds(), notify.KindConfirmed)
}

func TestConfirmNotFound(t *testing.T) {
	_, _, svc, _, _, _ := setup(t)

	_, err := svc.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCancelFromBookedAndConfirmed(t *testing.T) {
	repo, notifier, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	book := func(h int) *Appointment {
		appt, err := svc.Book(ctx, BookRequest{
			PatientID: patient.ID,
			DoctorID:  doctor.ID,
			ServiceID: serviceID,
			StartsAt:  at(h, 0),
			EndsAt:    at(h+1, 0),
			Type:      TypeOnline,
		})
		require.NoError(t, err)
		return appt
	}

	booked := book(10)
	confirmed := book(12)
	_, err := svc.Confirm(ctx, confirmed.ID)
	require.NoError(t, err)

	canceled, err := svc.Cancel(ctx, booked.ID, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	canceled, err = svc.Cancel(ctx, confirmed.ID, patient.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	assert.Contains(t, repo.eventTypes(), EventAppointmentCanceled)
	assert.Contains(t, notifier.kinds(), notify.KindCanceled)
}

func TestCancelNotIdempotent(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelStartedAppointment(t *testing.T) {
	repo, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)

	// Clock moves past the start; cancellation window has closed.
	svc.now = func() time.Time { return at(10, 30) }

	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusBooked, repo.appointments[appt.ID].Status)
}

func TestCancelNotFound(t *testing.T) {
	_, _, svc, _, patient, _ := setup(t)

	_, err := svc.Cancel(context.Background(), uuid.New(), patient.ID)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCompleteRequiresElapsedConfirmed(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: serviceID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)

	// Straight from booked is not allowed.
	_, err = svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Confirm(ctx, appt.ID)
	require.NoError(t, err)

	// Confirmed but not yet ended.
	_, err = svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	svc.now = func() time.Time { return at(11, 30) }
	updated, err := svc.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completed is terminal.
	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteElapsedSweep(t *testing.T) {
	repo, notifier, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	book := func(h int) *Appointment {
		appt, err := svc.Book(ctx, BookRequest{
			PatientID: patient.ID,
			DoctorID:  doctor.ID,
			ServiceID: serviceID,
			StartsAt:  at(h, 0),
			EndsAt:    at(h+1, 0),
			Type:      TypeOnline,
		})
		require.NoError(t, err)
		return appt
	}

	endedConfirmed := book(9)
	futureConfirmed := book(15)
	endedBooked := book(11)

	_, err := svc.Confirm(ctx, endedConfirmed.ID)
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, futureConfirmed.ID)
	require.NoError(t, err)

	svc.now = func() time.Time { return at(12, 30) }

	n, err := svc.CompleteElapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, StatusCompleted, repo.appointments[endedConfirmed.ID].Status)
	assert.Equal(t, StatusConfirmed, repo.appointments[futureConfirmed.ID].Status)
	// A booked appointment left to lapse is not swept; only confirmed
	// ones complete.
	assert.Equal(t, StatusBooked, repo.appointments[endedBooked.ID].Status)

	assert.Contains(t, notifier.kinds(), notify.KindCompleted)
}

func TestListByPatientViews(t *testing.T) {
	_, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	book := func(h int) *Appointment {
		appt, err := svc.Book(ctx, BookRequest{
			PatientID: patient.ID,
			DoctorID:  doctor.ID,
			ServiceID: serviceID,
			StartsAt:  at(h, 0),
			EndsAt:    at(h+1, 0),
			Type:      TypeOnline,
		})
		require.NoError(t, err)
		return appt
	}

	upcoming := book(14)
	canceledFuture := book(10)
	_, err := svc.Cancel(ctx, canceledFuture.ID, patient.ID)
	require.NoError(t, err)
	started := book(12)

	// Move the clock so one appointment has started.
	svc.now = func() time.Time { return at(12, 30) }

	all, err := svc.ListByPatient(ctx, patient.ID, ViewAll, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	up, err := svc.ListByPatient(ctx, patient.ID, ViewUpcoming, 0, 0)
	require.NoError(t, err)
	require.Len(t, up, 1)
	assert.Equal(t, upcoming.ID, up[0].ID)

	past, err := svc.ListByPatient(ctx, patient.ID, ViewPast, 0, 0)
	require.NoError(t, err)
	assert.Len(t, past, 2)
	ids := []uuid.UUID{past[0].ID, past[1].ID}
	assert.Contains(t, ids, canceledFuture.ID)
	assert.Contains(t, ids, started.ID)
}

func TestListByPatientInvalidView(t *testing.T) {
	_, _, svc, _, patient, _ := setup(t)

	_, err := svc.ListByPatient(context.Background(), patient.ID, View("recent"), 0, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestNoOverlappingCommittedAppointments(t *testing.T) {
	repo, _, svc, doctor, patient, serviceID := setup(t)
	ctx := context.Background()

	// Hammer the same morning with shifted intervals; whatever lands,
	// the committed set must stay pairwise disjoint.
	for m := 0; m < 8; m++ {
		req := BookRequest{
			PatientID: patient.ID,
			DoctorID:  doctor.ID,
			ServiceID: serviceID,
			StartsAt:  at(9, 0).Add(time.Duration(m*15) * time.Minute),
			EndsAt:    at(9, 45).Add(time.Duration(m*15) * time.Minute),
			Type:      TypeOnline,
		}
		_, _ = svc.Book(ctx, req)
	}

	var committed []*Appointment
	for _, a := range repo.appointments {
		if a.Status != StatusCanceled {
			committed = append(committed, a)
		}
	}
	require.NotEmpty(t, committed)

	for i := 0; i < len(committed); i++ {
		for j := i + 1; j < len(committed); j++ {
			assert.False(t,
				Overlaps(committed[i].StartsAt, committed[i].EndsAt, committed[j].StartsAt, committed[j].EndsAt),
				"%s-%s overlaps %s-%s",
				committed[i].StartsAt, committed[i].EndsAt, committed[j].StartsAt, committed[j].EndsAt)
		}
	}
}
