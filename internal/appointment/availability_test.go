package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                           string
		aStartH, aEndH, bStartH, bEndH int
		want                           bool
	}{
		{"identical", 10, 11, 10, 11, true},
		{"contained", 10, 12, 10, 11, true},
		{"partial front", 10, 11, 9, 11, true},
		{"partial back", 10, 11, 10, 12, true},
		{"touching end-to-start", 9, 10, 10, 11, false},
		{"touching start-to-end", 10, 11, 9, 10, false},
		{"disjoint", 9, 10, 14, 15, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Overlaps(at(tc.aStartH, 0), at(tc.aEndH, 0), at(tc.bStartH, 0), at(tc.bEndH, 0))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAvailabilityIsBooked(t *testing.T) {
	repo := newFakeRepo()
	doctor := repo.addDoctor("Dr. Sarah Smith", "Cardiology", nil)
	patient := repo.addPatient("Alex Doe")
	service := repo.addService("Cardiac Consultation", 150)

	av := NewAvailability(repo)
	ctx := context.Background()

	booked, err := av.IsBooked(ctx, doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.False(t, booked)

	svc := newTestService(repo, &captureNotifier{})
	appt, err := svc.Book(ctx, BookRequest{
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		ServiceID: service.ID,
		StartsAt:  at(10, 0),
		EndsAt:    at(11, 0),
		Type:      TypeOnline,
	})
	require.NoError(t, err)

	booked, err = av.IsBooked(ctx, doctor.ID, at(10, 30), at(11, 30))
	require.NoError(t, err)
	assert.True(t, booked)

	// Touching intervals stay free.
	booked, err = av.IsBooked(ctx, doctor.ID, at(11, 0), at(12, 0))
	require.NoError(t, err)
	assert.False(t, booked)

	// A canceled appointment releases its interval.
	_, err = svc.Cancel(ctx, appt.ID, patient.ID)
	require.NoError(t, err)

	booked, err = av.IsBooked(ctx, doctor.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.False(t, booked)
}
