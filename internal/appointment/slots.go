package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotGenerator computes candidate booking slots for a doctor over a
// rolling window. Output is recomputed fresh on every call from the
// current state of the appointment table; nothing is cached.
type SlotGenerator struct {
	repo  Repository
	width time.Duration

	// fallback working hours, minutes from midnight, for doctors
	// without their own
	workStart int
	workEnd   int

	now func() time.Time
}

func NewSlotGenerator(repo Repository, width time.Duration, workStart, workEnd int) *SlotGenerator {
	return &SlotGenerator{
		repo:      repo,
		width:     width,
		workStart: workStart,
		workEnd:   workEnd,
		now:       time.Now,
	}
}

// Generate returns the doctor's slots for windowDays days starting at
// windowStart. A windowStart in the past is clamped to now. Slots
// starting before windowStart or not strictly in the future are
// omitted; slots overlapping a non-canceled appointment come back with
// Available=false.
func (g *SlotGenerator) Generate(ctx context.Context, doctorID uuid.UUID, windowStart time.Time, windowDays int) ([]TimeSlot, error) {
	if windowDays < 1 {
		return nil, fmt.Errorf("%w: window must cover at least one day", ErrValidation)
	}

	doctor, err := g.repo.GetDoctorByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	dayStartMin, dayEndMin := doctor.WorkStart, doctor.WorkEnd
	if dayEndMin <= dayStartMin {
		dayStartMin, dayEndMin = g.workStart, g.workEnd
	}

	now := g.now()
	if windowStart.Before(now) {
		windowStart = now
	}

	loc := windowStart.Location()
	firstDay := time.Date(windowStart.Year(), windowStart.Month(), windowStart.Day(), 0, 0, 0, 0, loc)
	windowEnd := firstDay.AddDate(0, 0, windowDays)

	booked, err := g.repo.ListByDoctorAndRange(ctx, doctorID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("load booked intervals: %w", err)
	}

	var slots []TimeSlot
	for day := 0; day < windowDays; day++ {
		dayStart := firstDay.AddDate(0, 0, day)
		workStart := dayStart.Add(time.Duration(dayStartMin) * time.Minute)
		workEnd := dayStart.Add(time.Duration(dayEndMin) * time.Minute)

		for t := workStart; !t.Add(g.width).After(workEnd); t = t.Add(g.width) {
			// Every emitted slot lies inside [windowStart, windowEnd),
			// the range the booked query covers.
			if !t.After(now) || t.Before(windowStart) {
				continue
			}
			end := t.Add(g.width)

			available := true
			for i := range booked {
				if Overlaps(t, end, booked[i].StartsAt, booked[i].EndsAt) {
					available = false
					break
				}
			}

			slots = append(slots, TimeSlot{
				ID:        slotID(doctorID, t),
				DoctorID:  doctorID,
				StartsAt:  t,
				EndsAt:    end,
				Available: available,
			})
		}
	}

	return slots, nil
}
