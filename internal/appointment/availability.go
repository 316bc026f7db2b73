package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Touching endpoints do not overlap: an
// appointment ending at 10:00 leaves the 10:00 slot free.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Availability answers whether a doctor's interval is taken. It is a
// live view over the appointment table, never a second mutable index:
// reserving is the insert performed under the doctor lock, releasing
// is the status flip to canceled.
type Availability struct {
	repo Repository
}

func NewAvailability(repo Repository) *Availability {
	return &Availability{repo: repo}
}

func (av *Availability) IsBooked(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	n, err := av.repo.CountOverlapping(ctx, doctorID, start, end)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
