// Package conflict decides whether an instructor's proposed time slot collides
// with one already on their schedule.
package conflict

import (
	"context"
	"time"

	"fitbook/pkg/model"
)

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) share any instant. Intervals that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

type SessionFinder interface {
	FindByInstructor(ctx context.Context, instructorID string, from, to *time.Time) ([]*model.Session, error)
}

type Detector struct {
	finder SessionFinder
}

func NewDetector(finder SessionFinder) *Detector {
	return &Detector{finder: finder}
}

// FindConflict returns the first of the instructor's sessions, other than
// excludeID, that overlaps [startsAt, endsAt), or nil when the slot is free.
func (d *Detector) FindConflict(ctx context.Context, instructorID string, startsAt, endsAt time.Time, excludeID string) (*model.Session, error) {
	candidates, err := d.finder.FindByInstructor(ctx, instructorID, &startsAt, &endsAt)
	if err != nil {
		return nil, err
	}

	for _, s := range candidates {
		if s.ID == excludeID {
			continue
		}
		// the store query is a prefilter; the interval rule is decided here
		if Overlaps(startsAt, endsAt, s.StartsAt, s.EndsAt) {
			return s, nil
		}
	}
	return nil, nil
}

func (d *Detector) HasConflict(ctx context.Context, instructorID string, startsAt, endsAt time.Time, excludeID string) (bool, error) {
	s, err := d.FindConflict(ctx, instructorID, startsAt, endsAt, excludeID)
	return s != nil, err
}
