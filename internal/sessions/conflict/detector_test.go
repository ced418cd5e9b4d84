package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"fitbook/pkg/model"
)

var base = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type mockFinder struct {
	sessions []*model.Session
	err      error
}

func (m *mockFinder) FindByInstructor(ctx context.Context, instructorID string, from, to *time.Time) ([]*model.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*model.Session
	for _, s := range m.sessions {
		if s.InstructorID == instructorID {
			out = append(out, s)
		}
	}
	return out, nil
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name         string
		aStart, aEnd time.Time
		bStart, bEnd time.Time
		want         bool
	}{
		{"partial overlap", at(10, 0), at(11, 0), at(10, 30), at(11, 30), true},
		{"contained", at(10, 0), at(12, 0), at(10, 30), at(11, 0), true},
		{"identical", at(10, 0), at(11, 0), at(10, 0), at(11, 0), true},
		{"touching end to start", at(10, 0), at(11, 0), at(11, 0), at(12, 0), false},
		{"touching start to end", at(11, 0), at(12, 0), at(10, 0), at(11, 0), false},
		{"disjoint", at(10, 0), at(11, 0), at(13, 0), at(14, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := Overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
				t.Errorf("Overlaps() is not symmetric")
			}
		})
	}
}

func TestDetector_FindConflict(t *testing.T) {
	existing := &model.Session{ID: "s1", InstructorID: "i1", StartsAt: at(10, 0), EndsAt: at(11, 0)}
	d := NewDetector(&mockFinder{sessions: []*model.Session{
		existing,
		{ID: "s2", InstructorID: "i2", StartsAt: at(10, 0), EndsAt: at(11, 0)},
	}})
	ctx := context.Background()

	tests := []struct {
		name       string
		instructor string
		start, end time.Time
		exclude    string
		wantID     string
	}{
		{"overlap", "i1", at(10, 30), at(11, 30), "", "s1"},
		{"back to back is allowed", "i1", at(11, 0), at(12, 0), "", ""},
		{"other instructor", "i3", at(10, 0), at(11, 0), "", ""},
		{"excluding itself", "i1", at(10, 0), at(11, 30), "s1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.FindConflict(ctx, tt.instructor, tt.start, tt.end, tt.exclude)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			gotID := ""
			if got != nil {
				gotID = got.ID
			}
			if gotID != tt.wantID {
				t.Errorf("conflict = %q, want %q", gotID, tt.wantID)
			}

			has, _ := d.HasConflict(ctx, tt.instructor, tt.start, tt.end, tt.exclude)
			if has != (tt.wantID != "") {
				t.Errorf("HasConflict() = %v", has)
			}
		})
	}
}

func TestDetector_PropagatesStoreError(t *testing.T) {
	storeErr := errors.New("no reachable servers")
	d := NewDetector(&mockFinder{err: storeErr})

	_, err := d.FindConflict(context.Background(), "i1", at(10, 0), at(11, 0), "")
	if !errors.Is(err, storeErr) {
		t.Errorf("expected store error, got %v", err)
	}
}
