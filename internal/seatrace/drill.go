package seatrace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"fitbook/pkg/client"
	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
)

type SessionAPI interface {
	Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

type ReservationAPI interface {
	Reserve(ctx context.Context, memberID, sessionID, idempotencyKey string) (*model.Reservation, error)
	Cancel(ctx context.Context, memberID, sessionID string) error
	Availability(ctx context.Context, sessionID string) (*model.SessionAvailability, error)
}

type Input struct {
	InstructorID string
	CategoryID   string
	MemberIDs    []string
	Capacity     int
	StartsIn     time.Duration
	Duration     time.Duration
	Concurrency  int
}

func (in Input) Validate() error {
	switch {
	case in.InstructorID == "":
		return errors.New("instructor id is required")
	case in.CategoryID == "":
		return errors.New("category id is required")
	case len(in.MemberIDs) == 0:
		return errors.New("at least one member id is required")
	case in.Capacity < 1:
		return fmt.Errorf("capacity must be at least 1, got %d", in.Capacity)
	case in.Concurrency < 1:
		return fmt.Errorf("concurrency must be at least 1, got %d", in.Concurrency)
	case in.Duration <= 0:
		return fmt.Errorf("duration must be positive, got %s", in.Duration)
	}
	return nil
}

type Result struct {
	SessionID string
	Admitted  []string
	Full      int
	Duplicate int
	Failed    map[string]error
	Reserved  int64
}

// Drill is the state shared by the steps of one run.
type Drill struct {
	Input        Input
	Sessions     SessionAPI
	Reservations ReservationAPI
	Result       Result

	mu  sync.Mutex
	log *logger.Logger
}

func NewDrill(in Input, sessions SessionAPI, reservations ReservationAPI, log *logger.Logger) *Drill {
	return &Drill{
		Input:        in,
		Sessions:     sessions,
		Reservations: reservations,
		Result:       Result{Failed: make(map[string]error)},
		log:          log,
	}
}

// Expected is the number of members that must be admitted.
func (d *Drill) Expected() int {
	return min(len(d.Input.MemberIDs), d.Input.Capacity)
}

func CreateSession(ctx context.Context, d *Drill) error {
	startsAt := time.Now().UTC().Add(d.Input.StartsIn).Truncate(time.Minute)
	session, err := d.Sessions.Create(ctx, &model.CreateSessionRequest{
		InstructorID: d.Input.InstructorID,
		CategoryID:   d.Input.CategoryID,
		Name:         "Seat race " + startsAt.Format("2006-01-02 15:04"),
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(d.Input.Duration),
		Capacity:     d.Input.Capacity,
	})
	if err != nil {
		return err
	}
	d.Result.SessionID = session.ID
	d.log.Info("Created race session", "session_id", session.ID, "capacity", session.Capacity, "starts_at", session.StartsAt)
	return nil
}

// RaceReservations fires one reserve per member with bounded concurrency.
func RaceReservations(ctx context.Context, d *Drill) error {
	sem := make(chan struct{}, d.Input.Concurrency)
	start := make(chan struct{})
	var wg sync.WaitGroup

	for _, memberID := range d.Input.MemberIDs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			runLimited(sem, func() {
				_, err := d.Reservations.Reserve(ctx, memberID, d.Result.SessionID, uuid.NewString())
				d.record(memberID, err)
			})
		}()
	}
	close(start)
	wg.Wait()

	d.log.Info("Race finished",
		"session_id", d.Result.SessionID,
		"admitted", len(d.Result.Admitted),
		"full", d.Result.Full,
		"duplicate", d.Result.Duplicate,
		"failed", len(d.Result.Failed),
	)
	return nil
}

func (d *Drill) record(memberID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case err == nil:
		d.Result.Admitted = append(d.Result.Admitted, memberID)
	case client.HasCode(err, apperrors.CodeSessionFull):
		d.Result.Full++
	case client.HasCode(err, apperrors.CodeAlreadyBooked):
		d.Result.Duplicate++
	default:
		d.Result.Failed[memberID] = err
	}
}

// VerifyAdmission fails when the number of admitted members or the stored
// seat count differs from min(members, capacity).
func VerifyAdmission(ctx context.Context, d *Drill) error {
	if len(d.Result.Failed) > 0 {
		return fmt.Errorf("%d reserve calls failed unexpectedly", len(d.Result.Failed))
	}

	availability, err := d.Reservations.Availability(ctx, d.Result.SessionID)
	if err != nil {
		return err
	}
	d.Result.Reserved = availability.Reserved

	want := d.Expected()
	if len(d.Result.Admitted) != want {
		return fmt.Errorf("admitted %d members, expected %d", len(d.Result.Admitted), want)
	}
	if availability.Reserved != int64(want) {
		return fmt.Errorf("session holds %d reservations, expected %d", availability.Reserved, want)
	}
	if availability.Reserved > int64(availability.Capacity) {
		return fmt.Errorf("session overbooked: %d reservations for capacity %d", availability.Reserved, availability.Capacity)
	}
	return nil
}

func Cleanup(ctx context.Context, d *Drill) error {
	if d.Result.SessionID == "" {
		return nil
	}

	var errs []error
	for _, memberID := range d.Result.Admitted {
		if err := d.Reservations.Cancel(ctx, memberID, d.Result.SessionID); err != nil {
			errs = append(errs, fmt.Errorf("cancel %s: %w", memberID, err))
		}
	}
	if err := d.Sessions.Delete(ctx, d.Result.SessionID); err != nil {
		errs = append(errs, fmt.Errorf("delete session: %w", err))
	}
	return errors.Join(errs...)
}

// Steps returns the drill's main steps and its cleanup step.
func Steps() ([]Step, Step) {
	return []Step{
		NewStep("create-session", CreateSession),
		NewStep("race-reservations", RaceReservations),
		NewStep("verify-admission", VerifyAdmission),
	}, NewStep("cleanup", Cleanup)
}
