package seatrace

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	directory "fitbook/internal/directory/repository"
	reservationshandler "fitbook/internal/reservations/handler"
	reservationsrepo "fitbook/internal/reservations/repository"
	reservationsservice "fitbook/internal/reservations/service"
	reservationsvalidator "fitbook/internal/reservations/validator"
	"fitbook/internal/seatlock"
	lockrepo "fitbook/internal/seatlock/repository"
	sessionshandler "fitbook/internal/sessions/handler"
	sessionsrepo "fitbook/internal/sessions/repository"
	sessionsservice "fitbook/internal/sessions/service"
	sessionsvalidator "fitbook/internal/sessions/validator"
	"fitbook/pkg/app"
	"fitbook/pkg/client"
	"fitbook/pkg/config"
	"fitbook/pkg/logger"
	"fitbook/pkg/model"
)

type stack struct {
	url          string
	directory    *directory.MemoryDirectory
	reservations reservationsrepo.ReservationRepository
}

// newStack serves both APIs from in-memory stores over a real HTTP listener.
func newStack(t *testing.T) *stack {
	t.Helper()
	cfg := config.Defaults()
	cfg.RateLimitRequests = 10000
	cfg.SeatLockWait = 10 * time.Second

	dir := directory.NewMemoryDirectory()
	sessions := sessionsrepo.NewMemorySessionRepository()
	reservations := reservationsrepo.NewMemoryReservationRepository()
	locker := seatlock.NewLocker(lockrepo.NewMemoryLockRepository(nil), cfg)

	sessionSvc := sessionsservice.NewSessionService(sessionsservice.Dependencies{
		Repo:         sessions,
		Reservations: reservations,
		Directory:    dir,
		Locker:       locker,
		Validator:    sessionsvalidator.NewSessionValidator(cfg.Log),
	}, cfg)
	reservationSvc := reservationsservice.NewReservationService(reservationsservice.Dependencies{
		Repo:      reservations,
		Sessions:  sessions,
		Directory: dir,
		Locker:    locker,
		Validator: reservationsvalidator.NewReservationValidator(cfg.Log),
	}, cfg)

	a := app.NewApplication(cfg)
	a.SetApp(
		sessionshandler.NewSessionHandler(sessionSvc, cfg.Log),
		reservationshandler.NewReservationHandler(reservationSvc, cfg.Log),
	)
	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)

	return &stack{url: srv.URL, directory: dir, reservations: reservations}
}

func (s *stack) user(role model.Role) string {
	id := primitive.NewObjectID().Hex()
	s.directory.AddUser(model.User{ID: id, Name: string(role), Role: role})
	return id
}

func (s *stack) input(members, capacity int) Input {
	categoryID := primitive.NewObjectID().Hex()
	s.directory.AddCategory(model.Category{ID: categoryID, Name: "Spin"})

	in := Input{
		InstructorID: s.user(model.RoleInstructor),
		CategoryID:   categoryID,
		Capacity:     capacity,
		StartsIn:     3 * time.Hour,
		Duration:     45 * time.Minute,
		Concurrency:  6,
	}
	for i := 0; i < members; i++ {
		in.MemberIDs = append(in.MemberIDs, s.user(model.RoleMember))
	}
	return in
}

func TestDrill_AdmitsExactlyCapacity(t *testing.T) {
	s := newStack(t)
	d := NewDrill(s.input(12, 4),
		client.NewSessionClient(s.url),
		client.NewReservationClient(s.url),
		logger.Discard(),
	)

	mainSteps, _ := Steps()
	err := NewEngine(logger.Discard(), mainSteps).Run(context.Background(), d)
	require.NoError(t, err)

	assert.Len(t, d.Result.Admitted, 4)
	assert.Equal(t, 8, d.Result.Full)
	assert.Equal(t, int64(4), d.Result.Reserved)
	assert.Empty(t, d.Result.Failed)
}

func TestDrill_FewerMembersThanSeats(t *testing.T) {
	s := newStack(t)
	d := NewDrill(s.input(3, 10),
		client.NewSessionClient(s.url),
		client.NewReservationClient(s.url),
		logger.Discard(),
	)

	mainSteps, cleanup := Steps()
	require.NoError(t, NewEngine(logger.Discard(), mainSteps, cleanup).Run(context.Background(), d))

	assert.Len(t, d.Result.Admitted, 3)
	assert.Zero(t, d.Result.Full)

	n, err := s.reservations.CountBySession(context.Background(), d.Result.SessionID)
	require.NoError(t, err)
	assert.Zero(t, n, "cleanup should cancel every admitted seat")

	_, err = client.NewSessionClient(s.url).GetByID(context.Background(), d.Result.SessionID)
	assert.True(t, client.HasCode(err, "NOT_FOUND"))
}

func TestDrill_RejectedSession(t *testing.T) {
	s := newStack(t)
	in := s.input(2, 2)
	in.InstructorID = s.user(model.RoleMember)

	d := NewDrill(in, client.NewSessionClient(s.url), client.NewReservationClient(s.url), logger.Discard())
	mainSteps, cleanup := Steps()
	err := NewEngine(logger.Discard(), mainSteps, cleanup).Run(context.Background(), d)

	require.Error(t, err)
	assert.True(t, client.HasCode(err, "INVALID_ROLE"))
	assert.Empty(t, d.Result.SessionID)
}

func TestEngine_CleanupRunsAfterFailure(t *testing.T) {
	var order []string
	step := func(name string, err error) Step {
		return NewStep(name, func(context.Context, *Drill) error {
			order = append(order, name)
			return err
		})
	}

	e := NewEngine(logger.Discard(),
		[]Step{step("first", nil), step("second", errors.New("boom")), step("third", nil)},
		step("cleanup", nil),
	)
	err := e.Run(context.Background(), &Drill{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "second step failed")
	assert.Equal(t, []string{"first", "second", "cleanup"}, order)
}

func TestInput_Validate(t *testing.T) {
	valid := Input{
		InstructorID: "i",
		CategoryID:   "c",
		MemberIDs:    []string{"m"},
		Capacity:     1,
		Duration:     time.Hour,
		Concurrency:  1,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{"no instructor", func(in *Input) { in.InstructorID = "" }},
		{"no category", func(in *Input) { in.CategoryID = "" }},
		{"no members", func(in *Input) { in.MemberIDs = nil }},
		{"zero capacity", func(in *Input) { in.Capacity = 0 }},
		{"zero concurrency", func(in *Input) { in.Concurrency = 0 }},
		{"zero duration", func(in *Input) { in.Duration = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			assert.Error(t, in.Validate())
		})
	}
}
