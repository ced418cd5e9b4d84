package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	directory "fitbook/internal/directory/repository"
	"fitbook/internal/reservations/repository"
	"fitbook/internal/reservations/validator"
	"fitbook/internal/seatlock"
	lockrepo "fitbook/internal/seatlock/repository"
	sessionsrepo "fitbook/internal/sessions/repository"
	"fitbook/pkg/db/mongo/mongotest"
	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/model"
)

// Same-seat race against MongoDB: the lock collection, the transaction and the
// unique (member, session) index are all real.
func TestReserve_MongoRace(t *testing.T) {
	cfg := mongotest.Config(t)
	cfg.SeatLockWait = 20 * time.Second
	ctx := context.Background()

	sessions := sessionsrepo.NewMongoSessionRepository(cfg)
	repo := repository.NewMongoReservationRepository(cfg)
	dir := directory.NewMemoryDirectory()

	svc := NewReservationService(Dependencies{
		Repo:      repo,
		Sessions:  sessions,
		Directory: dir,
		Locker:    seatlock.NewLocker(lockrepo.NewMongoLockRepository(cfg), cfg),
		Validator: validator.NewReservationValidator(cfg.Log),
	}, cfg)

	startsAt := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
	session := &model.Session{
		InstructorID: primitive.NewObjectID().Hex(),
		CategoryID:   primitive.NewObjectID().Hex(),
		Name:         "Rowing",
		StartsAt:     startsAt,
		EndsAt:       startsAt.Add(time.Hour),
		Capacity:     3,
	}
	require.NoError(t, sessions.Create(ctx, session))

	const callers = 10
	members := make([]string, callers)
	for i := range members {
		members[i] = primitive.NewObjectID().Hex()
		dir.AddUser(model.User{ID: members[i], Name: "member", Role: model.RoleMember})
	}

	var wg sync.WaitGroup
	errs := make([]error, callers)
	start := make(chan struct{})
	for i, memberID := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Reserve(ctx, &model.ReserveRequest{MemberID: memberID, SessionID: session.ID})
		}()
	}
	close(start)
	wg.Wait()

	admitted, full := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			admitted++
		case apperrors.HasCode(err, apperrors.CodeSessionFull):
			full++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 3, admitted)
	assert.Equal(t, callers-3, full)

	n, err := repo.CountBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = svc.Reserve(ctx, &model.ReserveRequest{MemberID: members[0], SessionID: session.ID})
	require.Error(t, err)
}
