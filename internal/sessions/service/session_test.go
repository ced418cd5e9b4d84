package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	directory "fitbook/internal/directory/repository"
	"fitbook/internal/events"
	"fitbook/internal/seatlock"
	lockrepo "fitbook/internal/seatlock/repository"
	"fitbook/internal/sessions/repository"
	"fitbook/internal/sessions/validator"
	"fitbook/pkg/clock"
	"fitbook/pkg/config"
	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	instructorID = primitive.NewObjectID().Hex()
	memberID     = primitive.NewObjectID().Hex()
	categoryID   = primitive.NewObjectID().Hex()
	base         = time.Date(2030, 3, 4, 9, 0, 0, 0, time.UTC)
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeCounter) CountBySession(_ context.Context, sessionID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[sessionID], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type harness struct {
	svc       SessionService
	repo      repository.SessionRepository
	counter   *fakeCounter
	publisher *recordingPublisher
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Defaults()
	cfg.SeatLockWait = time.Second

	dir := directory.NewMemoryDirectory()
	dir.AddUser(model.User{ID: instructorID, Name: "Ana", Role: model.RoleInstructor})
	dir.AddUser(model.User{ID: memberID, Name: "Bo", Role: model.RoleMember})
	dir.AddCategory(model.Category{ID: categoryID, Name: "Yoga"})

	h := &harness{
		repo:      repository.NewMemorySessionRepository(),
		counter:   &fakeCounter{counts: map[string]int64{}},
		publisher: &recordingPublisher{},
	}
	h.svc = NewSessionService(Dependencies{
		Repo:         h.repo,
		Reservations: h.counter,
		Directory:    dir,
		Locker:       seatlock.NewLocker(lockrepo.NewMemoryLockRepository(nil), cfg),
		Publisher:    h.publisher,
		Validator:    validator.NewSessionValidator(cfg.Log),
		Clock:        clock.Fixed(base.Add(-48 * time.Hour)),
	}, cfg)
	return h
}

func newSession(start, end time.Time) *model.Session {
	return &model.Session{
		InstructorID: instructorID,
		CategoryID:   categoryID,
		Name:         "  Morning   Flow ",
		StartsAt:     start,
		EndsAt:       end,
		Capacity:     10,
	}
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr, "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func TestCreate_Success(t *testing.T) {
	h := newHarness(t)

	s := newSession(base, base.Add(time.Hour))
	require.NoError(t, h.svc.Create(context.Background(), s))

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "Morning Flow", s.Name)

	stored, err := h.svc.GetByID(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.StartsAt, stored.StartsAt)
	assert.Equal(t, []string{events.TypeSessionCreated}, h.publisher.types())
}

func TestCreate_Errors(t *testing.T) {
	missing := primitive.NewObjectID().Hex()

	tests := []struct {
		name    string
		mutate  func(s *model.Session)
		wantErr string
	}{
		{
			name:    "end equals start",
			mutate:  func(s *model.Session) { s.EndsAt = s.StartsAt },
			wantErr: apperrors.CodeInvalidInterval,
		},
		{
			name:    "end before start",
			mutate:  func(s *model.Session) { s.EndsAt = s.StartsAt.Add(-time.Minute) },
			wantErr: apperrors.CodeInvalidInterval,
		},
		{
			name:    "zero capacity",
			mutate:  func(s *model.Session) { s.Capacity = 0 },
			wantErr: apperrors.CodeInvalidCapacity,
		},
		{
			name:    "negative capacity",
			mutate:  func(s *model.Session) { s.Capacity = -3 },
			wantErr: apperrors.CodeInvalidCapacity,
		},
		{
			name:    "unknown instructor",
			mutate:  func(s *model.Session) { s.InstructorID = missing },
			wantErr: apperrors.CodeNotFound,
		},
		{
			name:    "author is not an instructor",
			mutate:  func(s *model.Session) { s.InstructorID = memberID },
			wantErr: apperrors.CodeInvalidRole,
		},
		{
			name:    "unknown category",
			mutate:  func(s *model.Session) { s.CategoryID = missing },
			wantErr: apperrors.CodeNotFound,
		},
		{
			name:    "malformed instructor id",
			mutate:  func(s *model.Session) { s.InstructorID = "abc" },
			wantErr: apperrors.CodeValidation,
		},
		{
			name:    "name too short",
			mutate:  func(s *model.Session) { s.Name = " x " },
			wantErr: apperrors.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			s := newSession(base, base.Add(time.Hour))
			tt.mutate(s)

			err := h.svc.Create(context.Background(), s)
			requireCode(t, err, tt.wantErr)
			assert.Empty(t, s.ID)
			assert.Empty(t, h.publisher.types())
		})
	}
}

func TestCreate_ScheduleConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := newSession(base, base.Add(time.Hour))
	require.NoError(t, h.svc.Create(ctx, first))

	overlapping := newSession(base.Add(30*time.Minute), base.Add(90*time.Minute))
	err := h.svc.Create(ctx, overlapping)
	requireCode(t, err, apperrors.CodeScheduleConflict)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, first.ID, appErr.Details["conflicting_session_id"])

	all, total, err := h.svc.GetAll(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, all, 1)
}

func TestCreate_TouchingBoundariesAreAllowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Create(ctx, newSession(base, base.Add(time.Hour))))
	require.NoError(t, h.svc.Create(ctx, newSession(base.Add(time.Hour), base.Add(2*time.Hour))))
	require.NoError(t, h.svc.Create(ctx, newSession(base.Add(-time.Hour), base)))

	sessions, err := h.svc.SearchByInstructor(ctx, instructorID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
}

func TestCreate_ConcurrentOverlapsAdmitOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			offset := time.Duration(i) * time.Minute
			errs[i] = h.svc.Create(ctx, newSession(base.Add(offset), base.Add(time.Hour+offset)))
		}(i)
	}
	wg.Wait()

	created := 0
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		requireCode(t, err, apperrors.CodeScheduleConflict)
	}
	assert.Equal(t, 1, created)
}

type failingRepository struct {
	repository.SessionRepository
	err error
}

func (f *failingRepository) FindByInstructor(context.Context, string, *time.Time, *time.Time) ([]*model.Session, error) {
	return nil, f.err
}

func TestCreate_StoreFailureIsUnavailable(t *testing.T) {
	h := newHarness(t)
	svc := h.svc.(*sessionService)

	failing := NewSessionService(Dependencies{
		Repo:         &failingRepository{SessionRepository: h.repo, err: errors.New("connection reset")},
		Reservations: h.counter,
		Directory:    svc.directory,
		Locker:       svc.locker,
		Validator:    svc.validator,
	}, svc.cfg)

	err := failing.Create(context.Background(), newSession(base, base.Add(time.Hour)))
	requireCode(t, err, apperrors.CodeStoreUnavailable)
}

func TestGetByID_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.GetByID(ctx, "")
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = h.svc.GetByID(ctx, "not-an-id")
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = h.svc.GetByID(ctx, primitive.NewObjectID().Hex())
	requireCode(t, err, apperrors.CodeNotFound)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	ptr := func(t time.Time) *time.Time { return &t }
	capacity := func(n int) *int { return &n }

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Update(ctx, primitive.NewObjectID().Hex(), &model.SessionUpdate{Name: "Renamed"})
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("empty patch", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.svc.Update(ctx, primitive.NewObjectID().Hex(), &model.SessionUpdate{})
		requireCode(t, err, apperrors.CodeInvalidInput)
	})

	t.Run("rename keeps schedule", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		updated, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{Name: " Evening  Flow"})
		require.NoError(t, err)
		assert.Equal(t, "Evening Flow", updated.Name)
		assert.Equal(t, s.StartsAt, updated.StartsAt)
		assert.Equal(t, []string{events.TypeSessionCreated, events.TypeSessionUpdated}, h.publisher.types())
	})

	t.Run("shifting within own slot is not a conflict", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		updated, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{
			StartsAt: ptr(base.Add(15 * time.Minute)),
			EndsAt:   ptr(base.Add(75 * time.Minute)),
		})
		require.NoError(t, err)
		assert.Equal(t, base.Add(15*time.Minute), updated.StartsAt)
	})

	t.Run("moving onto another session conflicts", func(t *testing.T) {
		h := newHarness(t)
		a := newSession(base, base.Add(time.Hour))
		b := newSession(base.Add(2*time.Hour), base.Add(3*time.Hour))
		require.NoError(t, h.svc.Create(ctx, a))
		require.NoError(t, h.svc.Create(ctx, b))

		_, err := h.svc.Update(ctx, b.ID, &model.SessionUpdate{StartsAt: ptr(base.Add(30 * time.Minute))})
		requireCode(t, err, apperrors.CodeScheduleConflict)

		stored, err := h.svc.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.StartsAt, stored.StartsAt)
	})

	t.Run("inverted interval", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		_, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{EndsAt: ptr(base.Add(-time.Minute))})
		requireCode(t, err, apperrors.CodeInvalidInterval)
	})

	t.Run("reassign to non-instructor", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		_, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{InstructorID: memberID})
		requireCode(t, err, apperrors.CodeInvalidRole)
	})

	t.Run("capacity below reserved seats", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))
		h.counter.counts[s.ID] = 4

		_, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{Capacity: capacity(3)})
		requireCode(t, err, apperrors.CodeInvalidCapacity)

		updated, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{Capacity: capacity(4)})
		require.NoError(t, err)
		assert.Equal(t, 4, updated.Capacity)
	})

	t.Run("zero capacity", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		_, err := h.svc.Update(ctx, s.ID, &model.SessionUpdate{Capacity: capacity(0)})
		requireCode(t, err, apperrors.CodeInvalidCapacity)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		h := newHarness(t)
		err := h.svc.Delete(ctx, primitive.NewObjectID().Hex())
		requireCode(t, err, apperrors.CodeNotFound)
	})

	t.Run("has active reservations", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))
		h.counter.counts[s.ID] = 1

		err := h.svc.Delete(ctx, s.ID)
		requireCode(t, err, apperrors.CodeHasActiveReservations)

		_, err = h.svc.GetByID(ctx, s.ID)
		require.NoError(t, err)
	})

	t.Run("count failure", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))
		h.counter.err = errors.New("socket closed")

		err := h.svc.Delete(ctx, s.ID)
		requireCode(t, err, apperrors.CodeStoreUnavailable)
	})

	t.Run("success frees the slot", func(t *testing.T) {
		h := newHarness(t)
		s := newSession(base, base.Add(time.Hour))
		require.NoError(t, h.svc.Create(ctx, s))

		require.NoError(t, h.svc.Delete(ctx, s.ID))
		_, err := h.svc.GetByID(ctx, s.ID)
		requireCode(t, err, apperrors.CodeNotFound)

		require.NoError(t, h.svc.Create(ctx, newSession(base, base.Add(time.Hour))))
		assert.Equal(t, []string{
			events.TypeSessionCreated,
			events.TypeSessionDeleted,
			events.TypeSessionCreated,
		}, h.publisher.types())
	})
}

func TestSearchByInstructor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i := range 3 {
		start := base.Add(time.Duration(i) * 2 * time.Hour)
		require.NoError(t, h.svc.Create(ctx, newSession(start, start.Add(time.Hour))))
	}

	from := base.Add(90 * time.Minute)
	to := base.Add(5 * time.Hour)
	sessions, err := h.svc.SearchByInstructor(ctx, instructorID, &from, &to)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, base.Add(2*time.Hour), sessions[0].StartsAt)

	_, err = h.svc.SearchByInstructor(ctx, "", nil, nil)
	requireCode(t, err, apperrors.CodeInvalidInput)

	_, err = h.svc.SearchByInstructor(ctx, instructorID, &to, &from)
	requireCode(t, err, apperrors.CodeInvalidInterval)
}

func TestGetAll_RaceCondition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for i := range 5 {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, h.svc.Create(ctx, newSession(start, start.Add(time.Hour))))
	}

	for i := 0; i < 20; i++ {
		sessions, count, err := h.svc.GetAll(ctx, 2, 1)
		require.NoError(t, err, "iteration %d", i)
		assert.Equal(t, int64(5), count)
		assert.Len(t, sessions, 2)
	}
}

type slowPublisher struct {
	recordingPublisher
	delay time.Duration
}

func (p *slowPublisher) Publish(ctx context.Context, e events.Event) {
	time.Sleep(p.delay)
	p.recordingPublisher.Publish(ctx, e)
}

func TestCreate_SlowPublisherDoesNotHoldInstructorLock(t *testing.T) {
	h := newHarness(t)
	svc := h.svc.(*sessionService)
	svc.cfg.SeatLockWait = 200 * time.Millisecond
	publisher := &slowPublisher{delay: 300 * time.Millisecond}
	svc.publisher = publisher

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := base.Add(time.Duration(i) * 2 * time.Hour)
			errs[i] = h.svc.Create(context.Background(), newSession(start, start.Add(time.Hour)))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Len(t, publisher.types(), 3)
}

type lostLockRepository struct {
	lockrepo.LockRepository
	fenceFunc func(ctx context.Context, key, owner string) error
}

func (l *lostLockRepository) Fence(ctx context.Context, key, owner string) error {
	return l.fenceFunc(ctx, key, owner)
}

func TestWrites_LapsedLeaseRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	existing := newSession(base, base.Add(time.Hour))
	require.NoError(t, h.svc.Create(ctx, existing))

	svc := h.svc.(*sessionService)
	svc.locker = seatlock.NewLocker(&lostLockRepository{
		LockRepository: lockrepo.NewMemoryLockRepository(nil),
		fenceFunc: func(ctx context.Context, key, owner string) error {
			return lockrepo.ErrLockLost
		},
	}, svc.cfg)

	created := newSession(base.Add(4*time.Hour), base.Add(5*time.Hour))
	requireCode(t, h.svc.Create(ctx, created), apperrors.CodeStoreUnavailable)
	total, err := h.repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	capacity := 20
	_, err = h.svc.Update(ctx, existing.ID, &model.SessionUpdate{Capacity: &capacity})
	requireCode(t, err, apperrors.CodeStoreUnavailable)
	stored, err := h.repo.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, existing.Capacity, stored.Capacity)

	requireCode(t, h.svc.Delete(ctx, existing.ID), apperrors.CodeStoreUnavailable)
	_, err = h.repo.FindByID(ctx, existing.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{events.TypeSessionCreated}, h.publisher.types())
}
