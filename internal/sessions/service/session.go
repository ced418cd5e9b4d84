package service

import (
	"context"
	"errors"
	"sync"
	"time"

	directory "fitbook/internal/directory/repository"
	"fitbook/internal/events"
	"fitbook/internal/seatlock"
	"fitbook/internal/sessions/conflict"
	sessionserrors "fitbook/internal/sessions/errors"
	"fitbook/internal/sessions/repository"
	"fitbook/internal/sessions/validator"
	"fitbook/pkg/clock"
	"fitbook/pkg/config"
	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/model"
	"fitbook/pkg/sanitizer"
)

type SessionService interface {
	Create(ctx context.Context, s *model.Session) error
	GetByID(ctx context.Context, id string) (*model.Session, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error)
	SearchByInstructor(ctx context.Context, instructorID string, from, to *time.Time) ([]*model.Session, error)
	Update(ctx context.Context, id string, updates *model.SessionUpdate) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

// ReservationCounter reports how many seats of a session are taken.
type ReservationCounter interface {
	CountBySession(ctx context.Context, sessionID string) (int64, error)
}

type Dependencies struct {
	Repo         repository.SessionRepository
	Reservations ReservationCounter
	Directory    directory.Directory
	Locker       *seatlock.Locker
	Publisher    events.Publisher
	Validator    *validator.SessionValidator
	Clock        clock.Clock
}

type sessionService struct {
	repo         repository.SessionRepository
	reservations ReservationCounter
	directory    directory.Directory
	detector     *conflict.Detector
	locker       *seatlock.Locker
	publisher    events.Publisher
	validator    *validator.SessionValidator
	clock        clock.Clock
	cfg          *config.Config
}

func NewSessionService(deps Dependencies, cfg *config.Config) SessionService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &sessionService{
		repo:         deps.Repo,
		reservations: deps.Reservations,
		directory:    deps.Directory,
		detector:     conflict.NewDetector(deps.Repo),
		locker:       deps.Locker,
		publisher:    publisher,
		validator:    deps.Validator,
		clock:        clk,
		cfg:          cfg,
	}
}

func (s *sessionService) Create(ctx context.Context, sess *model.Session) error {
	s.sanitize(sess)

	if !sess.EndsAt.After(sess.StartsAt) {
		return apperrors.InvalidInterval(sess.StartsAt, sess.EndsAt)
	}
	if sess.Capacity < 1 {
		return apperrors.InvalidCapacity("Capacity must be at least 1", map[string]any{
			"capacity": sess.Capacity,
		})
	}
	if err := s.validator.Validate(sess); err != nil {
		s.cfg.Log.Warn("Session validation failed",
			"name", sess.Name,
			"instructor_id", sess.InstructorID,
			"error", err,
		)
		return apperrors.Validation("Session validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.resolveInstructor(ctx, sess.InstructorID); err != nil {
		return err
	}
	if err := s.resolveCategory(ctx, sess.CategoryID); err != nil {
		return err
	}

	if err := s.create(ctx, sess); err != nil {
		s.logFailure("Failed to create session", err,
			"name", sess.Name,
			"instructor_id", sess.InstructorID,
		)
		return err
	}

	s.publisher.Publish(ctx, events.SessionEvent(events.TypeSessionCreated, sess, s.clock.Now()))
	s.cfg.Log.Info("Session created successfully",
		"id", sess.ID,
		"name", sess.Name,
		"instructor_id", sess.InstructorID,
		"starts_at", sess.StartsAt,
		"ends_at", sess.EndsAt,
		"capacity", sess.Capacity,
	)
	return nil
}

func (s *sessionService) GetByID(ctx context.Context, id string) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}

	sess, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return sess, nil
}

func (s *sessionService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Session, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var count int64
	var sessions []*model.Session
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx)
		if err != nil {
			s.cfg.Log.Error("Failed to count sessions", "error", err)
			errCount = apperrors.StoreUnavailable("Failed to count sessions", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		sessions, err = s.repo.FindAll(sharedCtx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to get all sessions",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.StoreUnavailable("Failed to retrieve sessions", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return sessions, count, nil
}

func (s *sessionService) SearchByInstructor(ctx context.Context, instructorID string, from, to *time.Time) ([]*model.Session, error) {
	if instructorID == "" {
		return nil, apperrors.InvalidInput("instructor_id is required")
	}
	if from != nil && to != nil && !to.After(*from) {
		return nil, apperrors.InvalidInterval(*from, *to)
	}

	sessions, err := s.repo.FindByInstructor(ctx, instructorID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to search sessions",
			"instructor_id", instructorID,
			"error", err,
		)
		return nil, apperrors.StoreUnavailable("Failed to search sessions", err)
	}

	s.cfg.Log.Debug("Session search completed",
		"instructor_id", instructorID,
		"results", len(sessions),
	)
	return sessions, nil
}

func (s *sessionService) Update(ctx context.Context, id string, updates *model.SessionUpdate) (*model.Session, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Session ID cannot be empty")
	}
	if updates == nil || updates.IsEmpty() {
		return nil, apperrors.InvalidInput("No fields to update")
	}
	s.sanitizeUpdate(updates)
	if updates.Capacity != nil && *updates.Capacity < 1 {
		return nil, apperrors.InvalidCapacity("Capacity must be at least 1", map[string]any{
			"capacity": *updates.Capacity,
		})
	}
	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Session update validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Session validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	merged, err := s.update(ctx, id, updates)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.SessionEvent(events.TypeSessionUpdated, merged, s.clock.Now()))
	s.cfg.Log.Info("Session updated successfully",
		"id", id,
		"instructor_id", merged.InstructorID,
		"starts_at", merged.StartsAt,
		"ends_at", merged.EndsAt,
		"capacity", merged.Capacity,
	)
	return merged, nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Session ID cannot be empty")
	}

	existing, err := s.remove(ctx, id)
	if err != nil {
		return err
	}

	s.publisher.Publish(ctx, events.SessionEvent(events.TypeSessionDeleted, existing, s.clock.Now()))
	s.cfg.Log.Info("Session deleted successfully", "id", id)
	return nil
}

// create inserts the session under the instructor's lock. The overlap check
// and the insert share one transaction that fences the lock before commit.
func (s *sessionService) create(ctx context.Context, sess *model.Session) error {
	lease, err := s.locker.Acquire(ctx, seatlock.InstructorKey(sess.InstructorID))
	if err != nil {
		return err
	}
	defer lease.Release()

	leaseCtx, cancel := lease.Bound(ctx)
	defer cancel()

	return s.repo.ExecuteTransaction(leaseCtx, func(txCtx context.Context) error {
		if err := s.checkConflict(txCtx, sess, ""); err != nil {
			return err
		}
		if err := s.repo.Create(txCtx, sess); err != nil {
			return s.storeError("Failed to create session", err)
		}
		return lease.Fence(txCtx)
	})
}

// update applies updates under the session key and, when the schedule moves,
// the keys of both the old and the new instructor.
func (s *sessionService) update(ctx context.Context, id string, updates *model.SessionUpdate) (*model.Session, error) {
	// the session key orders this update against admissions and deletes
	sessionLease, err := s.locker.Acquire(ctx, seatlock.SessionKey(id))
	if err != nil {
		return nil, err
	}
	defer sessionLease.Release()

	leaseCtx, cancel := sessionLease.Bound(ctx)
	defer cancel()

	existing, err := s.repo.FindByID(leaseCtx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	merged := updates.Apply(*existing)
	moves := updates.MovesSchedule()
	var instructorLease *seatlock.Lease
	if moves {
		if !merged.EndsAt.After(merged.StartsAt) {
			return nil, apperrors.InvalidInterval(merged.StartsAt, merged.EndsAt)
		}
		if merged.InstructorID != existing.InstructorID {
			if err := s.resolveInstructor(leaseCtx, merged.InstructorID); err != nil {
				return nil, err
			}
		}

		// instructor keys are only taken after the session key, never before it
		instructorLease, err = s.locker.Acquire(leaseCtx,
			seatlock.InstructorKey(existing.InstructorID),
			seatlock.InstructorKey(merged.InstructorID),
		)
		if err != nil {
			return nil, err
		}
		defer instructorLease.Release()
	}
	if merged.CategoryID != existing.CategoryID {
		if err := s.resolveCategory(leaseCtx, merged.CategoryID); err != nil {
			return nil, err
		}
	}

	err = s.repo.ExecuteTransaction(leaseCtx, func(txCtx context.Context) error {
		if moves {
			if err := s.checkConflict(txCtx, &merged, id); err != nil {
				return err
			}
		}
		if updates.Capacity != nil && *updates.Capacity < existing.Capacity {
			reserved, err := s.reservations.CountBySession(txCtx, id)
			if err != nil {
				return s.storeError("Failed to count reservations", err)
			}
			if int64(merged.Capacity) < reserved {
				return apperrors.InvalidCapacity("Capacity cannot drop below the number of reserved seats", map[string]any{
					"capacity": merged.Capacity,
					"reserved": reserved,
				})
			}
		}
		if err := s.repo.Update(txCtx, id, &merged); err != nil {
			if errors.Is(err, sessionserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Session", id)
			}
			return s.storeError("Failed to update session", err)
		}
		if err := sessionLease.Fence(txCtx); err != nil {
			return err
		}
		if instructorLease != nil {
			return instructorLease.Fence(txCtx)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to update session", err, "id", id)
		return nil, err
	}
	return &merged, nil
}

// remove deletes the session under its key once no reservation holds a seat.
func (s *sessionService) remove(ctx context.Context, id string) (*model.Session, error) {
	lease, err := s.locker.Acquire(ctx, seatlock.SessionKey(id))
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	leaseCtx, cancel := lease.Bound(ctx)
	defer cancel()

	existing, err := s.repo.FindByID(leaseCtx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	err = s.repo.ExecuteTransaction(leaseCtx, func(txCtx context.Context) error {
		reserved, err := s.reservations.CountBySession(txCtx, id)
		if err != nil {
			return s.storeError("Failed to count reservations", err)
		}
		if reserved > 0 {
			return apperrors.HasActiveReservations(id, reserved)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, sessionserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Session", id)
			}
			return s.storeError("Failed to delete session", err)
		}
		return lease.Fence(txCtx)
	})
	if err != nil {
		s.logFailure("Failed to delete session", err, "id", id)
		return nil, err
	}
	return existing, nil
}

func (s *sessionService) checkConflict(ctx context.Context, sess *model.Session, excludeID string) error {
	other, err := s.detector.FindConflict(ctx, sess.InstructorID, sess.StartsAt, sess.EndsAt, excludeID)
	if err != nil {
		return s.storeError("Failed to check instructor schedule", err)
	}
	if other != nil {
		s.cfg.Log.Warn("Session overlaps instructor schedule",
			"instructor_id", sess.InstructorID,
			"conflicting_session_id", other.ID,
		)
		return apperrors.ScheduleConflict(other.ID, other.StartsAt, other.EndsAt)
	}
	return nil
}

func (s *sessionService) resolveInstructor(ctx context.Context, instructorID string) error {
	user, err := s.directory.GetUser(ctx, instructorID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return apperrors.NotFoundWithID("Instructor", instructorID)
		}
		s.cfg.Log.Error("Failed to resolve instructor", "instructor_id", instructorID, "error", err)
		return apperrors.StoreUnavailable("Failed to resolve instructor", err)
	}
	if !user.IsInstructor() {
		return apperrors.InvalidRole(instructorID, string(user.Role))
	}
	return nil
}

func (s *sessionService) resolveCategory(ctx context.Context, categoryID string) error {
	if _, err := s.directory.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, directory.ErrCategoryNotFound) {
			return apperrors.NotFoundWithID("Category", categoryID)
		}
		s.cfg.Log.Error("Failed to resolve category", "category_id", categoryID, "error", err)
		return apperrors.StoreUnavailable("Failed to resolve category", err)
	}
	return nil
}

func (s *sessionService) lookupError(id string, err error) error {
	switch {
	case errors.Is(err, sessionserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Session", id)
	case errors.Is(err, sessionserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid session ID format")
	case apperrors.IsAppError(err):
		return err
	}
	s.cfg.Log.Error("Failed to get session by ID", "id", id, "error", err)
	return apperrors.StoreUnavailable("Failed to retrieve session", err)
}

func (s *sessionService) storeError(message string, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.StoreUnavailable(message, err)
}

func (s *sessionService) logFailure(message string, err error, args ...any) {
	args = append(args, "error", err)
	if apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		s.cfg.Log.Error(message, args...)
		return
	}
	s.cfg.Log.Warn(message, args...)
}

func (s *sessionService) sanitize(sess *model.Session) {
	sess.Name = sanitizer.NormalizeName(sess.Name)
	sess.InstructorID = sanitizer.NormalizeID(sess.InstructorID)
	sess.CategoryID = sanitizer.NormalizeID(sess.CategoryID)
	sess.StartsAt = sess.StartsAt.UTC()
	sess.EndsAt = sess.EndsAt.UTC()
}

func (s *sessionService) sanitizeUpdate(u *model.SessionUpdate) {
	u.Name = sanitizer.NormalizeName(u.Name)
	u.InstructorID = sanitizer.NormalizeID(u.InstructorID)
	u.CategoryID = sanitizer.NormalizeID(u.CategoryID)
}
