package service

import (
	"context"
	"errors"
	"sync"

	directory "fitbook/internal/directory/repository"
	"fitbook/internal/events"
	reservationserrors "fitbook/internal/reservations/errors"
	"fitbook/internal/reservations/repository"
	"fitbook/internal/reservations/validator"
	"fitbook/internal/seatlock"
	sessionserrors "fitbook/internal/sessions/errors"
	"fitbook/pkg/clock"
	"fitbook/pkg/config"
	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/model"
)

type ReservationService interface {
	Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error)
	Cancel(ctx context.Context, memberID, sessionID string) error
	CancelByID(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	ListByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error)
	Availability(ctx context.Context, sessionID string) (*model.SessionAvailability, error)
}

// SessionReader is the read-only view of the catalog admission needs.
type SessionReader interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

type Dependencies struct {
	Repo      repository.ReservationRepository
	Sessions  SessionReader
	Directory directory.Directory
	Locker    *seatlock.Locker
	Publisher events.Publisher
	Validator *validator.ReservationValidator
	Clock     clock.Clock
}

type reservationService struct {
	repo      repository.ReservationRepository
	sessions  SessionReader
	directory directory.Directory
	locker    *seatlock.Locker
	publisher events.Publisher
	validator *validator.ReservationValidator
	clock     clock.Clock
	cfg       *config.Config
}

func NewReservationService(deps Dependencies, cfg *config.Config) ReservationService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewNoopPublisher()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.System()
	}
	return &reservationService{
		repo:      deps.Repo,
		sessions:  deps.Sessions,
		directory: deps.Directory,
		locker:    deps.Locker,
		publisher: publisher,
		validator: deps.Validator,
		clock:     clk,
		cfg:       cfg,
	}
}

// Reserve admits the member into the session. The event is published after the
// seat lock is released so a slow broker never holds up other admissions.
func (s *reservationService) Reserve(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, apperrors.Validation("Reservation validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.resolveMember(ctx, req.MemberID); err != nil {
		return nil, err
	}

	reservation, err := s.admit(ctx, req)
	if err != nil {
		s.logFailure("Reservation rejected", err,
			"member_id", req.MemberID,
			"session_id", req.SessionID,
		)
		return nil, err
	}

	s.publisher.Publish(ctx, events.ReservationEvent(events.TypeReservationCreated, reservation, s.clock.Now()))
	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"member_id", reservation.MemberID,
		"session_id", reservation.SessionID,
	)
	return reservation, nil
}

// admit runs the cutoff, duplicate and capacity checks and the insert in one
// transaction under the session's seat lock. The transaction is bounded by the
// lease and fences the lock before committing, so an admission that outlives
// its lease aborts instead of racing the next holder.
func (s *reservationService) admit(ctx context.Context, req *model.ReserveRequest) (*model.Reservation, error) {
	lease, err := s.locker.Acquire(ctx, seatlock.SessionKey(req.SessionID))
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	leaseCtx, cancel := lease.Bound(ctx)
	defer cancel()

	var reservation *model.Reservation
	err = s.repo.ExecuteTransaction(leaseCtx, func(txCtx context.Context) error {
		reservation = nil

		session, err := s.sessions.FindByID(txCtx, req.SessionID)
		if err != nil {
			return s.sessionLookupError(req.SessionID, err)
		}

		if !session.StartsAt.After(s.clock.Now().Add(s.cfg.BookingCutoff)) {
			return apperrors.TooSoonToBook(session.ID, session.StartsAt, s.cfg.BookingCutoff)
		}

		_, err = s.repo.FindByMemberAndSession(txCtx, req.MemberID, req.SessionID)
		switch {
		case err == nil:
			return apperrors.AlreadyBooked(req.MemberID, req.SessionID)
		case !errors.Is(err, reservationserrors.ErrNotFound):
			return apperrors.StoreUnavailable("Failed to check existing reservation", err)
		}

		reserved, err := s.repo.CountBySession(txCtx, req.SessionID)
		if err != nil {
			return apperrors.StoreUnavailable("Failed to count reservations", err)
		}
		if reserved >= int64(session.Capacity) {
			return apperrors.SessionFull(session.ID, session.Capacity)
		}

		candidate := &model.Reservation{MemberID: req.MemberID, SessionID: req.SessionID}
		if err := s.repo.Create(txCtx, candidate); err != nil {
			if errors.Is(err, reservationserrors.ErrDuplicate) {
				return apperrors.AlreadyBooked(req.MemberID, req.SessionID)
			}
			return apperrors.StoreUnavailable("Failed to create reservation", err)
		}
		if err := lease.Fence(txCtx); err != nil {
			return err
		}
		reservation = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

func (s *reservationService) Cancel(ctx context.Context, memberID, sessionID string) error {
	if memberID == "" || sessionID == "" {
		return apperrors.InvalidInput("member_id and session_id are required")
	}

	removed, err := s.repo.DeleteByMemberAndSession(ctx, memberID, sessionID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return apperrors.NotFound("Reservation")
		}
		s.cfg.Log.Error("Failed to cancel reservation",
			"member_id", memberID,
			"session_id", sessionID,
			"error", err,
		)
		return apperrors.StoreUnavailable("Failed to cancel reservation", err)
	}

	s.cancelled(ctx, removed)
	return nil
}

func (s *reservationService) CancelByID(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	removed, err := s.repo.Delete(ctx, id)
	if err != nil {
		return s.lookupError(id, err)
	}

	s.cancelled(ctx, removed)
	return nil
}

func (s *reservationService) cancelled(ctx context.Context, r *model.Reservation) {
	s.publisher.Publish(ctx, events.ReservationEvent(events.TypeReservationCanceled, r, s.clock.Now()))
	s.cfg.Log.Info("Reservation cancelled successfully",
		"id", r.ID,
		"member_id", r.MemberID,
		"session_id", r.SessionID,
	)
}

func (s *reservationService) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Reservation ID cannot be empty")
	}

	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	return r, nil
}

func (s *reservationService) ListBySession(ctx context.Context, sessionID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if sessionID == "" {
		return nil, 0, apperrors.InvalidInput("session_id is required")
	}
	return s.list(ctx, "session_id", sessionID, limit, offset,
		s.repo.CountBySession, s.repo.FindBySession)
}

func (s *reservationService) ListByMember(ctx context.Context, memberID string, limit int, offset int64) ([]*model.Reservation, int64, error) {
	if memberID == "" {
		return nil, 0, apperrors.InvalidInput("member_id is required")
	}
	return s.list(ctx, "member_id", memberID, limit, offset,
		s.repo.CountByMember, s.repo.FindByMember)
}

func (s *reservationService) list(
	ctx context.Context,
	field, value string,
	limit int,
	offset int64,
	count func(ctx context.Context, id string) (int64, error),
	find func(ctx context.Context, id string, limit int, offset int64) ([]*model.Reservation, error),
) ([]*model.Reservation, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	sharedCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
	defer cancel()

	var total int64
	var reservations []*model.Reservation
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		total, err = count(sharedCtx, value)
		if err != nil {
			s.cfg.Log.Error("Failed to count reservations", field, value, "error", err)
			errCount = apperrors.StoreUnavailable("Failed to count reservations", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reservations, err = find(sharedCtx, value, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list reservations",
				field, value,
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.StoreUnavailable("Failed to retrieve reservations", err)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.cfg.Log.Debug("Reservation search completed", field, value, "results", len(reservations))
	return reservations, total, nil
}

func (s *reservationService) Availability(ctx context.Context, sessionID string) (*model.SessionAvailability, error) {
	if sessionID == "" {
		return nil, apperrors.InvalidInput("session_id is required")
	}

	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, s.sessionLookupError(sessionID, err)
	}

	reserved, err := s.repo.CountBySession(ctx, sessionID)
	if err != nil {
		s.cfg.Log.Error("Failed to count reservations", "session_id", sessionID, "error", err)
		return nil, apperrors.StoreUnavailable("Failed to count reservations", err)
	}

	availability := model.NewSessionAvailability(session, reserved)
	return &availability, nil
}

func (s *reservationService) resolveMember(ctx context.Context, memberID string) error {
	if _, err := s.directory.GetUser(ctx, memberID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return apperrors.NotFoundWithID("Member", memberID)
		}
		s.cfg.Log.Error("Failed to resolve member", "member_id", memberID, "error", err)
		return apperrors.StoreUnavailable("Failed to resolve member", err)
	}
	return nil
}

func (s *reservationService) sessionLookupError(sessionID string, err error) error {
	switch {
	case errors.Is(err, sessionserrors.ErrNotFound), errors.Is(err, sessionserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Session", sessionID)
	case apperrors.IsAppError(err):
		return err
	}
	s.cfg.Log.Error("Failed to load session", "session_id", sessionID, "error", err)
	return apperrors.StoreUnavailable("Failed to load session", err)
}

func (s *reservationService) lookupError(id string, err error) error {
	switch {
	case errors.Is(err, reservationserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Reservation", id)
	case errors.Is(err, reservationserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid reservation ID format")
	}
	s.cfg.Log.Error("Failed to access reservation", "id", id, "error", err)
	return apperrors.StoreUnavailable("Failed to access reservation", err)
}

func (s *reservationService) logFailure(message string, err error, args ...any) {
	args = append(args, "error", err)
	if apperrors.HasCode(err, apperrors.CodeStoreUnavailable) {
		s.cfg.Log.Error(message, args...)
		return
	}
	s.cfg.Log.Warn(message, args...)
}
