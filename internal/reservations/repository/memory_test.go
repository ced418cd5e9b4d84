package repository

import (
	"context"
	"errors"
	"testing"

	reservationserrors "fitbook/internal/reservations/errors"
	"fitbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryRepository_UniquePerMemberAndSession(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	member, session := primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()

	first := &model.Reservation{MemberID: member, SessionID: session}
	require.NoError(t, repo.Create(ctx, first))
	require.NotEmpty(t, first.ID)

	err := repo.Create(ctx, &model.Reservation{MemberID: member, SessionID: session})
	require.ErrorIs(t, err, reservationserrors.ErrDuplicate)

	count, err := repo.CountBySession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryRepository_DeleteFreesThePair(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	member, session := primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex()

	res := &model.Reservation{MemberID: member, SessionID: session}
	require.NoError(t, repo.Create(ctx, res))

	deleted, err := repo.DeleteByMemberAndSession(ctx, member, session)
	require.NoError(t, err)
	assert.Equal(t, res.ID, deleted.ID)

	_, err = repo.DeleteByMemberAndSession(ctx, member, session)
	require.ErrorIs(t, err, reservationserrors.ErrNotFound)

	_, err = repo.FindByID(ctx, res.ID)
	require.ErrorIs(t, err, reservationserrors.ErrNotFound)

	require.NoError(t, repo.Create(ctx, &model.Reservation{MemberID: member, SessionID: session}))
}

func TestMemoryRepository_Pagination(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	session := primitive.NewObjectID().Hex()

	for range 5 {
		require.NoError(t, repo.Create(ctx, &model.Reservation{
			MemberID:  primitive.NewObjectID().Hex(),
			SessionID: session,
		}))
	}

	page, err := repo.FindBySession(ctx, session, 2, 3)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = repo.FindBySession(ctx, session, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = repo.Delete(ctx, "bad-id")
	require.ErrorIs(t, err, reservationserrors.ErrInvalidID)
}

func TestMemoryRepository_ExecuteTransactionRollsBack(t *testing.T) {
	repo := NewMemoryReservationRepository()
	ctx := context.Background()
	session := primitive.NewObjectID().Hex()

	kept := &model.Reservation{MemberID: primitive.NewObjectID().Hex(), SessionID: session}
	require.NoError(t, repo.Create(ctx, kept))

	aborted := errors.New("lease lapsed")
	err := repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := repo.Create(txCtx, &model.Reservation{MemberID: primitive.NewObjectID().Hex(), SessionID: session}); err != nil {
			return err
		}
		if _, err := repo.Delete(txCtx, kept.ID); err != nil {
			return err
		}
		return aborted
	})
	require.ErrorIs(t, err, aborted)

	count, err := repo.CountBySession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	_, err = repo.FindByMemberAndSession(ctx, kept.MemberID, session)
	require.NoError(t, err, "deleted reservation should be restored")

	err = repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return repo.Create(txCtx, &model.Reservation{MemberID: primitive.NewObjectID().Hex(), SessionID: session})
	})
	require.NoError(t, err)
	count, err = repo.CountBySession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
