package mongo

import (
	"context"
	"errors"
	"fmt"

	apperrors "fitbook/pkg/errors"
	"fitbook/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	labelTransientTransaction = "TransientTransactionError"
	labelUnknownCommitResult  = "UnknownTransactionCommitResult"
)

// TransactionFunc runs inside a transaction. The context it receives carries the
// transaction session and must be passed to every repository call.
type TransactionFunc func(ctx context.Context) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client      *mongo.Client
	maxAttempts int
	log         *logger.Logger
	run         func(ctx context.Context, fn TransactionFunc) error
}

// NewTransactionManager returns a manager that runs fn in a multi-document
// transaction. A transaction aborted with a transient label (write conflict,
// primary step-down) is re-run from the start, up to maxAttempts in total.
func NewTransactionManager(client *mongo.Client, maxAttempts int, log *logger.Logger) TransactionManager {
	m := &mongoTransactionManager{
		client:      client,
		maxAttempts: max(maxAttempts, 1),
		log:         log,
	}
	m.run = m.runOnce
	return m
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.run(ctx, fn)
		if err == nil {
			return nil
		}
		if apperrors.IsAppError(err) {
			return err
		}
		if !IsTransient(err) || ctx.Err() != nil {
			break
		}
		m.log.Warn("Transaction aborted by transient error",
			"attempt", attempt,
			"max_attempts", m.maxAttempts,
			"error", err,
		)
	}

	return apperrors.StoreUnavailable("Storage is temporarily unavailable, retry the request", fmt.Errorf("transaction failed: %w", err))
}

func (m *mongoTransactionManager) runOnce(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.Background())

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		txOpts := options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority())
		if err := session.StartTransaction(txOpts); err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if err := fn(sc); err != nil {
			_ = session.AbortTransaction(context.Background())
			return err
		}

		err := session.CommitTransaction(sc)
		if HasErrorLabel(err, labelUnknownCommitResult) {
			err = session.CommitTransaction(sc)
		}
		return err
	})
}

// IsTransient reports whether the server marked err as safe to retry as a whole transaction.
func IsTransient(err error) bool {
	return HasErrorLabel(err, labelTransientTransaction)
}

func HasErrorLabel(err error, label string) bool {
	if err == nil {
		return false
	}
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		return serverErr.HasErrorLabel(label)
	}
	return false
}
