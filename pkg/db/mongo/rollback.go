package mongo

import (
	"context"
	"sync"
)

type rollbackKey struct{}

type rollbackLog struct {
	mu    sync.Mutex
	undos []func()
}

// RunWithRollback gives stores without transactions of their own an abort
// path. Changes registered through OnRollback while fn runs are undone, newest
// first, when fn returns an error.
func RunWithRollback(ctx context.Context, fn TransactionFunc) error {
	log := &rollbackLog{}
	err := fn(context.WithValue(ctx, rollbackKey{}, log))
	if err != nil {
		log.mu.Lock()
		undos := log.undos
		log.undos = nil
		log.mu.Unlock()
		for i := len(undos) - 1; i >= 0; i-- {
			undos[i]()
		}
	}
	return err
}

// OnRollback registers undo against the enclosing RunWithRollback call. It is
// a no-op outside one.
func OnRollback(ctx context.Context, undo func()) {
	log, ok := ctx.Value(rollbackKey{}).(*rollbackLog)
	if !ok {
		return
	}
	log.mu.Lock()
	log.undos = append(log.undos, undo)
	log.mu.Unlock()
}
