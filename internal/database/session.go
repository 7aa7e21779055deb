package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Session carries one lazily-begun write transaction. It is safe for use by
// multiple goroutines but statements are serialized.
type Session struct {
	db *DB

	mu         sync.Mutex
	tx         *sql.Tx
	savepoints int
	checkpoint string
}

// InTransaction reports whether a transaction is open.
func (s *Session) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Begin opens the write transaction now instead of at the first write. The
// transaction takes SQLite's write lock immediately, so reads made after
// Begin cannot be invalidated by another process before Commit. Begin does
// nothing when a transaction is already open.
func (s *Session) Begin(ctx context.Context) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginLocked(ctx); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	return nil
}

func (s *Session) beginLocked(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		s.tx = tx
		s.savepoints = 0
		s.checkpoint = ""
		return nil
	})
}

// ExecContext runs a write statement inside the session transaction, beginning
// one if necessary.
func (s *Session) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.beginLocked(ctx); err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.tx.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// QueryContext runs a read through the open transaction, or the pool when none is open.
func (s *Session) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows *sql.Rows
	err := retryOnBusy(ctx, func() error {
		var queryErr error
		if s.tx != nil {
			rows, queryErr = s.tx.QueryContext(ctx, query, args...)
		} else {
			rows, queryErr = s.db.db.QueryContext(ctx, query, args...)
		}
		return queryErr
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// QueryRowContext runs a single-row read through the open transaction, or the pool.
func (s *Session) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return s.tx.QueryRowContext(ctx, query, args...)
	}
	return s.db.db.QueryRowContext(ctx, query, args...)
}

// Checkpoint marks the current point inside the open transaction. A later
// RollbackToCheckpoint discards only the writes made after it. Without an open
// transaction there is nothing to protect and Checkpoint does nothing.
func (s *Session) Checkpoint(ctx context.Context) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		s.checkpoint = ""
		return nil
	}
	if s.checkpoint != "" {
		if _, err := s.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+s.checkpoint); err != nil {
			return fmt.Errorf("release checkpoint: %w", err)
		}
	}
	s.savepoints++
	name := fmt.Sprintf("checkpoint_%d", s.savepoints)
	if _, err := s.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		s.checkpoint = ""
		return fmt.Errorf("create checkpoint: %w", err)
	}
	s.checkpoint = name
	return nil
}

// RollbackToCheckpoint discards writes made since the last checkpoint. When no
// checkpoint was taken inside the current transaction the whole transaction is
// rolled back.
func (s *Session) RollbackToCheckpoint(ctx context.Context) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	if s.checkpoint == "" {
		return s.rollbackLocked()
	}
	if _, err := s.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+s.checkpoint); err != nil {
		return fmt.Errorf("rollback to checkpoint: %w", err)
	}
	return nil
}

// Commit makes the session's writes durable and ends the transaction.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.checkpoint = ""
	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards every write since the transaction began.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbackLocked()
}

func (s *Session) rollbackLocked() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.checkpoint = ""
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Close rolls back any open transaction.
func (s *Session) Close() error {
	return s.Rollback()
}
