// Package uow runs a unit of work: a database transaction guarded by
// in-process keyed locks and retried a bounded number of times when the
// database reports a serialization conflict.
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConflict is returned once every attempt lost a concurrency race.
	ErrConflict = errors.New("conflict: concurrent update, retries exhausted")
	// ErrBusy is returned when a lock could not be acquired in time.
	ErrBusy = errors.New("busy: timed out waiting for a lock")
	// ErrStale can be returned by a unit to ask for a retry, typically after an
	// optimistic check found that a row moved under it.
	ErrStale = errors.New("stale read")
)

// Options tune a UnitOfWork.
type Options struct {
	MaxAttempts  int
	Backoff      time.Duration
	LockTimeout  time.Duration
	Serializable bool
}

// DefaultOptions are used for zero fields of Options.
var DefaultOptions = Options{
	MaxAttempts:  5,
	Backoff:      20 * time.Millisecond,
	LockTimeout:  5 * time.Second,
	Serializable: true,
}

// UnitOfWork runs functions inside retried transactions.
type UnitOfWork struct {
	db           *gorm.DB
	locks        *Locker
	opts         Options
	serializable bool
	onRetry      func(attempt int, err error)
}

// New creates a unit of work over db. SERIALIZABLE isolation is only
// requested from postgres; sqlite transactions are serialized already.
func New(db *gorm.DB, opts Options) *UnitOfWork {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultOptions.MaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultOptions.Backoff
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultOptions.LockTimeout
	}
	return &UnitOfWork{
		db:           db,
		locks:        NewLocker(),
		opts:         opts,
		serializable: opts.Serializable && db.Dialector.Name() == "postgres",
	}
}

// OnRetry registers a callback invoked before each retry.
func (u *UnitOfWork) OnRetry(fn func(attempt int, err error)) { u.onRetry = fn }

// DB returns the underlying connection for reads outside a unit.
func (u *UnitOfWork) DB() *gorm.DB { return u.db }

// Run locks keys, then runs fn in a transaction. fn may run several times and
// must not have side effects outside tx. Errors that are not retryable are
// returned as is, on the first attempt.
func (u *UnitOfWork) Run(ctx context.Context, keys []string, fn func(tx *gorm.DB) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, u.opts.LockTimeout)
	unlock, err := u.locks.Lock(lockCtx, keys...)
	cancel()
	if err != nil {
		return err
	}
	defer unlock()

	var last error
	for attempt := 1; attempt <= u.opts.MaxAttempts; attempt++ {
		err := u.db.WithContext(ctx).Transaction(fn, u.txOptions())
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		last = err
		if attempt == u.opts.MaxAttempts {
			break
		}
		if u.onRetry != nil {
			u.onRetry(attempt, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrBusy, ctx.Err())
		case <-time.After(time.Duration(attempt) * u.opts.Backoff):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrConflict, u.opts.MaxAttempts, last)
}

func (u *UnitOfWork) txOptions() *sql.TxOptions {
	if u.serializable {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// IsRetryable reports whether err comes from losing a race against another
// transaction: serialization failure, deadlock, lock timeout, unique violation
// on a sequence or chain row, or a busy sqlite database.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStale) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "23505":
			return true
		}
		return false
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy ||
			liteErr.Code == sqlite3.ErrLocked ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

// ForUpdate adds a row lock to the next query. SQLite has no row locks; its
// writers are serialized by the database lock.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
