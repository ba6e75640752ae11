package uow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type counter struct {
	ID    uint `gorm:"primaryKey"`
	Value int
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&counter{}))
	return db
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"stale", fmt.Errorf("head moved: %w", ErrStale), true},
		{"duplicated key", gorm.ErrDuplicatedKey, true},
		{"pg serialization", &pgconn.PgError{Code: "40001"}, true},
		{"pg deadlock", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "40P01"}), true},
		{"pg unique", &pgconn.PgError{Code: "23505"}, true},
		{"pg check violation", &pgconn.PgError{Code: "23514"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, true},
		{"sqlite not null", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestRun_Commits(t *testing.T) {
	db := setupDB(t)
	u := New(db, Options{})

	err := u.Run(context.Background(), []string{"counter"}, func(tx *gorm.DB) error {
		return tx.Create(&counter{Value: 1}).Error
	})
	require.NoError(t, err)

	var n int64
	db.Model(&counter{}).Count(&n)
	assert.Equal(t, int64(1), n)
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	db := setupDB(t)
	u := New(db, Options{MaxAttempts: 5, Backoff: time.Millisecond})
	var retries []int
	u.OnRetry(func(attempt int, err error) { retries = append(retries, attempt) })

	attempts := 0
	err := u.Run(context.Background(), nil, func(tx *gorm.DB) error {
		attempts++
		if err := tx.Create(&counter{Value: attempts}).Error; err != nil {
			return err
		}
		if attempts < 3 {
			return ErrStale
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int{1, 2}, retries)

	// rolled back attempts leave nothing behind
	var rows []counter
	db.Find(&rows)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Value)
}

func TestRun_ExhaustedReturnsConflict(t *testing.T) {
	db := setupDB(t)
	u := New(db, Options{MaxAttempts: 3, Backoff: time.Millisecond})

	attempts := 0
	err := u.Run(context.Background(), nil, func(tx *gorm.DB) error {
		attempts++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 3, attempts)
}

func TestRun_DomainErrorIsNotRetried(t *testing.T) {
	db := setupDB(t)
	u := New(db, Options{MaxAttempts: 5, Backoff: time.Millisecond})
	errDomain := errors.New("insufficient stock")

	attempts := 0
	err := u.Run(context.Background(), nil, func(tx *gorm.DB) error {
		attempts++
		return errDomain
	})
	assert.ErrorIs(t, err, errDomain)
	assert.Equal(t, 1, attempts)
}

func TestRun_LockTimeoutReturnsBusy(t *testing.T) {
	db := setupDB(t)
	u := New(db, Options{LockTimeout: 30 * time.Millisecond})

	unlock, err := u.locks.Lock(context.Background(), "product:1")
	require.NoError(t, err)
	defer unlock()

	called := false
	err = u.Run(context.Background(), []string{"product:1"}, func(tx *gorm.DB) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, called)
}

func TestLocker_SerializesSameKey(t *testing.T) {
	l := NewLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "chain", "product:1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Zero(t, l.size(), "released keys must be forgotten")
}

func TestLocker_OverlappingKeySetsDoNotDeadlock(t *testing.T) {
	l := NewLocker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "product:1", "product:2")
			if err == nil {
				unlock()
			}
		}()
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "product:2", "product:1", "product:2")
			if err == nil {
				unlock()
			}
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("lockers deadlocked")
	}
	assert.Zero(t, l.size())
}

func TestLocker_CancelledWaitReleasesPartialLocks(t *testing.T) {
	l := NewLocker()
	unlock, err := l.Lock(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a", "b")
	require.ErrorIs(t, err, ErrBusy)

	// "a" was taken then released when waiting for "b" failed
	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlockA()
	unlock()
	assert.Zero(t, l.size())
}
