package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
	"github.com/sakaicontrib/evaluation-sub013/v1/lifecycle"
	"github.com/sakaicontrib/evaluation-sub013/v1/metrics"
)

// lockRow is the single-row-per-held-lock schema. Absence means unheld.
type lockRow struct {
	Name         string    `gorm:"primaryKey;size:190;column:name"`
	Holder       string    `gorm:"size:190;column:holder"`
	LastModified time.Time `gorm:"column:last_modified"`
}

func (lockRow) TableName() string { return "eval_locks" }

// Gorm implements Locker on a relational lock table shared by the cluster.
type Gorm struct {
	db    *gorm.DB
	clock lifecycle.Clock
	log   zerolog.Logger
}

// GormOption configures a Gorm locker.
type GormOption func(*Gorm)

// WithGormClock pins the clock, mainly for tests.
func WithGormClock(c lifecycle.Clock) GormOption {
	return func(l *Gorm) { l.clock = c }
}

// WithGormLogger sets the logger.
func WithGormLogger(log zerolog.Logger) GormOption {
	return func(l *Gorm) { l.log = log }
}

// NewGorm returns a Gorm locker using the provided DB connection, creating
// the lock table when missing.
func NewGorm(db *gorm.DB, opts ...GormOption) *Gorm {
	if !db.Migrator().HasTable(&lockRow{}) {
		_ = db.AutoMigrate(&lockRow{})
	}
	l := &Gorm{db: db, clock: lifecycle.System, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Obtain implements Locker.Obtain.
func (l *Gorm) Obtain(ctx context.Context, name, holder string, lease time.Duration) (Status, error) {
	now := l.clock.Now()

	var row lockRow
	err := l.db.WithContext(ctx).First(&row, "name = ?", name).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		create := lockRow{Name: name, Holder: holder, LastModified: now}
		if err := l.db.WithContext(ctx).Create(&create).Error; err != nil {
			return l.fail(ctx, name, err)
		}
		metrics.LockAcquiredCounter.Inc()
		return StatusAcquired, nil
	case err != nil:
		return l.fail(ctx, name, err)
	}

	if row.Holder == holder {
		// re-entrant renewal, regardless of lease age
		if err := l.db.WithContext(ctx).Model(&lockRow{}).
			Where("name = ? AND holder = ?", name, holder).
			Update("last_modified", now).Error; err != nil {
			return l.fail(ctx, name, err)
		}
		metrics.LockAcquiredCounter.Inc()
		return StatusAcquired, nil
	}

	if now.Sub(row.LastModified) > lease {
		// Steal the stale lease. The holder guard keeps two stealers from
		// both believing they won.
		res := l.db.WithContext(ctx).Model(&lockRow{}).
			Where("name = ? AND holder = ?", name, row.Holder).
			Updates(map[string]any{"holder": holder, "last_modified": now})
		if res.Error != nil {
			return l.fail(ctx, name, res.Error)
		}
		if res.RowsAffected == 0 {
			metrics.LockDeniedCounter.Inc()
			return StatusDenied, nil
		}
		l.log.Warn().Str("lock", name).Str("holder", holder).
			Str("previous", row.Holder).Msg("stole stale lock lease")
		metrics.LockStolenCounter.Inc()
		metrics.LockAcquiredCounter.Inc()
		return StatusAcquired, nil
	}

	metrics.LockDeniedCounter.Inc()
	return StatusDenied, nil
}

// Release implements Locker.Release.
func (l *Gorm) Release(ctx context.Context, name, holder string) (bool, error) {
	res := l.db.WithContext(ctx).
		Where("name = ? AND holder = ?", name, holder).
		Delete(&lockRow{})
	if res.Error != nil {
		return false, fmt.Errorf("release lock %s: %w: %v", name, evalerrors.ErrStorage, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// fail deletes the row so a broken lock cannot wedge the cluster, then
// reports the distinguished Error outcome.
func (l *Gorm) fail(ctx context.Context, name string, cause error) (Status, error) {
	if err := l.db.WithContext(ctx).Where("name = ?", name).Delete(&lockRow{}).Error; err != nil {
		l.log.Error().Err(err).Str("lock", name).Msg("defensive lock cleanup failed")
	}
	return StatusError, fmt.Errorf("obtain lock %s: %w: %v", name, evalerrors.ErrStorage, cause)
}
