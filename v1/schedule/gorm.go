package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

type invocationRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ComponentID string    `gorm:"size:64;index:idx_component_key;column:component_id"`
	OpaqueKey   string    `gorm:"size:190;index:idx_component_key;column:opaque_key"`
	RunAt       time.Time `gorm:"index;column:run_at"`
	CreatedAt   time.Time
}

func (invocationRow) TableName() string { return "scheduled_invocations" }

// GormScheduler implements Source on a relational invocation table shared
// by the cluster.
type GormScheduler struct {
	db *gorm.DB
}

// NewGormScheduler returns a GormScheduler, creating the invocation table
// when missing.
func NewGormScheduler(db *gorm.DB) *GormScheduler {
	if !db.Migrator().HasTable(&invocationRow{}) {
		_ = db.AutoMigrate(&invocationRow{})
	}
	return &GormScheduler{db: db}
}

// CreateInvocation implements Scheduler.CreateInvocation.
func (s *GormScheduler) CreateInvocation(ctx context.Context, componentID, opaqueKey string, runAt time.Time) (string, error) {
	row := invocationRow{
		ID:          uuid.NewString(),
		ComponentID: componentID,
		OpaqueKey:   opaqueKey,
		RunAt:       runAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("create invocation %s: %w: %v", opaqueKey, evalerrors.ErrStorage, err)
	}
	return row.ID, nil
}

// FindInvocations implements Scheduler.FindInvocations.
func (s *GormScheduler) FindInvocations(ctx context.Context, componentID, opaqueKey string) ([]Invocation, error) {
	var rows []invocationRow
	err := s.db.WithContext(ctx).
		Where("component_id = ? AND opaque_key = ?", componentID, opaqueKey).
		Order("run_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find invocations %s: %w: %v", opaqueKey, evalerrors.ErrStorage, err)
	}
	return rowsToInvocations(rows), nil
}

// DeleteInvocation implements Scheduler.DeleteInvocation. Unknown ids are
// a no-op.
func (s *GormScheduler) DeleteInvocation(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Delete(&invocationRow{}, "id = ?", id).Error
	if err != nil {
		return fmt.Errorf("delete invocation %s: %w: %v", id, evalerrors.ErrStorage, err)
	}
	return nil
}

// DueInvocations implements Source.DueInvocations.
func (s *GormScheduler) DueInvocations(ctx context.Context, componentID string, now time.Time, limit int) ([]Invocation, error) {
	q := s.db.WithContext(ctx).
		Where("component_id = ? AND run_at <= ?", componentID, now).
		Order("run_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []invocationRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("due invocations: %w: %v", evalerrors.ErrStorage, err)
	}
	return rowsToInvocations(rows), nil
}

func rowsToInvocations(rows []invocationRow) []Invocation {
	out := make([]Invocation, 0, len(rows))
	for _, r := range rows {
		out = append(out, Invocation{
			ID:          r.ID,
			ComponentID: r.ComponentID,
			OpaqueKey:   r.OpaqueKey,
			RunAt:       r.RunAt,
		})
	}
	return out
}
