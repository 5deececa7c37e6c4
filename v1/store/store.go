package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

// EvaluationStore loads and saves evaluations. Logically removed
// evaluations behave as absent.
type EvaluationStore interface {
	// Load fetches an evaluation by id. The boolean reports presence.
	Load(ctx context.Context, id int64) (*Evaluation, bool, error)
	// Save creates or updates an evaluation.
	Save(ctx context.Context, e *Evaluation) error
	// Delete tombstones an evaluation. Absent ids are a no-op.
	Delete(ctx context.Context, id int64) error
	// All returns every live evaluation, for bootstrap reconciliation.
	All(ctx context.Context) ([]*Evaluation, error)
}

const defaultOpTimeout = 5 * time.Second

// Gorm implements EvaluationStore on a shared relational database.
type Gorm struct {
	db      *gorm.DB
	timeout time.Duration
}

// GormOption configures a Gorm store.
type GormOption func(*Gorm)

// WithTimeout sets the per-operation timeout.
func WithTimeout(d time.Duration) GormOption {
	return func(s *Gorm) { s.timeout = d }
}

// NewGorm returns a Gorm store, migrating the evaluation and content
// tables when missing.
func NewGorm(db *gorm.DB, opts ...GormOption) *Gorm {
	_ = db.AutoMigrate(&Evaluation{}, &Template{}, &TemplateItem{}, &Item{}, &Scale{})
	s := &Gorm{db: db, timeout: defaultOpTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying connection for collaborating repositories.
func (s *Gorm) DB() *gorm.DB { return s.db }

// Load implements EvaluationStore.Load.
func (s *Gorm) Load(ctx context.Context, id int64) (*Evaluation, bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var e Evaluation
	err := s.db.WithContext(cctx).First(&e, "id = ? AND deleted = ?", id, false).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load evaluation %d: %w: %v", id, evalerrors.ErrStorage, err)
	}
	return &e, true, nil
}

// Save implements EvaluationStore.Save.
func (s *Gorm) Save(ctx context.Context, e *Evaluation) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.db.WithContext(cctx).Save(e).Error; err != nil {
		return fmt.Errorf("save evaluation %d: %w: %v", e.ID, evalerrors.ErrStorage, err)
	}
	return nil
}

// Delete implements EvaluationStore.Delete.
func (s *Gorm) Delete(ctx context.Context, id int64) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(cctx).Model(&Evaluation{}).
		Where("id = ?", id).Update("deleted", true).Error
	if err != nil {
		return fmt.Errorf("delete evaluation %d: %w: %v", id, evalerrors.ErrStorage, err)
	}
	return nil
}

// All implements EvaluationStore.All.
func (s *Gorm) All(ctx context.Context) ([]*Evaluation, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var evals []*Evaluation
	if err := s.db.WithContext(cctx).Find(&evals, "deleted = ?", false).Error; err != nil {
		return nil, fmt.Errorf("list evaluations: %w: %v", evalerrors.ErrStorage, err)
	}
	return evals, nil
}
