package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sakaicontrib/evaluation-sub013/v1/content"
	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

// ContentRepository implements content.Repository over the GORM models,
// resolving containment with explicit queries instead of in-memory graph
// walks.
type ContentRepository struct {
	db *gorm.DB
}

// NewContentRepository returns a repository over the given connection. The
// tables are expected to exist already (NewGorm migrates them).
func NewContentRepository(db *gorm.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

func (r *ContentRepository) model(kind content.Kind) any {
	switch kind {
	case content.KindScale:
		return &Scale{}
	case content.KindItem:
		return &Item{}
	case content.KindTemplate:
		return &Template{}
	case content.KindEvaluation:
		return &Evaluation{}
	}
	panic(fmt.Sprintf("store: unknown content kind %v", kind))
}

// Locked implements content.Repository.Locked.
func (r *ContentRepository) Locked(ctx context.Context, kind content.Kind, id int64) (bool, error) {
	var row struct{ Locked bool }
	err := r.db.WithContext(ctx).Model(r.model(kind)).
		Select("locked").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("%s %d: %w", kind, id, evalerrors.ErrNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("load %s %d: %w: %v", kind, id, evalerrors.ErrStorage, err)
	}
	return row.Locked, nil
}

// SetLockedFlag implements content.Repository.SetLockedFlag.
func (r *ContentRepository) SetLockedFlag(ctx context.Context, kind content.Kind, id int64, locked bool) error {
	res := r.db.WithContext(ctx).Model(r.model(kind)).
		Where("id = ?", id).Update("locked", locked)
	if res.Error != nil {
		return fmt.Errorf("set locked %s %d: %w: %v", kind, id, evalerrors.ErrStorage, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, evalerrors.ErrNotFound)
	}
	return nil
}

// ScaleOfItem implements content.Repository.ScaleOfItem.
func (r *ContentRepository) ScaleOfItem(ctx context.Context, itemID int64) (int64, bool, error) {
	var item Item
	err := r.db.WithContext(ctx).First(&item, "id = ?", itemID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, fmt.Errorf("item %d: %w", itemID, evalerrors.ErrNotFound)
	}
	if err != nil {
		return 0, false, fmt.Errorf("load item %d: %w: %v", itemID, evalerrors.ErrStorage, err)
	}
	return item.ScaleID, item.ScaleID != 0, nil
}

// ItemsOfTemplate implements content.Repository.ItemsOfTemplate.
func (r *ContentRepository) ItemsOfTemplate(ctx context.Context, templateID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&TemplateItem{}).
		Where("template_id = ?", templateID).Order("position").
		Pluck("item_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("items of template %d: %w: %v", templateID, evalerrors.ErrStorage, err)
	}
	return ids, nil
}

// TemplatesOfEvaluation implements content.Repository.TemplatesOfEvaluation.
func (r *ContentRepository) TemplatesOfEvaluation(ctx context.Context, evalID int64) ([]int64, error) {
	var e Evaluation
	err := r.db.WithContext(ctx).First(&e, "id = ?", evalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("evaluation %d: %w", evalID, evalerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load evaluation %d: %w: %v", evalID, evalerrors.ErrStorage, err)
	}
	ids := []int64{e.TemplateID}
	if e.AddedTemplateID != 0 {
		ids = append(ids, e.AddedTemplateID)
	}
	return ids, nil
}

// ItemsReferencingScale implements content.Repository.ItemsReferencingScale.
func (r *ContentRepository) ItemsReferencingScale(ctx context.Context, scaleID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&Item{}).
		Where("scale_id = ?", scaleID).Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("items referencing scale %d: %w: %v", scaleID, evalerrors.ErrStorage, err)
	}
	return ids, nil
}

// TemplatesContainingItem implements content.Repository.TemplatesContainingItem.
func (r *ContentRepository) TemplatesContainingItem(ctx context.Context, itemID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&TemplateItem{}).
		Where("item_id = ?", itemID).Pluck("template_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("templates containing item %d: %w: %v", itemID, evalerrors.ErrStorage, err)
	}
	return ids, nil
}

// EvaluationsUsingTemplate implements content.Repository.EvaluationsUsingTemplate.
func (r *ContentRepository) EvaluationsUsingTemplate(ctx context.Context, templateID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&Evaluation{}).
		Where("template_id = ? OR added_template_id = ?", templateID, templateID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("evaluations using template %d: %w: %v", templateID, evalerrors.ErrStorage, err)
	}
	return ids, nil
}
