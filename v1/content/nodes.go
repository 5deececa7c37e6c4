package content

import (
	"context"
	"fmt"
)

// Kind identifies the four content node kinds.
type Kind int

const (
	KindScale Kind = iota
	KindItem
	KindTemplate
	KindEvaluation
)

func (k Kind) String() string {
	switch k {
	case KindScale:
		return "scale"
	case KindItem:
		return "item"
	case KindTemplate:
		return "template"
	case KindEvaluation:
		return "evaluation"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Repository gives the cascade access to lock flags and the containment
// graph. All queries are by id; absent nodes surface as errors wrapping
// evalerrors.ErrNotFound.
type Repository interface {
	// Locked reports the lock flag of a node.
	Locked(ctx context.Context, kind Kind, id int64) (bool, error)
	// SetLockedFlag writes the lock flag of a node.
	SetLockedFlag(ctx context.Context, kind Kind, id int64, locked bool) error

	// ScaleOfItem returns the scale an item answers on, if any.
	ScaleOfItem(ctx context.Context, itemID int64) (int64, bool, error)
	// ItemsOfTemplate returns the items a template contains.
	ItemsOfTemplate(ctx context.Context, templateID int64) ([]int64, error)
	// TemplatesOfEvaluation returns the template(s) an evaluation uses,
	// including the added template when present.
	TemplatesOfEvaluation(ctx context.Context, evalID int64) ([]int64, error)

	// ItemsReferencingScale returns every item referencing a scale.
	ItemsReferencingScale(ctx context.Context, scaleID int64) ([]int64, error)
	// TemplatesContainingItem returns every template containing an item.
	TemplatesContainingItem(ctx context.Context, itemID int64) ([]int64, error)
	// EvaluationsUsingTemplate returns every evaluation using a template.
	EvaluationsUsingTemplate(ctx context.Context, templateID int64) ([]int64, error)
}
