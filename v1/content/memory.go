package content

import (
	"context"
	"fmt"
	"sync"

	evalerrors "github.com/sakaicontrib/evaluation-sub013/v1/errors"
)

// InMemoryRepository is a map-backed Repository for tests and small tools.
// Graph edges are registered through the Add helpers.
type InMemoryRepository struct {
	mu            sync.Mutex
	locked        map[Kind]map[int64]bool
	itemScale     map[int64]int64
	templateItems map[int64][]int64
	evalTemplates map[int64][]int64
}

// NewInMemoryRepository returns an empty InMemoryRepository.
func NewInMemoryRepository() *InMemoryRepository {
	locked := make(map[Kind]map[int64]bool)
	for _, k := range []Kind{KindScale, KindItem, KindTemplate, KindEvaluation} {
		locked[k] = make(map[int64]bool)
	}
	return &InMemoryRepository{
		locked:        locked,
		itemScale:     make(map[int64]int64),
		templateItems: make(map[int64][]int64),
		evalTemplates: make(map[int64][]int64),
	}
}

// AddScale registers a scale.
func (r *InMemoryRepository) AddScale(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[KindScale][id] = false
}

// AddItem registers an item; scaleID zero means no scale.
func (r *InMemoryRepository) AddItem(id, scaleID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[KindItem][id] = false
	if scaleID != 0 {
		r.itemScale[id] = scaleID
	}
}

// AddTemplate registers a template containing the given items.
func (r *InMemoryRepository) AddTemplate(id int64, itemIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[KindTemplate][id] = false
	r.templateItems[id] = append([]int64(nil), itemIDs...)
}

// AddEvaluation registers an evaluation using the given templates.
func (r *InMemoryRepository) AddEvaluation(id int64, templateIDs ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked[KindEvaluation][id] = false
	r.evalTemplates[id] = append([]int64(nil), templateIDs...)
}

// Locked implements Repository.Locked.
func (r *InMemoryRepository) Locked(ctx context.Context, kind Kind, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.locked[kind][id]
	if !ok {
		return false, fmt.Errorf("%s %d: %w", kind, id, evalerrors.ErrNotFound)
	}
	return v, nil
}

// SetLockedFlag implements Repository.SetLockedFlag.
func (r *InMemoryRepository) SetLockedFlag(ctx context.Context, kind Kind, id int64, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.locked[kind][id]; !ok {
		return fmt.Errorf("%s %d: %w", kind, id, evalerrors.ErrNotFound)
	}
	r.locked[kind][id] = locked
	return nil
}

// ScaleOfItem implements Repository.ScaleOfItem.
func (r *InMemoryRepository) ScaleOfItem(ctx context.Context, itemID int64) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sid, ok := r.itemScale[itemID]
	return sid, ok, nil
}

// ItemsOfTemplate implements Repository.ItemsOfTemplate.
func (r *InMemoryRepository) ItemsOfTemplate(ctx context.Context, templateID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.templateItems[templateID]...), nil
}

// TemplatesOfEvaluation implements Repository.TemplatesOfEvaluation.
func (r *InMemoryRepository) TemplatesOfEvaluation(ctx context.Context, evalID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.evalTemplates[evalID]...), nil
}

// ItemsReferencingScale implements Repository.ItemsReferencingScale.
func (r *InMemoryRepository) ItemsReferencingScale(ctx context.Context, scaleID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for iid, sid := range r.itemScale {
		if sid == scaleID {
			ids = append(ids, iid)
		}
	}
	return ids, nil
}

// TemplatesContainingItem implements Repository.TemplatesContainingItem.
func (r *InMemoryRepository) TemplatesContainingItem(ctx context.Context, itemID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for tid, items := range r.templateItems {
		for _, iid := range items {
			if iid == itemID {
				ids = append(ids, tid)
				break
			}
		}
	}
	return ids, nil
}

// EvaluationsUsingTemplate implements Repository.EvaluationsUsingTemplate.
func (r *InMemoryRepository) EvaluationsUsingTemplate(ctx context.Context, templateID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for eid, templates := range r.evalTemplates {
		for _, tid := range templates {
			if tid == templateID {
				ids = append(ids, eid)
				break
			}
		}
	}
	return ids, nil
}
