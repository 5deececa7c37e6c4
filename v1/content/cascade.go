package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Cascade applies and clears the immutability flag across the containment
// graph.
type Cascade struct {
	repo Repository
	log  zerolog.Logger
}

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) CascadeOption {
	return func(c *Cascade) { c.log = log }
}

// NewCascade returns a Cascade over the given repository.
func NewCascade(repo Repository, opts ...CascadeOption) *Cascade {
	c := &Cascade{repo: repo, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLocked moves the node to the desired lock state and reports whether
// anything changed.
//
// Locking cascades unconditionally downward. Unlocking first checks that no
// other currently locked node still references this one; a blocked unlock
// is a no-op returning false, and blocked children are silently left locked
// when the parent recurses into them.
//
// Calling with a zero id is a programming error and panics.
func (c *Cascade) SetLocked(ctx context.Context, kind Kind, id int64, desired bool) (bool, error) {
	if id == 0 {
		panic(fmt.Sprintf("content: SetLocked on unsaved %s node", kind))
	}
	cur, err := c.repo.Locked(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if cur == desired {
		return false, nil
	}
	if desired {
		if err := c.lock(ctx, kind, id); err != nil {
			return false, err
		}
		return true, nil
	}
	return c.unlock(ctx, kind, id)
}

func (c *Cascade) lock(ctx context.Context, kind Kind, id int64) error {
	if err := c.repo.SetLockedFlag(ctx, kind, id, true); err != nil {
		return err
	}
	return c.eachChild(ctx, kind, id, func(childKind Kind, childID int64) error {
		locked, err := c.repo.Locked(ctx, childKind, childID)
		if err != nil {
			return err
		}
		if locked {
			return nil
		}
		return c.lock(ctx, childKind, childID)
	})
}

func (c *Cascade) unlock(ctx context.Context, kind Kind, id int64) (bool, error) {
	blocked, err := c.hasLockedReferrer(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if blocked {
		c.log.Debug().Stringer("kind", kind).Int64("id", id).
			Msg("unlock blocked by locked referrer")
		return false, nil
	}
	if err := c.repo.SetLockedFlag(ctx, kind, id, false); err != nil {
		return false, err
	}
	// Children only actually unlock if no other locked reference remains.
	err = c.eachChild(ctx, kind, id, func(childKind Kind, childID int64) error {
		locked, err := c.repo.Locked(ctx, childKind, childID)
		if err != nil {
			return err
		}
		if !locked {
			return nil
		}
		_, err = c.unlock(ctx, childKind, childID)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cascade) eachChild(ctx context.Context, kind Kind, id int64, fn func(Kind, int64) error) error {
	switch kind {
	case KindEvaluation:
		templates, err := c.repo.TemplatesOfEvaluation(ctx, id)
		if err != nil {
			return err
		}
		for _, tid := range templates {
			if err := fn(KindTemplate, tid); err != nil {
				return err
			}
		}
	case KindTemplate:
		items, err := c.repo.ItemsOfTemplate(ctx, id)
		if err != nil {
			return err
		}
		for _, iid := range items {
			if err := fn(KindItem, iid); err != nil {
				return err
			}
		}
	case KindItem:
		sid, ok, err := c.repo.ScaleOfItem(ctx, id)
		if err != nil {
			return err
		}
		if ok {
			return fn(KindScale, sid)
		}
	case KindScale:
	}
	return nil
}

func (c *Cascade) hasLockedReferrer(ctx context.Context, kind Kind, id int64) (bool, error) {
	var (
		refs       []int64
		parentKind Kind
		err        error
	)
	switch kind {
	case KindScale:
		refs, err = c.repo.ItemsReferencingScale(ctx, id)
		parentKind = KindItem
	case KindItem:
		refs, err = c.repo.TemplatesContainingItem(ctx, id)
		parentKind = KindTemplate
	case KindTemplate:
		refs, err = c.repo.EvaluationsUsingTemplate(ctx, id)
		parentKind = KindEvaluation
	case KindEvaluation:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, rid := range refs {
		locked, err := c.repo.Locked(ctx, parentKind, rid)
		if err != nil {
			return false, err
		}
		if locked {
			return true, nil
		}
	}
	return false, nil
}
