package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/dharsanguruparan/InstallTracker/internal/kvstore"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

// LocalKey is the kvstore key holding the record list in local mode.
const LocalKey = "hyros-installs"

// Local keeps the catalog in a kvstore.Store. It is meant for one operator,
// so Subscribe never delivers anything.
type Local struct {
	kv *kvstore.Store
}

// NewLocal constructs a Local store on top of kv.
func NewLocal(kv *kvstore.Store) *Local {
	return &Local{kv: kv}
}

// ListAll returns a copy of every record sorted by id.
func (l *Local) ListAll(ctx context.Context) ([]model.Install, error) {
	var recs []model.Install
	if _, err := l.kv.Get(LocalKey, &recs); err != nil {
		return nil, fmt.Errorf("load installs: %w", err)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

// Insert appends rec, rejecting duplicate ids.
func (l *Local) Insert(ctx context.Context, rec model.Install) (model.Install, error) {
	err := kvstore.Update(l.kv, LocalKey, func(recs *[]model.Install) error {
		for _, existing := range *recs {
			if existing.ID == rec.ID {
				return fmt.Errorf("insert install %d: %w", rec.ID, ErrDuplicateID)
			}
		}
		*recs = append(*recs, rec.Clone())
		return nil
	})
	if err != nil {
		return model.Install{}, err
	}
	return rec, nil
}

// Update applies patch to the record with the given id.
func (l *Local) Update(ctx context.Context, id int, patch model.Patch) error {
	return kvstore.Update(l.kv, LocalKey, func(recs *[]model.Install) error {
		for i := range *recs {
			if (*recs)[i].ID == id {
				patch.Apply(&(*recs)[i])
				return nil
			}
		}
		return fmt.Errorf("update install %d: %w", id, ErrNotFound)
	})
}

// Delete removes the record with the given id.
func (l *Local) Delete(ctx context.Context, id int) error {
	return kvstore.Update(l.kv, LocalKey, func(recs *[]model.Install) error {
		for i := range *recs {
			if (*recs)[i].ID == id {
				*recs = append((*recs)[:i], (*recs)[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("delete install %d: %w", id, ErrNotFound)
	})
}

// MaxID scans for the highest id.
func (l *Local) MaxID(ctx context.Context) (int, error) {
	recs, err := l.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	max := 0
	for _, r := range recs {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

// Subscribe returns a subscription that never fires.
func (l *Local) Subscribe(ctx context.Context, fn func(model.ChangeEvent)) (Subscription, error) {
	return noopSubscription{}, nil
}
