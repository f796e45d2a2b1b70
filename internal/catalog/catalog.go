// Package catalog persists integration records. Two implementations share
// the Store interface: a local key-value file for single-user setups and a
// PostgreSQL table with LISTEN/NOTIFY change events for shared ones.
package catalog

import (
	"context"
	"errors"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

var (
	// ErrNotFound is returned by Update and Delete for unknown ids.
	ErrNotFound = errors.New("install not found")
	// ErrDuplicateID is returned by Insert when the id is taken.
	ErrDuplicateID = errors.New("install id already exists")
)

// Store is the capability set every catalog backend provides.
type Store interface {
	// ListAll returns every record sorted by id ascending.
	ListAll(ctx context.Context) ([]model.Install, error)
	// Insert stores rec as-is; the caller computes the id.
	Insert(ctx context.Context, rec model.Install) (model.Install, error)
	Update(ctx context.Context, id int, patch model.Patch) error
	Delete(ctx context.Context, id int) error
	// MaxID returns the highest id in use, or 0 for an empty catalog.
	MaxID(ctx context.Context) (int, error)
	// Subscribe delivers change events until the subscription is closed or
	// ctx ends. Backends without notifications return a no-op subscription.
	Subscribe(ctx context.Context, fn func(model.ChangeEvent)) (Subscription, error)
}

// Subscription is a handle on a Subscribe call.
type Subscription interface {
	Close() error
}

type noopSubscription struct{}

func (noopSubscription) Close() error { return nil }
