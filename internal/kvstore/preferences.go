package kvstore

import "context"

// DefaultCheckerKey is where the default checker name lives. It is separate
// from the record set and outlives it.
const DefaultCheckerKey = "hyros-default-checker"

// Preferences exposes the operator preferences kept in a Store.
type Preferences struct {
	store *Store
}

// NewPreferences wraps store.
func NewPreferences(store *Store) *Preferences {
	return &Preferences{store: store}
}

// DefaultChecker returns the saved name, or "" when none was saved.
func (p *Preferences) DefaultChecker(ctx context.Context) (string, error) {
	var name string
	if _, err := p.store.Get(DefaultCheckerKey, &name); err != nil {
		return "", err
	}
	return name, nil
}

// SetDefaultChecker persists name.
func (p *Preferences) SetDefaultChecker(ctx context.Context, name string) error {
	return p.store.Put(DefaultCheckerKey, name)
}
