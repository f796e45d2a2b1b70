package tracker

import (
	"sort"
	"sync"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

// State is the in-memory record collection, kept sorted by id. Local
// mutations and merged change events both go through Upsert and Remove.
type State struct {
	mu      sync.RWMutex
	records []model.Install
}

// NewState returns an empty State.
func NewState() *State {
	return &State{}
}

// Replace swaps the whole collection.
func (s *State) Replace(records []model.Install) {
	out := make([]model.Install, 0, len(records))
	for _, r := range records {
		out = append(out, r.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	s.mu.Lock()
	s.records = out
	s.mu.Unlock()
}

// Snapshot returns deep copies of every record in id order.
func (s *State) Snapshot() []model.Install {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Install, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Len returns the number of records.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Get returns a copy of the record with id.
func (s *State) Get(id int) (model.Install, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.records[i].Clone(), true
	}
	return model.Install{}, false
}

// Upsert replaces the record with rec.ID or inserts it in id order.
func (s *State) Upsert(rec model.Install) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.index(rec.ID); i >= 0 {
		s.records[i] = rec.Clone()
		return
	}
	at := sort.Search(len(s.records), func(i int) bool { return s.records[i].ID > rec.ID })
	s.records = append(s.records, model.Install{})
	copy(s.records[at+1:], s.records[at:])
	s.records[at] = rec.Clone()
}

// Remove deletes the record with id and returns it.
func (s *State) Remove(id int) (model.Install, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return model.Install{}, false
	}
	removed := s.records[i]
	s.records = append(s.records[:i], s.records[i+1:]...)
	return removed, true
}

// Modify builds a patch from the current record and applies it, all under
// the write lock. It returns the record before and after the change.
func (s *State) Modify(id int, build func(cur model.Install) (model.Patch, error)) (before, after model.Install, patch model.Patch, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return before, after, patch, ErrNotFound
	}
	before = s.records[i].Clone()
	patch, err = build(before)
	if err != nil {
		return before, after, patch, err
	}
	patch.Apply(&s.records[i])
	return before, s.records[i].Clone(), patch, nil
}

// Apply writes patch onto the record with id if it is still present.
func (s *State) Apply(id int, patch model.Patch) (model.Install, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return model.Install{}, false
	}
	patch.Apply(&s.records[i])
	return s.records[i].Clone(), true
}

// FileOwner returns the id of the record linked to the named document.
func (s *State) FileOwner(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.File != nil && r.File.Name == name {
			return r.ID, true
		}
	}
	return 0, false
}

func (s *State) index(id int) int {
	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].ID >= id })
	if i < len(s.records) && s.records[i].ID == id {
		return i
	}
	return -1
}
