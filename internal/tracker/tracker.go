// Package tracker is the dashboard controller. It owns the in-memory record
// collection, applies every mutation optimistically with a compensating
// revert, and keeps the document index in step with file changes.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/catalog"
	"github.com/dharsanguruparan/InstallTracker/internal/manifest"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
	"github.com/dharsanguruparan/InstallTracker/internal/reconcile"
)

// Preferences stores the operator's default checker name.
type Preferences interface {
	DefaultChecker(ctx context.Context) (string, error)
	SetDefaultChecker(ctx context.Context, name string) error
}

// Notifier receives every change applied to the collection.
type Notifier interface {
	Publish(ev model.ChangeEvent)
}

// Deps are the collaborators a Tracker needs. Notifier may be nil.
type Deps struct {
	Store    catalog.Store
	Blobs    blobstore.Store
	Prefs    Preferences
	Notifier Notifier
	Logger   *slog.Logger
}

// Tracker coordinates the catalog, the blob store, reconciliation and the
// manifest.
type Tracker struct {
	store    catalog.Store
	blobs    blobstore.Store
	prefs    Preferences
	notifier Notifier
	engine   *reconcile.Engine
	manifest *manifest.Generator
	state    *State
	now      func() time.Time
	logger   *slog.Logger
}

// New wires a Tracker. Call Load before serving.
func New(d Deps) *Tracker {
	return &Tracker{
		store:    d.Store,
		blobs:    d.Blobs,
		prefs:    d.Prefs,
		notifier: d.Notifier,
		engine:   reconcile.New(d.Blobs, d.Logger),
		manifest: manifest.New(d.Blobs, d.Store, d.Logger),
		state:    NewState(),
		now:      time.Now,
		logger:   d.Logger.With("component", "tracker"),
	}
}

// Load reads the catalog, seeding it on first run, then runs one
// reconciliation pass. A store failure is returned as ErrStoreUnavailable.
func (t *Tracker) Load(ctx context.Context) (reconcile.Result, error) {
	records, err := t.store.ListAll(ctx)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if len(records) == 0 {
		seeded, err := catalog.SeedIfEmpty(ctx, t.store)
		if err != nil {
			return reconcile.Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		if seeded {
			t.logger.Info("seeded built-in catalog", "installs", len(catalog.Defaults()))
			if records, err = t.store.ListAll(ctx); err != nil {
				return reconcile.Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
			}
		}
	}
	t.state.Replace(records)
	t.logger.Info("catalog loaded", "installs", len(records))
	return t.Reconcile(ctx), nil
}

// Resync replaces the collection with a fresh read of the store.
func (t *Tracker) Resync(ctx context.Context) error {
	records, err := t.store.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("resync installs: %w", err)
	}
	t.state.Replace(records)
	return nil
}

// Reconcile links orphan documents, then refreshes from the store and
// regenerates the manifest when anything was linked.
func (t *Tracker) Reconcile(ctx context.Context) reconcile.Result {
	res := t.engine.Run(ctx, t.state.Snapshot(), reconcile.LinkerFunc(t.link))
	if res.Changed() {
		if err := t.Resync(ctx); err != nil {
			t.logger.Warn("refresh after reconciliation failed", "error", err)
		}
		t.regenerate(ctx)
	}
	return res
}

// Regenerate rebuilds the manifest and returns how many documents it lists.
func (t *Tracker) Regenerate(ctx context.Context) (int, error) {
	return t.manifest.Regenerate(ctx)
}

// regenerate is the best-effort trigger used after mutations. The generator
// logs its own failures.
func (t *Tracker) regenerate(ctx context.Context) {
	_, _ = t.manifest.Regenerate(ctx)
}

func (t *Tracker) link(ctx context.Context, id int, doc model.Document) error {
	_, _, err := t.mutate(ctx, id, "link document", func(cur model.Install) (model.Patch, error) {
		if cur.File != nil {
			return model.Patch{}, fmt.Errorf("install already linked to %s", cur.File.Name)
		}
		return model.Patch{File: &doc}, nil
	})
	return err
}

// mutate is the optimistic update helper: build and apply the patch
// locally, persist it, and apply the inverse patch if persisting fails.
func (t *Tracker) mutate(ctx context.Context, id int, op string, build func(cur model.Install) (model.Patch, error)) (before, after model.Install, err error) {
	before, after, patch, err := t.state.Modify(id, func(cur model.Install) (model.Patch, error) {
		p, err := build(cur)
		if err != nil {
			return p, err
		}
		if err := p.Validate(); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		return p, nil
	})
	if err != nil {
		return before, after, fmt.Errorf("%s %d: %w", op, id, err)
	}
	if patch.Empty() {
		return before, after, nil
	}
	if err := t.store.Update(ctx, id, patch); err != nil {
		t.state.Apply(id, patch.Inverse(before))
		t.logger.Error("persist failed, change reverted", "op", op, "id", id, "error", err)
		return before, before, fmt.Errorf("%s %d: %w", op, id, err)
	}
	t.publish(model.ChangeEvent{Kind: model.ChangeUpdate, Install: after})
	return before, after, nil
}

// NewRecord holds the operator-supplied fields of a new install.
type NewRecord struct {
	Name     string        `json:"name"`
	Version  model.Version `json:"version"`
	Category string        `json:"category"`
}

// CreateRecord inserts a non-default record with id max+1.
func (t *Tracker) CreateRecord(ctx context.Context, in NewRecord) (model.Install, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Install{}, ErrNameRequired
	}
	version := in.Version
	if version == "" {
		version = model.VersionV1
	}
	if !version.Valid() {
		return model.Install{}, ErrInvalidVersion
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = model.DefaultCategory
	}

	max, err := t.store.MaxID(ctx)
	if err != nil {
		return model.Install{}, fmt.Errorf("create install: %w", err)
	}
	rec := model.Install{
		ID:       max + 1,
		Name:     name,
		Version:  version,
		Category: category,
		Status:   model.StatusUnchecked,
	}
	created, err := t.store.Insert(ctx, rec)
	if err != nil {
		return model.Install{}, fmt.Errorf("create install: %w", err)
	}
	t.state.Upsert(created)
	t.publish(model.ChangeEvent{Kind: model.ChangeInsert, Install: created})
	t.logger.Info("install created", "id", created.ID, "name", created.Name)
	return created, nil
}

// Update applies an operator patch. File associations cannot be changed
// this way.
func (t *Tracker) Update(ctx context.Context, id int, patch model.Patch) (model.Install, error) {
	patch.File, patch.ClearFile = nil, false
	_, after, err := t.mutate(ctx, id, "update install", func(model.Install) (model.Patch, error) {
		return patch, nil
	})
	return after, err
}

// ToggleStatus advances unchecked -> good -> bad -> unchecked. Moving into
// good or bad fills checkedBy from the default checker when it is empty.
func (t *Tracker) ToggleStatus(ctx context.Context, id int) (model.Install, error) {
	checker, err := t.DefaultChecker(ctx)
	if err != nil {
		t.logger.Warn("default checker unavailable", "error", err)
	}
	_, after, err := t.mutate(ctx, id, "toggle status", func(cur model.Install) (model.Patch, error) {
		next := cur.Status.Next()
		by := cur.CheckedBy
		if next != model.StatusUnchecked && by == "" {
			by = checker
		}
		return model.Patch{Status: &next, CheckedBy: &by}, nil
	})
	return after, err
}

// ToggleCritical flips the critical flag.
func (t *Tracker) ToggleCritical(ctx context.Context, id int) (model.Install, error) {
	_, after, err := t.mutate(ctx, id, "toggle critical", func(cur model.Install) (model.Patch, error) {
		v := !cur.Critical
		return model.Patch{Critical: &v}, nil
	})
	return after, err
}

// MarkCheckedToday sets lastChecked to today unless a date is already set.
func (t *Tracker) MarkCheckedToday(ctx context.Context, id int) (model.Install, error) {
	today := model.NewDate(t.now())
	_, after, err := t.mutate(ctx, id, "mark checked", func(cur model.Install) (model.Patch, error) {
		if cur.LastChecked != nil {
			return model.Patch{}, nil
		}
		return model.Patch{LastChecked: &today}, nil
	})
	return after, err
}

// SetLastChecked sets lastChecked to d.
func (t *Tracker) SetLastChecked(ctx context.Context, id int, d model.Date) (model.Install, error) {
	return t.Update(ctx, id, model.Patch{LastChecked: &d})
}

// ClearLastChecked removes lastChecked.
func (t *Tracker) ClearLastChecked(ctx context.Context, id int) (model.Install, error) {
	return t.Update(ctx, id, model.Patch{ClearLastChecked: true})
}

// SetCheckedBy stores who checked the install.
func (t *Tracker) SetCheckedBy(ctx context.Context, id int, name string) (model.Install, error) {
	return t.Update(ctx, id, model.Patch{CheckedBy: &name})
}

// DeleteRecord removes an operator-added record. Default records are
// refused and the collection is left untouched. The linked blob is kept;
// the manifest is regenerated so its line falls back to Unknown.
func (t *Tracker) DeleteRecord(ctx context.Context, id int) error {
	rec, ok := t.state.Get(id)
	if !ok {
		return fmt.Errorf("delete install %d: %w", id, ErrNotFound)
	}
	if rec.IsDefault {
		return fmt.Errorf("delete install %d: %w", id, ErrDefaultRecord)
	}
	removed, ok := t.state.Remove(id)
	if !ok {
		return fmt.Errorf("delete install %d: %w", id, ErrNotFound)
	}
	if err := t.store.Delete(ctx, id); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		t.state.Upsert(removed)
		t.logger.Error("persist failed, delete reverted", "id", id, "error", err)
		return fmt.Errorf("delete install %d: %w", id, err)
	}
	t.publish(model.ChangeEvent{Kind: model.ChangeDelete, Install: removed})
	t.logger.Info("install deleted", "id", id, "name", removed.Name)
	if removed.File != nil {
		t.regenerate(ctx)
	}
	return nil
}

// ApplyEvent merges a change notification by id.
func (t *Tracker) ApplyEvent(ev model.ChangeEvent) {
	switch ev.Kind {
	case model.ChangeInsert, model.ChangeUpdate:
		t.state.Upsert(ev.Install)
	case model.ChangeDelete:
		t.state.Remove(ev.Install.ID)
	default:
		return
	}
	t.publish(ev)
}

// Watch merges catalog change events until ctx ends.
func (t *Tracker) Watch(ctx context.Context) error {
	sub, err := t.store.Subscribe(ctx, t.ApplyEvent)
	if err != nil {
		return fmt.Errorf("subscribe to catalog: %w", err)
	}
	<-ctx.Done()
	return sub.Close()
}

func (t *Tracker) publish(ev model.ChangeEvent) {
	if t.notifier != nil {
		t.notifier.Publish(ev)
	}
}

// DefaultChecker returns the saved default checker, or "".
func (t *Tracker) DefaultChecker(ctx context.Context) (string, error) {
	if t.prefs == nil {
		return "", nil
	}
	return t.prefs.DefaultChecker(ctx)
}

// SetDefaultChecker saves the default checker name.
func (t *Tracker) SetDefaultChecker(ctx context.Context, name string) error {
	if t.prefs == nil {
		return errors.New("preferences not configured")
	}
	return t.prefs.SetDefaultChecker(ctx, strings.TrimSpace(name))
}

// Get returns one record.
func (t *Tracker) Get(id int) (model.Install, error) {
	rec, ok := t.state.Get(id)
	if !ok {
		return model.Install{}, fmt.Errorf("install %d: %w", id, ErrNotFound)
	}
	return rec, nil
}

// Installs returns the filtered records in id order.
func (t *Tracker) Installs(f Filter) []model.Install {
	return f.Apply(t.state.Snapshot())
}

// Stats counts over the whole collection.
func (t *Tracker) Stats() Stats {
	return ComputeStats(t.state.Snapshot())
}

// Categories returns the distinct categories in use.
func (t *Tracker) Categories() []string {
	return Categories(t.state.Snapshot())
}

// CategoryOptions returns the categories offered for new records.
func (t *Tracker) CategoryOptions() []string {
	return CategoryOptions(t.state.Snapshot())
}
