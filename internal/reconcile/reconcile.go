// Package reconcile links documentation files that no record references to
// records that have no file, by fuzzy name comparison.
package reconcile

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

var (
	runsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracker_reconcile_runs_total",
		Help: "Number of reconciliation passes.",
	})
	outcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracker_reconcile_orphans_total",
		Help: "Orphan files seen by reconciliation, by outcome.",
	}, []string{"outcome"})
	durationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracker_reconcile_duration_seconds",
		Help:    "Duration of reconciliation passes in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

// Linker persists a new file association for a record.
type Linker interface {
	Link(ctx context.Context, id int, doc model.Document) error
}

// LinkerFunc adapts a function to Linker.
type LinkerFunc func(ctx context.Context, id int, doc model.Document) error

func (f LinkerFunc) Link(ctx context.Context, id int, doc model.Document) error {
	return f(ctx, id, doc)
}

// Link is one association created during a pass.
type Link struct {
	File   string `json:"file"`
	ID     int    `json:"id"`
	Record string `json:"record"`
}

// Result summarizes a pass.
type Result struct {
	Orphans   int      `json:"orphans"`
	Linked    []Link   `json:"linked"`
	Unmatched []string `json:"unmatched"`
	Failed    []string `json:"failed"`
}

// Changed reports whether at least one link was created.
func (r Result) Changed() bool {
	return len(r.Linked) > 0
}

// Engine runs reconciliation passes against a blob store.
type Engine struct {
	blobs  blobstore.Store
	now    func() time.Time
	logger *slog.Logger

	// Passes never interleave.
	mu sync.Mutex
}

// New constructs an Engine.
func New(blobs blobstore.Store, logger *slog.Logger) *Engine {
	return &Engine{
		blobs:  blobs,
		now:    time.Now,
		logger: logger.With("component", "reconcile"),
	}
}

// Run lists the blob store, finds orphan documentation files and links each
// to the first unlinked record whose name matches. records is not modified.
// A listing failure is logged and reported as no changes. A failure
// persisting one link is logged and the pass moves on to the next orphan.
func (e *Engine) Run(ctx context.Context, records []model.Install, linker Linker) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	runsTotal.Inc()
	defer func() { durationSeconds.Observe(time.Since(start).Seconds()) }()

	objects, err := e.blobs.List(ctx)
	if err != nil {
		e.logger.Error("list documents failed, skipping reconciliation", "error", err)
		return Result{}
	}

	linkedNames := make(map[string]bool, len(records))
	for _, r := range records {
		if r.File != nil {
			linkedNames[r.File.Name] = true
		}
	}
	var orphans []string
	for _, o := range objects {
		if model.IsDocumentName(o.Name) && !linkedNames[o.Name] {
			orphans = append(orphans, o.Name)
		}
	}

	res := Result{Orphans: len(orphans)}
	if len(orphans) == 0 {
		e.logger.Debug("no orphaned documents")
		return res
	}
	e.logger.Info("found orphaned documents", "count", len(orphans), "files", orphans)

	// Working set of ids that have a file, local to this pass.
	hasFile := make(map[int]bool, len(records))
	for _, r := range records {
		if r.File != nil {
			hasFile[r.ID] = true
		}
	}

	for _, file := range orphans {
		idx := -1
		for i, r := range records {
			if hasFile[r.ID] {
				continue
			}
			if Matches(file, r.Name) {
				idx = i
				break
			}
		}
		if idx < 0 {
			e.logger.Info("no matching install for document", "file", file)
			outcomesTotal.WithLabelValues("unmatched").Inc()
			res.Unmatched = append(res.Unmatched, file)
			continue
		}

		rec := records[idx]
		doc := model.Document{
			Name:       file,
			URL:        e.blobs.PublicURL(file),
			UploadDate: model.NewDate(e.now()),
		}
		if err := linker.Link(ctx, rec.ID, doc); err != nil {
			e.logger.Error("link document failed", "file", file, "install", rec.Name, "id", rec.ID, "error", err)
			outcomesTotal.WithLabelValues("failed").Inc()
			res.Failed = append(res.Failed, file)
			continue
		}
		hasFile[rec.ID] = true
		outcomesTotal.WithLabelValues("linked").Inc()
		res.Linked = append(res.Linked, Link{File: file, ID: rec.ID, Record: rec.Name})
		e.logger.Info("linked document", "file", file, "install", rec.Name, "id", rec.ID)
	}

	if res.Changed() {
		e.logger.Info("reconciliation linked documents", "linked", len(res.Linked))
	}
	return res
}
