// Package manifest renders index.txt, the plain-text list of every
// documentation file in the blob store, and uploads it.
package manifest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
	"github.com/dharsanguruparan/InstallTracker/internal/reconcile"
)

// DateLayout renders "Last Updated" as M/D/YYYY.
const DateLayout = "1/2/2006"

const (
	unknownCategory = "Unknown"
	unknownVersion  = model.VersionV1
)

var regenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tracker_manifest_regenerations_total",
	Help: "Manifest regenerations, by result.",
}, []string{"result"})

// RecordSource provides the catalog snapshot used for file metadata.
type RecordSource interface {
	ListAll(ctx context.Context) ([]model.Install, error)
}

// Build renders the manifest for files, in the given order. Files are
// expected to be pre-filtered to documentation names. Metadata comes from
// the record whose file name equals the listed name.
func Build(files []string, records []model.Install, now time.Time, baseURL string) string {
	byFile := make(map[string]model.Install, len(records))
	for _, r := range records {
		if r.File != nil {
			if _, dup := byFile[r.File.Name]; !dup {
				byFile[r.File.Name] = r
			}
		}
	}

	entries := make([]string, 0, len(files))
	for _, f := range files {
		if r, ok := byFile[f]; ok {
			entries = append(entries, fmt.Sprintf("%s | %s | %s | %s", r.Name, f, r.Category, r.Version))
			continue
		}
		entries = append(entries, fmt.Sprintf("%s | %s | %s | %s", reconcile.DisplayName(f), f, unknownCategory, unknownVersion))
	}

	var b strings.Builder
	b.WriteString("HYROS Installation Documentation Index\n")
	b.WriteString("=======================================\n")
	fmt.Fprintf(&b, "Last Updated: %s\n", now.Format(DateLayout))
	fmt.Fprintf(&b, "Total Files: %d\n", len(files))
	b.WriteString("\n")
	b.WriteString("Instructions for Claude:\n")
	b.WriteString("- Find the platform the user needs from the list below\n")
	b.WriteString("- Fetch the file at the URL shown\n")
	b.WriteString("- Use the documentation to guide the installation\n")
	fmt.Fprintf(&b, "- Base URL: %s\n", baseURL)
	b.WriteString("\n")
	b.WriteString("Available Documentation:\n")
	b.WriteString("------------------------\n")
	b.WriteString(strings.Join(entries, "\n"))
	b.WriteString("\n")
	return b.String()
}

// Generator rebuilds index.txt from the blob listing and the catalog.
type Generator struct {
	blobs   blobstore.Store
	records RecordSource
	now     func() time.Time
	logger  *slog.Logger
}

// New constructs a Generator.
func New(blobs blobstore.Store, records RecordSource, logger *slog.Logger) *Generator {
	return &Generator{
		blobs:   blobs,
		records: records,
		now:     time.Now,
		logger:  logger.With("component", "manifest"),
	}
}

// Regenerate lists the blob store, renders the manifest and uploads it over
// the previous one. It returns the number of documents indexed. Failures
// are logged and returned; nothing is retried.
func (g *Generator) Regenerate(ctx context.Context) (int, error) {
	n, err := g.regenerate(ctx)
	if err != nil {
		regenerationsTotal.WithLabelValues("error").Inc()
		g.logger.Error("manifest regeneration failed", "error", err)
		return 0, err
	}
	regenerationsTotal.WithLabelValues("ok").Inc()
	return n, nil
}

func (g *Generator) regenerate(ctx context.Context) (int, error) {
	objects, err := g.blobs.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list documents: %w", err)
	}
	var files []string
	for _, o := range objects {
		if model.IsDocumentName(o.Name) {
			files = append(files, o.Name)
		}
	}
	records, err := g.records.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load installs: %w", err)
	}

	content := Build(files, records, g.now(), g.blobs.BaseURL())
	if err := g.blobs.Upload(ctx, model.ManifestName, []byte(content), true); err != nil {
		return 0, fmt.Errorf("upload %s: %w", model.ManifestName, err)
	}
	g.logger.Info("manifest updated", "files", len(files))
	return len(files), nil
}
