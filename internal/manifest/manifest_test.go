package manifest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

type staticRecords []model.Install

func (s staticRecords) ListAll(context.Context) ([]model.Install, error) {
	return s, nil
}

type failingUpload struct {
	blobstore.Store
}

func (failingUpload) Upload(context.Context, string, []byte, bool) error {
	return errors.New("bucket read-only")
}

const base = "http://localhost:8080/storage/v1/object/public/hyros-docs/"

func TestBuildExactFormat(t *testing.T) {
	records := []model.Install{
		{ID: 7, Name: "Stripe", Category: "Payment", Version: model.VersionV2, File: &model.Document{Name: "stripe.txt"}},
	}
	now := time.Date(2024, 3, 9, 15, 4, 5, 0, time.Local)
	got := Build([]string{"go_high-level.txt", "stripe.txt"}, records, now, base)

	want := `HYROS Installation Documentation Index
=======================================
Last Updated: 3/9/2024
Total Files: 2

Instructions for Claude:
- Find the platform the user needs from the list below
- Fetch the file at the URL shown
- Use the documentation to guide the installation
- Base URL: http://localhost:8080/storage/v1/object/public/hyros-docs/

Available Documentation:
------------------------
go high level | go_high-level.txt | Unknown | v1
Stripe | stripe.txt | Payment | v2
`
	if got != want {
		t.Fatalf("unexpected manifest:\n%s\nwant:\n%s", got, want)
	}
}

func TestBuildDeterministicExceptTimestamp(t *testing.T) {
	files := []string{"a.txt", "b.txt"}
	records := []model.Install{{ID: 1, Name: "A", Category: "Core", Version: model.VersionV1, File: &model.Document{Name: "a.txt"}}}
	first := Build(files, records, time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local), base)
	second := Build(files, records, time.Date(2025, 6, 30, 0, 0, 0, 0, time.Local), base)

	a, b := strings.Split(first, "\n"), strings.Split(second, "\n")
	if len(a) != len(b) {
		t.Fatalf("line counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] && !strings.HasPrefix(a[i], "Last Updated:") {
			t.Fatalf("line %d differs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestRegenerateUploadsIndex(t *testing.T) {
	blobs, err := blobstore.NewFilesystem(t.TempDir(), "http://localhost:8080", "hyros-docs", logging.Discard())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	ctx := context.Background()
	for _, n := range []string{"stripe.txt", "paypal.txt", "readme.md"} {
		if err := blobs.Upload(ctx, n, []byte("x"), false); err != nil {
			t.Fatalf("upload: %v", err)
		}
	}
	gen := New(blobs, staticRecords{{ID: 1, Name: "PayPal", Category: "Payment", Version: model.VersionV1, File: &model.Document{Name: "paypal.txt"}}}, logging.Discard())

	if _, err := gen.Regenerate(ctx); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	// The manifest itself is now listed but must not count.
	n, err := gen.Regenerate(ctx)
	if err != nil {
		t.Fatalf("regenerate again: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 indexed documents, got %d", n)
	}
	data, err := blobs.Download(ctx, model.ManifestName)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, "Total Files: 2\n") {
		t.Fatalf("expected two files counted:\n%s", content)
	}
	if !strings.Contains(content, "PayPal | paypal.txt | Payment | v1\n") {
		t.Fatalf("expected paypal metadata line:\n%s", content)
	}
	if !strings.Contains(content, "stripe | stripe.txt | Unknown | v1\n") {
		t.Fatalf("expected fallback line for stripe:\n%s", content)
	}
	if strings.Contains(content, "index.txt |") || strings.Contains(content, "readme.md") {
		t.Fatalf("manifest lists excluded files:\n%s", content)
	}
}

func TestRegenerateReportsUploadFailure(t *testing.T) {
	blobs, err := blobstore.NewFilesystem(t.TempDir(), "http://localhost:8080", "hyros-docs", logging.Discard())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	gen := New(failingUpload{blobs}, staticRecords{}, logging.Discard())
	if _, err := gen.Regenerate(context.Background()); err == nil {
		t.Fatalf("expected upload failure")
	}
}
