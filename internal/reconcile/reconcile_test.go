package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/logging"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

type failingList struct {
	blobstore.Store
}

func (failingList) List(context.Context) ([]blobstore.Object, error) {
	return nil, errors.New("bucket unavailable")
}

// recordingLinker applies links to a record slice the way a catalog would.
type recordingLinker struct {
	records []model.Install
	fail    map[int]bool
	calls   int
}

func (l *recordingLinker) Link(_ context.Context, id int, doc model.Document) error {
	l.calls++
	if l.fail[id] {
		return errors.New("store unavailable")
	}
	for i := range l.records {
		if l.records[i].ID == id {
			d := doc
			l.records[i].File = &d
			return nil
		}
	}
	return errors.New("unknown id")
}

func newBlobs(t *testing.T, names ...string) *blobstore.Filesystem {
	t.Helper()
	store, err := blobstore.NewFilesystem(t.TempDir(), "http://localhost:8080", "hyros-docs", logging.Discard())
	if err != nil {
		t.Fatalf("new filesystem: %v", err)
	}
	for _, n := range names {
		if err := store.Upload(context.Background(), n, []byte(n), false); err != nil {
			t.Fatalf("upload %s: %v", n, err)
		}
	}
	return store
}

func TestNormalizeAndStrip(t *testing.T) {
	norm := Normalize("API-Install__Guide.txt")
	if norm != "api install guide" {
		t.Fatalf("unexpected normalized form %q", norm)
	}
	if got := StripGeneric(norm); got != "api guide" {
		t.Fatalf("unexpected stripped form %q", got)
	}
	if got := StripGeneric("reinstall steps"); got != "reinstall steps" {
		t.Fatalf("partial word must survive, got %q", got)
	}
	if got := DisplayName("go_high-level.txt"); got != "go high level" {
		t.Fatalf("unexpected display name %q", got)
	}
}

func TestMatches(t *testing.T) {
	cases := []struct {
		file, name string
		want       bool
	}{
		{"api-install-guide.txt", "API", true},
		{"stripe.txt", "Stripe", true},
		{"facebook_ads_install.txt", "Facebook Ads", true},
		{"shopify.txt", "Shopify Plus", true},
		{"hubspot.txt", "Salesforce", false},
		{"install.txt", "Stripe", false},
	}
	for _, c := range cases {
		if got := Matches(c.file, c.name); got != c.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", c.file, c.name, got, c.want)
		}
	}
}

func TestRunLinksOrphanBySubstring(t *testing.T) {
	blobs := newBlobs(t, "api-install-guide.txt")
	linker := &recordingLinker{records: []model.Install{{ID: 4, Name: "API"}}}
	res := New(blobs, logging.Discard()).Run(context.Background(), linker.records, linker)

	if !res.Changed() || len(res.Linked) != 1 {
		t.Fatalf("expected one link, got %+v", res)
	}
	got := linker.records[0].File
	if got == nil || got.Name != "api-install-guide.txt" {
		t.Fatalf("record 4 not linked: %+v", got)
	}
	if got.URL != "http://localhost:8080/storage/v1/object/public/hyros-docs/api-install-guide.txt" {
		t.Fatalf("unexpected url %s", got.URL)
	}
}

func TestRunNeverDoubleLinks(t *testing.T) {
	blobs := newBlobs(t, "stripe-install.txt", "stripe.txt")
	records := []model.Install{{ID: 7, Name: "Stripe"}}
	linker := &recordingLinker{records: records}
	res := New(blobs, logging.Discard()).Run(context.Background(), records, linker)

	if len(res.Linked) != 1 || res.Linked[0].File != "stripe-install.txt" {
		t.Fatalf("expected first listed orphan linked, got %+v", res.Linked)
	}
	if len(res.Unmatched) != 1 || res.Unmatched[0] != "stripe.txt" {
		t.Fatalf("expected second orphan unmatched, got %+v", res.Unmatched)
	}
	if linker.calls != 1 {
		t.Fatalf("expected a single persist call, got %d", linker.calls)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	blobs := newBlobs(t, "stripe.txt", "paypal.txt")
	linker := &recordingLinker{records: []model.Install{{ID: 1, Name: "Stripe"}, {ID: 2, Name: "PayPal"}}}
	engine := New(blobs, logging.Discard())

	first := engine.Run(context.Background(), linker.records, linker)
	if len(first.Linked) != 2 {
		t.Fatalf("expected two links on first pass, got %+v", first)
	}
	second := engine.Run(context.Background(), linker.records, linker)
	if second.Changed() || second.Orphans != 0 {
		t.Fatalf("expected no-op second pass, got %+v", second)
	}
}

func TestRunIgnoresManifestAndNonText(t *testing.T) {
	blobs := newBlobs(t, "index.txt", "stripe.pdf", "notes.md")
	linker := &recordingLinker{records: []model.Install{{ID: 1, Name: "Index"}, {ID: 2, Name: "Stripe"}, {ID: 3, Name: "Notes"}}}
	res := New(blobs, logging.Discard()).Run(context.Background(), linker.records, linker)
	if res.Orphans != 0 || linker.calls != 0 {
		t.Fatalf("expected no candidates, got %+v calls=%d", res, linker.calls)
	}
}

func TestRunSkipsAlreadyLinkedRecords(t *testing.T) {
	blobs := newBlobs(t, "stripe.txt", "stripe-v2.txt")
	linker := &recordingLinker{records: []model.Install{
		{ID: 1, Name: "Stripe", File: &model.Document{Name: "stripe.txt"}},
	}}
	res := New(blobs, logging.Discard()).Run(context.Background(), linker.records, linker)
	if res.Changed() {
		t.Fatalf("linked record must not receive another file: %+v", res)
	}
	if linker.records[0].File.Name != "stripe.txt" {
		t.Fatalf("existing link overwritten: %+v", linker.records[0].File)
	}
}

func TestRunContinuesAfterPersistFailure(t *testing.T) {
	blobs := newBlobs(t, "paypal.txt", "stripe.txt")
	linker := &recordingLinker{
		records: []model.Install{{ID: 1, Name: "PayPal"}, {ID: 2, Name: "Stripe"}},
		fail:    map[int]bool{1: true},
	}
	res := New(blobs, logging.Discard()).Run(context.Background(), linker.records, linker)
	if len(res.Failed) != 1 || res.Failed[0] != "paypal.txt" {
		t.Fatalf("expected paypal failure recorded, got %+v", res)
	}
	if len(res.Linked) != 1 || res.Linked[0].ID != 2 {
		t.Fatalf("expected stripe linked after failure, got %+v", res.Linked)
	}
}

func TestRunListFailureMeansNoChanges(t *testing.T) {
	linker := &recordingLinker{records: []model.Install{{ID: 1, Name: "Stripe"}}}
	res := New(failingList{}, logging.Discard()).Run(context.Background(), linker.records, linker)
	if res.Changed() || linker.calls != 0 {
		t.Fatalf("expected no changes, got %+v", res)
	}
}
