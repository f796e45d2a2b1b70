package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLIReconcileAndExport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TRACKER_MODE", "local")
	t.Setenv("TRACKER_DATA_DIR", dir)
	t.Setenv("TRACKER_LOG_LEVEL", "error")

	// First run seeds the catalog.
	out, err := runCLI(t, "list", "--category", "Payment", "--tab", "critical")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Stripe") || strings.Contains(out, "Braintree") {
		t.Fatalf("unexpected list output:\n%s", out)
	}

	if err := os.WriteFile(filepath.Join(dir, "docs", "stripe-install.txt"), []byte("steps"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	// Load links the orphan, so the explicit pass has nothing left.
	out, err = runCLI(t, "reconcile")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !strings.Contains(out, "0 orphans") {
		t.Fatalf("unexpected reconcile output:\n%s", out)
	}

	// The index counts every document in storage, linked or not.
	if err := os.WriteFile(filepath.Join(dir, "docs", "zzz-notes.txt"), []byte("notes"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	out, err = runCLI(t, "reindex")
	if err != nil {
		t.Fatalf("reindex: %v", err)
	}
	if !strings.Contains(out, "(2 documents)") {
		t.Fatalf("unexpected reindex output:\n%s", out)
	}

	archive := filepath.Join(dir, "out.zip")
	out, err = runCLI(t, "export", "--out", archive)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "wrote 1 documents") {
		t.Fatalf("unexpected export output:\n%s", out)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Fatalf("archive missing: %v", err)
	}
}

func TestCLIRejectsBadArguments(t *testing.T) {
	t.Setenv("TRACKER_MODE", "local")
	t.Setenv("TRACKER_DATA_DIR", t.TempDir())
	if _, err := runCLI(t, "list", "--status", "done"); err == nil {
		t.Fatalf("expected invalid status error")
	}
	if _, err := runCLI(t, "enqueue", "purge"); err == nil {
		t.Fatalf("expected invalid task error")
	}
	if _, err := runCLI(t, "migrate"); err == nil {
		t.Fatalf("expected migrate to refuse local mode")
	}
}
