package kvstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestPutGetSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Put("numbers", []int{1, 2, 3}); err != nil {
		t.Fatalf("put: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var got []int
	ok, err := reopened.Get("numbers", &got)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected value %v", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var v string
	ok, err := s.Get("nope", &v)
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
}

func TestUpdateAbortsOnCallbackError(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Put("count", 1); err != nil {
		t.Fatalf("put: %v", err)
	}
	boom := errors.New("boom")
	err = Update(s, "count", func(n *int) error {
		*n = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	var n int
	if _, err := s.Get("count", &n); err != nil {
		t.Fatalf("get: %v", err)
	}
	if n != 1 {
		t.Fatalf("value changed despite error: %d", n)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestPreferencesIndependentOfOtherKeys(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	prefs := NewPreferences(s)
	ctx := context.Background()
	if name, err := prefs.DefaultChecker(ctx); err != nil || name != "" {
		t.Fatalf("expected empty default, got %q err=%v", name, err)
	}
	if err := prefs.SetDefaultChecker(ctx, "Sam"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Put("hyros-installs", []int{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	name, err := prefs.DefaultChecker(ctx)
	if err != nil || name != "Sam" {
		t.Fatalf("expected Sam, got %q err=%v", name, err)
	}
}

func TestHandlesOnSamePathSeeEachOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	server, err := Open(path)
	if err != nil {
		t.Fatalf("open server handle: %v", err)
	}
	worker, err := Open(path)
	if err != nil {
		t.Fatalf("open worker handle: %v", err)
	}

	if err := Update(server, "ids", func(ids *[]int) error {
		*ids = append(*ids, 1)
		return nil
	}); err != nil {
		t.Fatalf("server update: %v", err)
	}
	var seen []int
	if ok, err := worker.Get("ids", &seen); err != nil || !ok || len(seen) != 1 {
		t.Fatalf("worker handle missed server write: ok=%v err=%v ids=%v", ok, err, seen)
	}

	if err := Update(worker, "ids", func(ids *[]int) error {
		*ids = append(*ids, 2)
		return nil
	}); err != nil {
		t.Fatalf("worker update: %v", err)
	}
	if err := server.Put("hyros-default-checker", "Sam"); err != nil {
		t.Fatalf("server put: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var ids []int
	if _, err := reopened.Get("ids", &ids); err != nil || len(ids) != 2 {
		t.Fatalf("expected both writes on disk, got %v err=%v", ids, err)
	}
	var name string
	if _, err := reopened.Get("hyros-default-checker", &name); err != nil || name != "Sam" {
		t.Fatalf("expected preference kept, got %q err=%v", name, err)
	}
}

func TestConcurrentHandlesDoNotLoseUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if err := Update(s, "count", func(n *int) error {
					*n++
					return nil
				}); err != nil {
					t.Errorf("update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	var n int
	if _, err := s.Get("count", &n); err != nil || n != writers*perWriter {
		t.Fatalf("expected %d, got %d err=%v", writers*perWriter, n, err)
	}
}
