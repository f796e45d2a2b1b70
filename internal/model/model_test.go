package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusCycle(t *testing.T) {
	s := StatusUnchecked
	want := []Status{StatusGood, StatusBad, StatusUnchecked, StatusGood}
	for i, w := range want {
		s = s.Next()
		if s != w {
			t.Fatalf("step %d: expected %s, got %s", i, w, s)
		}
	}
}

func TestIsDocumentName(t *testing.T) {
	cases := map[string]bool{
		"stripe.txt":       true,
		"index.txt":        false,
		"notes.md":         false,
		"api-install.txt":  true,
		"stripe.txt.draft": false,
	}
	for name, want := range cases {
		if got := IsDocumentName(name); got != want {
			t.Errorf("IsDocumentName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	d := NewDate(time.Date(2024, 3, 9, 17, 45, 0, 0, time.UTC))
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-03-09"` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var back Date
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("expected %s, got %s", d, back)
	}
	if err := json.Unmarshal([]byte(`"03/09/2024"`), &back); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestPatchInverseRestoresTouchedFields(t *testing.T) {
	checked := NewDate(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	before := Install{
		ID:          3,
		Name:        "Stripe",
		Version:     VersionV1,
		Category:    "Payment",
		Status:      StatusGood,
		LastChecked: &checked,
		CheckedBy:   "dana",
		File:        &Document{Name: "stripe.txt", URL: "http://x/stripe.txt"},
	}
	bad := StatusBad
	patch := Patch{Status: &bad, ClearLastChecked: true, ClearFile: true}

	rec := before.Clone()
	patch.Apply(&rec)
	if rec.Status != StatusBad || rec.LastChecked != nil || rec.File != nil {
		t.Fatalf("patch not applied: %+v", rec)
	}
	if rec.CheckedBy != "dana" {
		t.Fatalf("untouched field changed: %q", rec.CheckedBy)
	}

	patch.Inverse(before).Apply(&rec)
	if rec.Status != StatusGood {
		t.Fatalf("status not restored: %s", rec.Status)
	}
	if rec.LastChecked == nil || !rec.LastChecked.Equal(checked.Time) {
		t.Fatalf("lastChecked not restored: %v", rec.LastChecked)
	}
	if rec.File == nil || rec.File.Name != "stripe.txt" {
		t.Fatalf("file not restored: %v", rec.File)
	}
}

func TestPatchInverseClearsFieldsThatWereAbsent(t *testing.T) {
	before := Install{ID: 1, Name: "API"}
	patch := Patch{File: &Document{Name: "api.txt"}}
	rec := before.Clone()
	patch.Apply(&rec)
	inv := patch.Inverse(before)
	if !inv.ClearFile {
		t.Fatalf("expected inverse to clear file")
	}
	inv.Apply(&rec)
	if rec.File != nil {
		t.Fatalf("expected file cleared, got %+v", rec.File)
	}
}

func TestPatchValidate(t *testing.T) {
	empty := "  "
	if err := (Patch{Name: &empty}).Validate(); err == nil {
		t.Fatalf("expected blank name to be rejected")
	}
	v3 := Version("v3")
	if err := (Patch{Version: &v3}).Validate(); err == nil {
		t.Fatalf("expected unknown version to be rejected")
	}
	ok := StatusGood
	if err := (Patch{Status: &ok}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := Install{File: &Document{Name: "a.txt"}}
	c := orig.Clone()
	c.File.Name = "b.txt"
	if orig.File.Name != "a.txt" {
		t.Fatalf("clone shares file pointer")
	}
}
