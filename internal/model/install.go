// Package model contains the struct definitions shared across packages: the
// integration record tracked by the dashboard and the document linked to it.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the tri-state verification result of an integration. A named
// string type keeps invalid states out of function signatures.
type Status string

const (
	StatusUnchecked Status = "unchecked"
	StatusGood      Status = "good"
	StatusBad       Status = "bad"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusUnchecked, StatusGood, StatusBad:
		return true
	}
	return false
}

// Next returns the state that follows s in the toggle cycle
// unchecked -> good -> bad -> unchecked.
func (s Status) Next() Status {
	switch s {
	case StatusUnchecked:
		return StatusGood
	case StatusGood:
		return StatusBad
	default:
		return StatusUnchecked
	}
}

// Version tags which generation of an integration the record describes.
type Version string

const (
	VersionV1 Version = "v1"
	VersionV2 Version = "v2"
)

// Valid reports whether v is a known version tag.
func (v Version) Valid() bool {
	return v == VersionV1 || v == VersionV2
}

const (
	// DocExtension marks blob-store entries that count as documentation.
	DocExtension = ".txt"
	// ManifestName is reserved for the generated index and never treated as
	// a document.
	ManifestName = "index.txt"
	// ArchiveName is the filename used for the bulk download bundle.
	ArchiveName = "hyros-install-docs.zip"
	// DefaultCategory is offered to new records; CatchAllCategory is the
	// synthetic extra option listed after the known categories.
	DefaultCategory  = "Core"
	CatchAllCategory = "Other"
)

// IsDocumentName reports whether a blob name is a documentation candidate.
func IsDocumentName(name string) bool {
	return name != ManifestName && strings.HasSuffix(name, DocExtension)
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component. Embedding time.Time
// gives us comparison and formatting helpers for free.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's own location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts "YYYY-MM-DD".
func (d *Date) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDate(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Document is the documentation file linked to an install. URL is derived
// from Name by the blob store; UploadDate is when the link was made.
type Document struct {
	Name       string `json:"name"`
	URL        string `json:"url"`
	UploadDate Date   `json:"uploadDate"`
}

// Install is one integration in the catalog. Pointer fields are optional:
// a nil File means no documentation has been uploaded yet.
type Install struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Version     Version   `json:"version"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	LastChecked *Date     `json:"lastChecked"`
	CheckedBy   string    `json:"checkedBy"`
	Critical    bool      `json:"critical"`
	File        *Document `json:"file"`
	IsDefault   bool      `json:"isDefault"`
}

// HasFile reports whether a document is linked.
func (i Install) HasFile() bool {
	return i.File != nil
}

// Clone returns a deep copy so callers can mutate the result without
// touching shared state.
func (i Install) Clone() Install {
	out := i
	if i.LastChecked != nil {
		d := *i.LastChecked
		out.LastChecked = &d
	}
	if i.File != nil {
		f := *i.File
		out.File = &f
	}
	return out
}

// ChangeKind names the type of a catalog change notification.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is delivered by catalog subscriptions and fanned out to UI
// clients. For deletes only Install.ID is guaranteed to be populated.
type ChangeEvent struct {
	Kind    ChangeKind `json:"kind"`
	Install Install    `json:"install"`
}
