package tracker

import (
	"sort"
	"strings"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

// Tab selects one side of the critical partition.
type Tab string

const (
	TabCritical  Tab = "critical"
	TabSecondary Tab = "secondary"
)

// Filter narrows the record list. Zero fields match everything.
type Filter struct {
	Status   model.Status
	Version  model.Version
	Category string
	// Search is a case-insensitive substring of the name.
	Search string
}

// Match reports whether rec passes every set criterion.
func (f Filter) Match(rec model.Install) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Version != "" && rec.Version != f.Version {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	return strings.Contains(strings.ToLower(rec.Name), strings.ToLower(f.Search))
}

// Apply returns the matching records in their original order.
func (f Filter) Apply(records []model.Install) []model.Install {
	out := make([]model.Install, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// Partition splits records by the critical flag, preserving order.
func Partition(records []model.Install) (critical, secondary []model.Install) {
	critical = make([]model.Install, 0, len(records))
	secondary = make([]model.Install, 0, len(records))
	for _, r := range records {
		if r.Critical {
			critical = append(critical, r)
		} else {
			secondary = append(secondary, r)
		}
	}
	return critical, secondary
}

// Select returns the records on tab.
func (t Tab) Select(records []model.Install) []model.Install {
	critical, secondary := Partition(records)
	if t == TabCritical {
		return critical
	}
	return secondary
}

// Stats are aggregate counts over the unfiltered collection.
type Stats struct {
	Total         int `json:"total"`
	Good          int `json:"good"`
	Bad           int `json:"bad"`
	Unchecked     int `json:"unchecked"`
	Critical      int `json:"critical"`
	FilesUploaded int `json:"filesUploaded"`
}

// ComputeStats counts records by status, criticality and file presence.
func ComputeStats(records []model.Install) Stats {
	s := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case model.StatusGood:
			s.Good++
		case model.StatusBad:
			s.Bad++
		default:
			s.Unchecked++
		}
		if r.Critical {
			s.Critical++
		}
		if r.File != nil {
			s.FilesUploaded++
		}
	}
	return s
}

// Categories returns the distinct categories in sorted order.
func Categories(records []model.Install) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range records {
		if !seen[r.Category] {
			seen[r.Category] = true
			out = append(out, r.Category)
		}
	}
	sort.Strings(out)
	return out
}

// CategoryOptions is Categories plus the catch-all option for new records.
func CategoryOptions(records []model.Install) []string {
	out := Categories(records)
	for _, c := range out {
		if c == model.CatchAllCategory {
			return out
		}
	}
	return append(out, model.CatchAllCategory)
}
