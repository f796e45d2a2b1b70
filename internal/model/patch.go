package model

import (
	"errors"
	"strings"
)

// Patch is a partial update of an Install. Nil pointers leave a field
// untouched; the Clear flags null out optional fields.
type Patch struct {
	Name             *string  `json:"name,omitempty"`
	Version          *Version `json:"version,omitempty"`
	Category         *string  `json:"category,omitempty"`
	Status           *Status  `json:"status,omitempty"`
	CheckedBy        *string  `json:"checkedBy,omitempty"`
	Critical         *bool    `json:"critical,omitempty"`
	LastChecked      *Date    `json:"lastChecked,omitempty"`
	ClearLastChecked bool     `json:"clearLastChecked,omitempty"`
	// File associations are managed by the document operations only.
	File      *Document `json:"-"`
	ClearFile bool      `json:"-"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Version == nil && p.Category == nil && p.Status == nil &&
		p.CheckedBy == nil && p.Critical == nil && p.LastChecked == nil && !p.ClearLastChecked &&
		p.File == nil && !p.ClearFile
}

// Validate rejects values that would break record invariants.
func (p Patch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return errors.New("name must not be empty")
	}
	if p.Version != nil && !p.Version.Valid() {
		return errors.New("version must be v1 or v2")
	}
	if p.Status != nil && !p.Status.Valid() {
		return errors.New("status must be unchecked, good or bad")
	}
	if p.LastChecked != nil && p.ClearLastChecked {
		return errors.New("lastChecked cannot be set and cleared at once")
	}
	if p.File != nil && p.ClearFile {
		return errors.New("file cannot be set and cleared at once")
	}
	return nil
}

// Apply writes the patch onto in.
func (p Patch) Apply(in *Install) {
	if p.Name != nil {
		in.Name = strings.TrimSpace(*p.Name)
	}
	if p.Version != nil {
		in.Version = *p.Version
	}
	if p.Category != nil {
		in.Category = *p.Category
	}
	if p.Status != nil {
		in.Status = *p.Status
	}
	if p.CheckedBy != nil {
		in.CheckedBy = *p.CheckedBy
	}
	if p.Critical != nil {
		in.Critical = *p.Critical
	}
	if p.LastChecked != nil {
		d := *p.LastChecked
		in.LastChecked = &d
	}
	if p.ClearLastChecked {
		in.LastChecked = nil
	}
	if p.File != nil {
		f := *p.File
		in.File = &f
	}
	if p.ClearFile {
		in.File = nil
	}
}

// Inverse returns the patch that restores every field p touches to its
// value in before.
func (p Patch) Inverse(before Install) Patch {
	var inv Patch
	if p.Name != nil {
		inv.Name = ptr(before.Name)
	}
	if p.Version != nil {
		inv.Version = ptr(before.Version)
	}
	if p.Category != nil {
		inv.Category = ptr(before.Category)
	}
	if p.Status != nil {
		inv.Status = ptr(before.Status)
	}
	if p.CheckedBy != nil {
		inv.CheckedBy = ptr(before.CheckedBy)
	}
	if p.Critical != nil {
		inv.Critical = ptr(before.Critical)
	}
	if p.LastChecked != nil || p.ClearLastChecked {
		if before.LastChecked != nil {
			inv.LastChecked = ptr(*before.LastChecked)
		} else {
			inv.ClearLastChecked = true
		}
	}
	if p.File != nil || p.ClearFile {
		if before.File != nil {
			inv.File = ptr(*before.File)
		} else {
			inv.ClearFile = true
		}
	}
	return inv
}

func ptr[T any](v T) *T {
	return &v
}
