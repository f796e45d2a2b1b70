package reconcile

import (
	"regexp"
	"strings"

	"github.com/dharsanguruparan/InstallTracker/internal/model"
)

var (
	separators  = regexp.MustCompile(`[-_]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	genericWord = regexp.MustCompile(`(?i)\binstall\b`)
)

// Normalize lowercases s, drops a trailing .txt, turns hyphen and underscore
// runs into spaces and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, model.DocExtension)
	s = separators.ReplaceAllString(s, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// StripGeneric removes the standalone word "install" from an already
// normalized string.
func StripGeneric(s string) string {
	s = genericWord.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

var separatorReplacer = strings.NewReplacer("-", " ", "_", " ")

// DisplayName derives a human-readable name from a file name for files no
// record claims: the extension is dropped and every separator becomes a space.
func DisplayName(file string) string {
	return separatorReplacer.Replace(strings.TrimSuffix(file, model.DocExtension))
}

// Matches reports whether an orphan file plausibly belongs to a record name.
// Empty forms never match by containment, otherwise a file named
// "install.txt" would claim the first unlinked record.
func Matches(file, recordName string) bool {
	norm := Normalize(file)
	stripped := StripGeneric(norm)
	name := Normalize(recordName)
	if name == "" {
		return false
	}
	if name == norm || name == stripped {
		return true
	}
	// Deliberately stricter than plain substring matching, where "" is
	// contained in every name and would link the file to the first record.
	if stripped == "" {
		return false
	}
	return strings.Contains(stripped, name) || strings.Contains(name, stripped)
}
