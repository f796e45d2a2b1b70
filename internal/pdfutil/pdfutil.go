// Package pdfutil turns uploaded PDF guides into the plain-text documents
// the tracker stores.
package pdfutil

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

// ErrNoText is returned for PDFs without an extractable text layer, such as
// scanned guides.
var ErrNoText = errors.New("pdf has no extractable text")

// IsPDF reports whether name carries a .pdf extension.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// TextName swaps the extension of name for .txt.
func TextName(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + ".txt"
}

// Convert returns the stored name and content for an upload. PDFs become
// their extracted text under a .txt name; anything else passes through.
func Convert(name string, content []byte) (string, []byte, error) {
	if !IsPDF(name) {
		return name, content, nil
	}
	pages, err := pageTexts(content)
	if err != nil {
		return "", nil, fmt.Errorf("extract %s: %w", name, err)
	}
	text := joinPages(pages)
	if text == "" {
		return "", nil, fmt.Errorf("extract %s: %w", name, ErrNoText)
	}
	return TextName(name), []byte(text), nil
}

// pageTexts returns the plain text of every page, in order. Pages without
// a content dictionary yield "".
func pageTexts(data []byte) ([]string, error) {
	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pages := make([]string, doc.NumPage())
	for i := range pages {
		p := doc.Page(i + 1)
		if p.V.IsNull() {
			continue
		}
		if pages[i], err = p.GetPlainText(nil); err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return pages, nil
}

// joinPages trims each page, drops blank ones and separates the rest with an
// empty line. The result ends in a newline unless it is empty.
func joinPages(pages []string) string {
	var kept []string
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, "\n\n") + "\n"
}
