// Package blobstore holds the documentation files. Two implementations share
// the Store interface: an S3-compatible bucket and a local directory. Both
// hand out the same public URL layout so links survive a mode switch.
package blobstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
)

// MaxList bounds how many entries List returns.
const MaxList = 1000

var (
	// ErrNotFound indicates the named blob does not exist.
	ErrNotFound = errors.New("blobstore: object not found")
	// ErrExists is returned by Upload without overwrite when the name is taken.
	ErrExists = errors.New("blobstore: object already exists")
	// ErrInvalidName rejects empty names and anything containing a path.
	ErrInvalidName = errors.New("blobstore: invalid object name")
)

// Object describes one listed blob.
type Object struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is the capability set of a document store.
type Store interface {
	// List returns at most MaxList entries in name order.
	List(ctx context.Context) ([]Object, error)
	Upload(ctx context.Context, name string, content []byte, overwrite bool) error
	// Remove deletes every name; missing names are ignored.
	Remove(ctx context.Context, names []string) error
	Download(ctx context.Context, name string) ([]byte, error)
	// PublicURL is a pure function of name.
	PublicURL(name string) string
	// BaseURL is the prefix every PublicURL starts with, ending in a slash.
	BaseURL() string
}

// PublicPrefix is the path under which documents are publicly served.
const PublicPrefix = "/storage/v1/object/public/"

// BaseURL builds "<base>/storage/v1/object/public/<bucket>/".
func BaseURL(base, bucket string) string {
	return strings.TrimRight(base, "/") + PublicPrefix + bucket + "/"
}

// PublicURL joins a base URL from BaseURL with an escaped object name.
func PublicURL(base, name string) string {
	return base + url.PathEscape(name)
}

// ValidName reports whether name is a flat object key.
func ValidName(name string) bool {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
