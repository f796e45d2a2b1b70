package tracker

import "errors"

var (
	ErrNotFound         = errors.New("install not found")
	ErrDefaultRecord    = errors.New("default installs cannot be deleted")
	ErrNameRequired     = errors.New("name is required")
	ErrInvalidVersion   = errors.New("version must be v1 or v2")
	ErrInvalidPatch     = errors.New("invalid update")
	ErrReservedName     = errors.New("index.txt is reserved for the generated manifest")
	ErrDocumentInUse    = errors.New("document name is linked to another install")
	ErrNoDocument       = errors.New("install has no document")
	ErrNoDocuments      = errors.New("no documents to download")
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)
