package tracker

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/model"
	"github.com/dharsanguruparan/InstallTracker/internal/pdfutil"
)

// UploadDocument stores a file and links it to the install. A PDF is stored
// as its extracted text under a .txt name.
func (t *Tracker) UploadDocument(ctx context.Context, id int, filename string, content []byte) (model.Install, error) {
	return t.attach(ctx, id, filename, content, false)
}

// ReplaceDocument swaps the document of an install that already has one.
// The previous blob is removed when the new name differs.
func (t *Tracker) ReplaceDocument(ctx context.Context, id int, filename string, content []byte) (model.Install, error) {
	return t.attach(ctx, id, filename, content, true)
}

func (t *Tracker) attach(ctx context.Context, id int, filename string, content []byte, replace bool) (model.Install, error) {
	name, content, err := pdfutil.Convert(filepath.Base(filename), content)
	if err != nil {
		return model.Install{}, err
	}
	if name == model.ManifestName {
		return model.Install{}, ErrReservedName
	}
	if !blobstore.ValidName(name) {
		return model.Install{}, blobstore.ErrInvalidName
	}
	cur, ok := t.state.Get(id)
	if !ok {
		return model.Install{}, fmt.Errorf("upload document for %d: %w", id, ErrNotFound)
	}
	if replace && cur.File == nil {
		return model.Install{}, fmt.Errorf("replace document for %d: %w", id, ErrNoDocument)
	}
	if owner, ok := t.state.FileOwner(name); ok && owner != id {
		return model.Install{}, fmt.Errorf("upload %s: %w (install %d)", name, ErrDocumentInUse, owner)
	}

	if err := t.blobs.Upload(ctx, name, content, true); err != nil {
		return model.Install{}, fmt.Errorf("upload %s: %w", name, err)
	}
	doc := model.Document{Name: name, URL: t.blobs.PublicURL(name), UploadDate: model.NewDate(t.now())}
	before, after, err := t.mutate(ctx, id, "attach document", func(model.Install) (model.Patch, error) {
		return model.Patch{File: &doc}, nil
	})
	if err != nil {
		return model.Install{}, err
	}
	t.logger.Info("document attached", "id", id, "file", name)

	if before.File != nil && before.File.Name != name {
		if err := t.blobs.Remove(ctx, []string{before.File.Name}); err != nil {
			t.logger.Warn("remove replaced document failed", "file", before.File.Name, "error", err)
		}
	}
	t.regenerate(ctx)
	return after, nil
}

// DeleteDocument removes the blob and then clears the link.
func (t *Tracker) DeleteDocument(ctx context.Context, id int) (model.Install, error) {
	cur, ok := t.state.Get(id)
	if !ok {
		return model.Install{}, fmt.Errorf("delete document for %d: %w", id, ErrNotFound)
	}
	if cur.File == nil {
		return model.Install{}, fmt.Errorf("delete document for %d: %w", id, ErrNoDocument)
	}
	if err := t.blobs.Remove(ctx, []string{cur.File.Name}); err != nil {
		return model.Install{}, fmt.Errorf("delete document %s: %w", cur.File.Name, err)
	}
	_, after, err := t.mutate(ctx, id, "clear document", func(model.Install) (model.Patch, error) {
		return model.Patch{ClearFile: true}, nil
	})
	if err != nil {
		return model.Install{}, err
	}
	t.logger.Info("document deleted", "id", id, "file", cur.File.Name)
	t.regenerate(ctx)
	return after, nil
}

// DownloadAll fetches every linked document concurrently and, only once all
// of them arrived, writes a zip archive to w. Any fetch failure aborts
// before a byte is written. It returns the number of archived files.
func (t *Tracker) DownloadAll(ctx context.Context, w io.Writer) (int, error) {
	var linked []model.Install
	for _, r := range t.state.Snapshot() {
		if r.File != nil {
			linked = append(linked, r)
		}
	}
	if len(linked) == 0 {
		return 0, ErrNoDocuments
	}

	contents := make([][]byte, len(linked))
	g, gctx := errgroup.WithContext(ctx)
	for i, rec := range linked {
		i, rec := i, rec
		g.Go(func() error {
			data, err := t.blobs.Download(gctx, rec.File.Name)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", rec.File.Name, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("download all: %w", err)
	}

	zw := zip.NewWriter(w)
	for i, rec := range linked {
		f, err := zw.Create(rec.File.Name)
		if err != nil {
			return 0, fmt.Errorf("add %s to archive: %w", rec.File.Name, err)
		}
		if _, err := f.Write(contents[i]); err != nil {
			return 0, fmt.Errorf("write %s to archive: %w", rec.File.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("finish archive: %w", err)
	}
	return len(linked), nil
}
