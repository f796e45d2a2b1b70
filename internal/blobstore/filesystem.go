package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const tmpSuffix = ".tmp"

// Filesystem stores blobs as files in a single directory. The api package
// serves the directory under the same public URL layout as S3.
type Filesystem struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewFilesystem resolves dir and creates it when missing.
func NewFilesystem(dir, publicBaseURL, bucket string, logger *slog.Logger) (*Filesystem, error) {
	if dir == "" {
		return nil, fmt.Errorf("documents directory required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve documents directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create documents directory: %w", err)
	}
	return &Filesystem{
		dir:     abs,
		baseURL: BaseURL(publicBaseURL, bucket),
		logger:  logger.With("component", "blobstore.fs"),
	}, nil
}

// Dir is the absolute directory backing the store.
func (f *Filesystem) Dir() string {
	return f.dir
}

func (f *Filesystem) List(ctx context.Context) ([]Object, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("read documents directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Object
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), tmpSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, Object{Name: e.Name(), Size: info.Size(), UpdatedAt: info.ModTime().UTC()})
		if len(out) == MaxList {
			break
		}
	}
	return out, nil
}

func (f *Filesystem) Upload(ctx context.Context, name string, content []byte, overwrite bool) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("upload %s: %w", name, ErrExists)
		}
	}
	tmp := path + tmpSuffix
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (f *Filesystem) Remove(ctx context.Context, names []string) error {
	for _, name := range names {
		path, err := f.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}

func (f *Filesystem) Download(ctx context.Context, name string) ([]byte, error) {
	path, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("get %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func (f *Filesystem) PublicURL(name string) string {
	return PublicURL(f.baseURL, name)
}

func (f *Filesystem) BaseURL() string {
	return f.baseURL
}

// Watch calls fn after files in the directory are created, written, renamed
// or removed. Bursts within quiet are coalesced into one call. Watch blocks
// until ctx is done.
func (f *Filesystem) Watch(ctx context.Context, quiet time.Duration, fn func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(f.dir); err != nil {
		return fmt.Errorf("watch %s: %w", f.dir, err)
	}

	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasSuffix(ev.Name, tmpSuffix) || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			f.logger.Debug("documents directory changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			timer.Reset(quiet)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("watcher error", "error", err)
		case <-timer.C:
			fn()
		}
	}
}

func (f *Filesystem) path(name string) (string, error) {
	if !ValidName(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(f.dir, name), nil
}
