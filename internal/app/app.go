// Package app wires the catalog, blob store and preferences selected by the
// configured mode into a Tracker. The server, worker and CLI binaries share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/InstallTracker/internal/blobstore"
	"github.com/dharsanguruparan/InstallTracker/internal/catalog"
	"github.com/dharsanguruparan/InstallTracker/internal/config"
	"github.com/dharsanguruparan/InstallTracker/internal/database"
	"github.com/dharsanguruparan/InstallTracker/internal/kvstore"
	"github.com/dharsanguruparan/InstallTracker/internal/tracker"
)

const (
	kvFile  = "tracker.json"
	docsDir = "docs"
)

// Runtime holds the wired dependencies of one process.
type Runtime struct {
	Tracker *tracker.Tracker
	Blobs   blobstore.Store
	// Local is the directory-backed store in local mode and nil otherwise.
	Local *blobstore.Filesystem

	pool *pgxpool.Pool
}

// Open builds the stores for cfg.Mode and a Tracker over them. The tracker
// is not loaded yet. Remote mode applies pending migrations first.
func Open(ctx context.Context, cfg *config.Config, notifier tracker.Notifier, logger *slog.Logger) (*Runtime, error) {
	kv, err := kvstore.Open(filepath.Join(cfg.DataDir, kvFile))
	if err != nil {
		return nil, fmt.Errorf("open preferences: %w", err)
	}
	rt := &Runtime{}

	var store catalog.Store
	switch cfg.Mode {
	case config.ModeLocal:
		fs, err := blobstore.NewFilesystem(filepath.Join(cfg.DataDir, docsDir), cfg.PublicBaseURL, cfg.Bucket, logger)
		if err != nil {
			return nil, err
		}
		rt.Local, rt.Blobs = fs, fs
		store = catalog.NewLocal(kv)
	case config.ModeRemote:
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			return nil, err
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.pool = pool
		s3, err := blobstore.NewS3(blobstore.S3Config{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Region:        cfg.S3Region,
			UseSSL:        cfg.S3UseSSL,
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
		}, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := s3.EnsureBucket(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		rt.Blobs = s3
		store = catalog.NewPostgres(pool, logger)
	default:
		return nil, fmt.Errorf("unsupported mode %q", cfg.Mode)
	}

	rt.Tracker = tracker.New(tracker.Deps{
		Store:    store,
		Blobs:    rt.Blobs,
		Prefs:    kvstore.NewPreferences(kv),
		Notifier: notifier,
		Logger:   logger,
	})
	return rt, nil
}

// Load opens the runtime and loads the tracker. A store that cannot be read
// is reported as tracker.ErrStoreUnavailable.
func Load(ctx context.Context, cfg *config.Config, notifier tracker.Notifier, logger *slog.Logger) (*Runtime, error) {
	rt, err := Open(ctx, cfg, notifier, logger)
	if err != nil {
		return nil, err
	}
	res, err := rt.Tracker.Load(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	logger.Info("catalog loaded",
		"mode", cfg.Mode,
		"installs", rt.Tracker.Stats().Total,
		"orphans", res.Orphans,
		"linked", len(res.Linked),
	)
	return rt, nil
}

// Close releases the database pool, if any.
func (r *Runtime) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// IsUnavailable reports whether err means the catalog could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, tracker.ErrStoreUnavailable)
}
