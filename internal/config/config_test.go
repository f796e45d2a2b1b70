package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dharsanguruparan/InstallTracker/internal/logging"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeLocal {
		t.Fatalf("expected local mode, got %s", cfg.Mode)
	}
	if cfg.Bucket != "hyros-docs" {
		t.Fatalf("unexpected bucket %q", cfg.Bucket)
	}
	if cfg.MaxFileBytes() != 10_000_000 {
		t.Fatalf("unexpected max file bytes %d", cfg.MaxFileBytes())
	}
	if cfg.Logging.Level != logging.LevelInfo {
		t.Fatalf("unexpected log level %s", cfg.Logging.Level)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.toml")
	content := `
address = ":9090"
bucket = "docs"
max_file_size = "2MB"

[logging]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvConfigFile, path)
	t.Setenv("TRACKER_BUCKET", "from-env")
	t.Setenv("TRACKER_SHUTDOWN_TIMEOUT", "12s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != ":9090" {
		t.Fatalf("file value lost: %q", cfg.Address)
	}
	if cfg.Bucket != "from-env" {
		t.Fatalf("env should win over file, got %q", cfg.Bucket)
	}
	if cfg.MaxFileBytes() != 2_000_000 {
		t.Fatalf("unexpected max bytes %d", cfg.MaxFileBytes())
	}
	if cfg.Logging.Level != logging.LevelDebug {
		t.Fatalf("unexpected level %s", cfg.Logging.Level)
	}
	if cfg.ShutdownTimeout != 12*time.Second {
		t.Fatalf("unexpected shutdown timeout %s", cfg.ShutdownTimeout)
	}
	if cfg.DataDir != ".data" {
		t.Fatalf("default lost after file load: %q", cfg.DataDir)
	}
}

func TestRemoteModeRequiresBackends(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("TRACKER_MODE", "remote")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without database url")
	}
	t.Setenv("TRACKER_DATABASE_URL", "postgres://u:p@localhost:5432/db")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error without s3 endpoint")
	}
	t.Setenv("TRACKER_S3_ENDPOINT", "localhost:9000")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInvalidValuesRejected(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv("TRACKER_MODE", "cloud")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid mode error")
	}
	t.Setenv("TRACKER_MODE", "local")
	t.Setenv("TRACKER_MAX_FILE_SIZE", "lots")
	if _, err := Load(); err == nil {
		t.Fatalf("expected invalid size error")
	}
}
