// Package testsupport holds shared helpers for package tests: temp-dir
// configs, store fixtures, and media file stand-ins.
package testsupport

import (
	"path/filepath"
	"testing"

	"reframe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// Both servers bind ephemeral ports so tests can run in parallel.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Paths.PreviewBind = "127.0.0.1:0"
	// Point the probe at a path that cannot exist so tests fail fast instead
	// of depending on a host ffprobe install.
	cfg.Encoder.FFprobeBinary = filepath.Join(base, "missing-ffprobe")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure config directories: %v", err)
	}
	return &cfg
}

// WithFFprobeBinary overrides the probe binary on the test config.
func WithFFprobeBinary(path string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Encoder.FFprobeBinary = path
	}
}

// WithLazyPreview toggles lazy preview startup on the test config.
func WithLazyPreview(lazy bool) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Preview.LazyStart = lazy
	}
}
