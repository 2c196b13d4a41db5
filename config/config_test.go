package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/prpsweep/pkg"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(51), cfg.Seed)
	assert.Equal(t, 5*time.Second, cfg.CommandTimeout)
	assert.Equal(t, DefaultArtifactDir, cfg.ArtifactDir)
	assert.Equal(t, "backend=sim page=4.0 KiB lba=512 B blocks=1024 meta=0 mdts=5 pi=0 seed=51", cfg.String())
}

func TestApply(t *testing.T) {
	cfg := Default()
	err := cfg.Apply(map[string]string{
		"PRPSWEEP_PAGE_SIZE":     "8KiB",
		"PRPSWEEP_LBA_SIZE":      "4096",
		"PRPSWEEP_METADATA_SIZE": "8",
		"PRPSWEEP_SEED":          "0x33",
		"PRPSWEEP_TIMEOUT":       "250ms",
		"PRPSWEEP_MDTS":          "0",
		"PRPSWEEP_STRICT_PRP2":   "true",
		"PRPSWEEP_CORRUPT":       "Metadata",
		"PRPSWEEP_ARTIFACT_DIR":  "",
		"PRPSWEEP_LOG_LEVEL":     "debug",
		"PRPSWEEP_LOG_FORMAT":    "JSON",
		"HOME":                   "/ignored",
	})
	require.NoError(t, err)

	assert.Equal(t, uint64(8192), cfg.PageSize)
	assert.Equal(t, uint64(4096), cfg.LBASize)
	assert.Equal(t, uint64(8), cfg.MetadataSize)
	assert.Equal(t, uint64(0x33), cfg.Seed)
	assert.Equal(t, 250*time.Millisecond, cfg.CommandTimeout)
	assert.Zero(t, cfg.MDTS)
	assert.True(t, cfg.StrictPRP2)
	assert.Equal(t, CorruptMetadata, cfg.Corrupt)
	assert.Empty(t, cfg.ArtifactDir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, pkg.LogFormatJSON, cfg.LogFormat)
}

func TestApplyErrors(t *testing.T) {
	cfg := Default()
	err := cfg.Apply(map[string]string{
		"PRPSWEEP_MDTS":    "300",
		"PRPSWEEP_BOGUS":   "1",
		"PRPSWEEP_TIMEOUT": "soon",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
	assert.Contains(t, err.Error(), "PRPSWEEP_MDTS")
	assert.Contains(t, err.Error(), "PRPSWEEP_BOGUS")
	assert.Contains(t, err.Error(), "PRPSWEEP_TIMEOUT")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sweep.env")
	require.NoError(t, os.WriteFile(file, []byte(
		"PRPSWEEP_BLOCKS=64\nPRPSWEEP_NSID=2\n# comment\nPRPSWEEP_ARTIFACT_DIR=/tmp/a\n"), 0o644))

	t.Setenv("PRPSWEEP_NSID", "3")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, uint64(64), cfg.Blocks)
	assert.Equal(t, uint32(3), cfg.NSID)
	assert.Equal(t, "/tmp/a", cfg.ArtifactDir)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)

	t.Chdir(t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendSim, cfg.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"page not power of two", func(c *Config) { c.PageSize = 6000 }},
		{"page below 4k", func(c *Config) { c.PageSize = 2048 }},
		{"lba below 512", func(c *Config) { c.LBASize = 256 }},
		{"namespace smaller than page", func(c *Config) { c.Blocks = 4 }},
		{"metadata too large", func(c *Config) { c.MetadataSize = 1 << 16 }},
		{"queue depth", func(c *Config) { c.QueueDepth = 1 }},
		{"unknown corruption", func(c *Config) { c.Corrupt = "lba" }},
		{"linux without device", func(c *Config) { c.Backend = BackendLinux }},
		{"unknown backend", func(c *Config) { c.Backend = "spdk" }},
		{"nsid zero", func(c *Config) { c.NSID = 0 }},
		{"timeout", func(c *Config) { c.CommandTimeout = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), pkg.ErrInvalidParameter)
		})
	}

	cfg := Default()
	cfg.Backend = BackendLinux
	cfg.Device = "/dev/nvme0n1"
	cfg.PageSize = 0
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "backend=linux device=/dev/nvme0n1 nsid=1 seed=51 timeout=5s", cfg.String())
}
