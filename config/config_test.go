package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/recyclecache/cache"
	"github.com/IvanBrykalov/recyclecache/resource"
)

const sampleYAML = `
cache:
  evict_fraction: 0.5
  quiet_writes: -1
  ghost_entries: 128
maintenance:
  schedule: "@every 5s"
  timeout: 250ms
log:
  level: debug
`

func TestLoadBytes_YAML(t *testing.T) {
	t.Parallel()

	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Cache.EvictFraction)
	assert.Equal(t, -1, cfg.Cache.QuietWrites)
	assert.Equal(t, 128, cfg.Cache.GhostEntries)
	// absent keys keep their defaults
	assert.Equal(t, cache.DefaultInitialCapacity, cfg.Cache.InitialCapacity)
	assert.Equal(t, "@every 5s", cfg.Maintenance.Schedule)
	assert.Equal(t, 250*time.Millisecond, cfg.Maintenance.Timeout)

	lvl, err := cfg.Log.ParseLevel()
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, lvl)
}

func TestLoadBytes_JSON(t *testing.T) {
	t.Parallel()

	cfg, err := LoadBytes([]byte(`{"cache":{"evict_fraction":1},"maintenance":{"timeout":"2m"}}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cfg.Cache.EvictFraction)
	assert.Equal(t, 2*time.Minute, cfg.Maintenance.Timeout)
}

func TestLoadBytes_EmptyIsDefault(t *testing.T) {
	t.Parallel()

	cfg, err := LoadBytes(nil, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadBytes_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"fraction": "cache:\n  evict_fraction: 1.5\n",
		"ghosts":   "cache:\n  ghost_entries: -2\n",
		"level":    "log:\n  level: loud\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadBytes([]byte(doc), FormatYAML)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := LoadBytes([]byte("x"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = LoadBytes([]byte("cache: [unclosed"), FormatYAML)
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Cache.EvictFraction)

	_, err = Load(filepath.Join(dir, "cache.ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestApplyCache(t *testing.T) {
	t.Parallel()

	cfg, err := LoadBytes([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	type fileHandle = *resource.Handle[*os.File]
	opt := cache.Options[string, fileHandle]{Pressure: func() bool { return false }}
	ApplyCache(cfg.Cache, &opt)

	assert.Equal(t, 0.5, opt.EvictFraction)
	assert.Equal(t, -1, opt.QuietWrites)
	assert.Equal(t, 128, opt.GhostEntries)
	assert.NotNil(t, opt.Pressure, "hooks must be left alone")

	c, err := cache.New(opt)
	require.NoError(t, err)
	c.Shutdown()

	mo := cfg.Maintenance.Options(logrus.StandardLogger())
	assert.Equal(t, "@every 5s", mo.Schedule)
	assert.Equal(t, 250*time.Millisecond, mo.Timeout)
}
