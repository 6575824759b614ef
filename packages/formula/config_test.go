package formula

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
default_unit: cm
grid_size: 1cm
named_colors: false
constants:
  Margin: 2mm
  Title: '"Plan"'
`))
	require.NoError(t, err)
	assert.Equal(t, "cm", cfg.DefaultUnit)
	assert.Equal(t, "1cm", cfg.GridSize)
	assert.False(t, cfg.NamedColors)
	assert.Equal(t, map[string]string{"Margin": "2mm", "Title": `"Plan"`}, cfg.Constants)
	// unset keys keep their defaults
	assert.Equal(t, "info", cfg.LogLevel)

	_, err = ParseConfig([]byte("default_unit: [cm"))
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	path := filepath.Join(t.TempDir(), "sketch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_unit: in\nlog_level: debug\n"), 0o644))
	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "in", cfg.DefaultUnit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "5mm", cfg.GridSize)

	require.NoError(t, os.WriteFile(path, []byte("default_unit: furlong\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("SKETCH_DEFAULT_UNIT", "pt")
	t.Setenv("SKETCH_GRID_SIZE", "4pt")
	t.Setenv("SKETCH_NAMED_COLORS", "false")
	t.Setenv("SKETCH_LOG_LEVEL", "warn")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "pt", cfg.DefaultUnit)
	assert.Equal(t, "4pt", cfg.GridSize)
	assert.False(t, cfg.NamedColors)
	assert.Equal(t, "warn", cfg.LogLevel)

	t.Setenv("SKETCH_LOG_LEVEL", "loud")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseLogLevel("chatty")
	assert.Error(t, err)
}

func TestDefaultUnitDrivesUnitsLength(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultUnit = "cm"
	env, err := NewEnvironment(cfg)
	require.NoError(t, err)

	v, err := evalText(t, env, nil, "Units.Length(3)")
	require.NoError(t, err)
	assert.True(t, cm(3).Equal(v))

	p := NewFormulaProperty("P", nil, "2", WithEnvironment(env))
	d, err := p.Distance()
	require.NoError(t, err)
	assert.Equal(t, "2cm", d.String())
}
