package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/menta2k/avatar-cropper/pkg/source"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 400.0, cfg.Widget.ViewportSize)
	assert.Equal(t, 300, cfg.Output.Size)
	assert.Equal(t, "_avatar", cfg.Output.Suffix)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Widget.MaxScale = 2
	cfg.Output.Format = "png"
	cfg.Output.Background = "#ffffff"
	cfg.API.Timeout = 3 * time.Second
	cfg.Server.CorsOrigins = []string{"http://localhost:5173"}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  quality: 70\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 70, cfg.Output.Quality)
	assert.Equal(t, 300, cfg.Output.Size)
	assert.Equal(t, Default().Widget, cfg.Widget)
	assert.Equal(t, Default().API, cfg.API)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AVATARCROP_OUTPUT_QUALITY", "75")
	t.Setenv("AVATARCROP_API_BASE_URL", "https://accounts.example.com/api")
	t.Setenv("AVATARCROP_API_TIMEOUT", "3s")

	cfg, err := LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, 75, cfg.Output.Quality)
	assert.Equal(t, "https://accounts.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"viewport", func(c *Config) { c.Widget.ViewportSize = 0 }},
		{"scale range", func(c *Config) { c.Widget.MinScale = 4 }},
		{"output size", func(c *Config) { c.Output.Size = 0 }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
		{"format", func(c *Config) { c.Output.Format = "gif" }},
		{"background", func(c *Config) { c.Output.Background = "black" }},
		{"max file size", func(c *Config) { c.Source.MaxFileSize = 0 }},
		{"max pixels", func(c *Config) { c.Source.MaxPixels = -1 }},
		{"timeout", func(c *Config) { c.API.Timeout = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{255, 128, 0, 255}, c)

	c, err = ParseColor("00000000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{}, c)

	for _, bad := range []string{"", "#fff", "#gg0000", "#12345"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestWidgetOptions(t *testing.T) {
	cfg := Default()
	cfg.Widget.MaxScale = 2
	cfg.Output.Background = "#ffffff"

	opts, err := cfg.WidgetOptions(zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2.0, opts.Cropper.MaxScale)
	assert.Equal(t, color.NRGBA{255, 255, 255, 255}, opts.Output.Background)
	assert.Equal(t, cfg.Source.MaxFileSize, opts.Source.MaxFileSize)
	assert.Equal(t, source.DefaultMaxPixels, opts.Source.MaxPixels)
	assert.NotNil(t, opts.Document)
	assert.NotNil(t, opts.Logger)

	cfg.Output.Background = "white"
	_, err = cfg.WidgetOptions(nil)
	assert.Error(t, err)
}

func TestClientAndServerConfig(t *testing.T) {
	cfg := Default()
	api := cfg.APIClientConfig(nil)
	assert.Equal(t, cfg.API.BaseURL, api.BaseURL)
	assert.Equal(t, cfg.API.Timeout, api.Timeout)

	srv := cfg.ServerConfig()
	assert.Equal(t, ":8080", srv.Listen)
	assert.Equal(t, 15*time.Second, srv.ShutdownTimeout)
}
