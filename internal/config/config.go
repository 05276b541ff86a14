package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	avatarcrop "github.com/menta2k/avatar-cropper"
	"github.com/menta2k/avatar-cropper/internal/utils"
	"github.com/menta2k/avatar-cropper/pkg/api"
	"github.com/menta2k/avatar-cropper/pkg/cropper"
	"github.com/menta2k/avatar-cropper/pkg/processing"
	"github.com/menta2k/avatar-cropper/pkg/server"
	"github.com/menta2k/avatar-cropper/pkg/source"
)

// EnvPrefix prefixes environment overrides, e.g. AVATARCROP_OUTPUT_QUALITY
const EnvPrefix = "AVATARCROP"

// Config holds the application configuration
type Config struct {
	Widget WidgetConfig `yaml:"widget" mapstructure:"widget"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	API    APIConfig    `yaml:"api"    mapstructure:"api"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log"    mapstructure:"log"`
}

// WidgetConfig holds the crop box geometry
type WidgetConfig struct {
	ViewportSize    float64 `yaml:"viewport_size"    mapstructure:"viewport_size"`
	MinSize         float64 `yaml:"min_size"         mapstructure:"min_size"`
	MinScale        float64 `yaml:"min_scale"        mapstructure:"min_scale"`
	MaxScale        float64 `yaml:"max_scale"        mapstructure:"max_scale"`
	DefaultSize     float64 `yaml:"default_size"     mapstructure:"default_size"`
	DefaultFraction float64 `yaml:"default_fraction" mapstructure:"default_fraction"`
	HandleSize      float64 `yaml:"handle_size"      mapstructure:"handle_size"`
}

// OutputConfig holds configuration for avatar generation
type OutputConfig struct {
	Size       int    `yaml:"size"       mapstructure:"size"`
	Format     string `yaml:"format"     mapstructure:"format"`
	Quality    int    `yaml:"quality"    mapstructure:"quality"`
	Lossless   bool   `yaml:"lossless"   mapstructure:"lossless"`
	Background string `yaml:"background" mapstructure:"background"`
	OutputDir  string `yaml:"output_dir" mapstructure:"output_dir"`
	Suffix     string `yaml:"suffix"     mapstructure:"suffix"`
}

// SourceConfig holds upload limits
type SourceConfig struct {
	MaxFileSize      int64    `yaml:"max_file_size"     mapstructure:"max_file_size"`
	SupportedFormats []string `yaml:"supported_formats" mapstructure:"supported_formats"`
	MinImageSize     int      `yaml:"min_image_size"    mapstructure:"min_image_size"`
	MaxPixels        int64    `yaml:"max_pixels"        mapstructure:"max_pixels"`
}

// APIConfig holds the account backend settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout"  mapstructure:"timeout"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Listen          string        `yaml:"listen"           mapstructure:"listen"`
	Mode            string        `yaml:"mode"             mapstructure:"mode"`
	CorsOrigins     []string      `yaml:"cors_origins"     mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"  mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Widget: WidgetConfig{
			ViewportSize:    cropper.DefaultViewportSize,
			MinSize:         cropper.DefaultMinSize,
			MinScale:        cropper.DefaultMinScale,
			MaxScale:        cropper.DefaultMaxScale,
			DefaultSize:     cropper.DefaultBoxSize,
			DefaultFraction: cropper.DefaultBoxFraction,
			HandleSize:      cropper.DefaultHandleSize,
		},
		Output: OutputConfig{
			Size:       processing.DefaultOutputSize,
			Format:     processing.DefaultFormat,
			Quality:    processing.DefaultQuality,
			Background: "#000000",
			OutputDir:  "./output",
			Suffix:     "_avatar",
		},
		Source: SourceConfig{
			MaxFileSize:      source.DefaultMaxFileSize,
			SupportedFormats: []string{"jpeg", "png", "gif", "webp"},
			MinImageSize:     1,
			MaxPixels:        source.DefaultMaxPixels,
		},
		API: APIConfig{
			BaseURL: api.DefaultBaseURL,
			Timeout: api.DefaultTimeout,
		},
		Server: ServerConfig{
			Listen:          ":8080",
			Mode:            "release",
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a YAML file, applying defaults for
// missing keys and AVATARCROP_* environment overrides. An empty filename
// loads defaults and environment only.
func LoadFromFile(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	if filename != "" {
		v.SetConfigFile(filename)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// Load loads filename, or the default config path when filename is empty
// and a file exists there.
func Load(filename string) (*Config, error) {
	if filename == "" {
		if path := GetConfigPath(); utils.FileExists(path) {
			filename = path
		}
	}
	return LoadFromFile(filename)
}

// setDefaults registers every key of def so environment overrides apply
// even when the file does not mention the key.
func setDefaults(v *viper.Viper, def *Config) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to unmarshal defaults: %w", err)
	}
	for section, values := range tree {
		m, ok := values.(map[string]interface{})
		if !ok {
			v.SetDefault(section, values)
			continue
		}
		for key, value := range m {
			v.SetDefault(section+"."+key, value)
		}
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.CropperConfig().Validate(); err != nil {
		return fmt.Errorf("widget: %w", err)
	}

	if c.Output.Size < 1 {
		return fmt.Errorf("output.size must be positive")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	if _, err := processing.MIMEType(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}

	if _, err := ParseColor(c.Output.Background); err != nil {
		return fmt.Errorf("output.background: %w", err)
	}

	if c.Source.MaxFileSize < 1 {
		return fmt.Errorf("source.max_file_size must be positive")
	}

	if c.Source.MinImageSize < 1 {
		return fmt.Errorf("source.min_image_size must be positive")
	}

	if c.Source.MaxPixels < 0 {
		return fmt.Errorf("source.max_pixels must not be negative")
	}

	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// CropperConfig returns the crop box limits
func (c *Config) CropperConfig() cropper.Config {
	return cropper.Config{
		ViewportSize:    c.Widget.ViewportSize,
		MinSize:         c.Widget.MinSize,
		MinScale:        c.Widget.MinScale,
		MaxScale:        c.Widget.MaxScale,
		DefaultSize:     c.Widget.DefaultSize,
		DefaultFraction: c.Widget.DefaultFraction,
		HandleSize:      c.Widget.HandleSize,
	}
}

// WidgetOptions returns the widget options described by the configuration
func (c *Config) WidgetOptions(logger *zap.Logger) (avatarcrop.Options, error) {
	bg, err := ParseColor(c.Output.Background)
	if err != nil {
		return avatarcrop.Options{}, err
	}

	opts := avatarcrop.DefaultOptions()
	opts.Cropper = c.CropperConfig()
	opts.Output = processing.Options{
		OutputSize: c.Output.Size,
		Format:     c.Output.Format,
		Quality:    c.Output.Quality,
		Lossless:   c.Output.Lossless,
		Background: bg,
	}
	opts.Source = source.Config{
		MaxFileSize:      c.Source.MaxFileSize,
		SupportedFormats: c.Source.SupportedFormats,
		MinImageSize:     c.Source.MinImageSize,
		MaxPixels:        c.Source.MaxPixels,
	}
	opts.Logger = logger
	return opts, nil
}

// APIClientConfig returns the account backend client settings
func (c *Config) APIClientConfig(logger *zap.Logger) api.Config {
	return api.Config{
		BaseURL: c.API.BaseURL,
		Timeout: c.API.Timeout,
		Logger:  logger,
	}
}

// ServerConfig returns the HTTP service settings
func (c *Config) ServerConfig() server.Config {
	return server.Config{
		Listen:          c.Server.Listen,
		Mode:            c.Server.Mode,
		CorsOrigins:     c.Server.CorsOrigins,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// ParseColor parses a #rrggbb or #rrggbbaa color
func ParseColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	c := color.NRGBA{A: 255}

	var err error
	switch len(s) {
	case 6:
		_, err = fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(s, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = errors.New("expected #rrggbb or #rrggbbaa")
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "avatar-cropper", "config.yaml")
}
