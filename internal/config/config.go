package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Map       MapConfig       `yaml:"map" mapstructure:"map"`
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// MapConfig configures normalization, simplification, styling and composition.
type MapConfig struct {
	CanonicalCRS string          `yaml:"canonical_crs" mapstructure:"canonical_crs"`
	DefaultCRS   string          `yaml:"default_crs" mapstructure:"default_crs"`
	Tolerance    float64         `yaml:"tolerance" mapstructure:"tolerance"`
	MinVertices  int             `yaml:"min_vertices" mapstructure:"min_vertices"`
	LabelColumn  string          `yaml:"label_column" mapstructure:"label_column"`
	Palette      []string        `yaml:"palette" mapstructure:"palette"`
	Zoom         int             `yaml:"zoom" mapstructure:"zoom"`
	Stroke       StrokeConfig    `yaml:"stroke" mapstructure:"stroke"`
	TooltipAlias string          `yaml:"tooltip_alias" mapstructure:"tooltip_alias"`
	Title        string          `yaml:"title" mapstructure:"title"`
	ExportName   string          `yaml:"export_name" mapstructure:"export_name"`
	StylePreset  string          `yaml:"style_preset" mapstructure:"style_preset"`
	Basemaps     []BasemapConfig `yaml:"basemaps" mapstructure:"basemaps"`
}

// StrokeConfig holds the fixed overlay outline and fill opacity.
type StrokeConfig struct {
	Color       string  `yaml:"color" mapstructure:"color"`
	Weight      float64 `yaml:"weight" mapstructure:"weight"`
	FillOpacity float64 `yaml:"fill_opacity" mapstructure:"fill_opacity"`
}

// BasemapConfig describes one selectable tile provider.
type BasemapConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	URL         string `yaml:"url" mapstructure:"url"`
	Attribution string `yaml:"attribution" mapstructure:"attribution"`
	MaxZoom     int    `yaml:"max_zoom" mapstructure:"max_zoom"`
}

// WorkspaceConfig configures the per-run extraction directory.
type WorkspaceConfig struct {
	TempDir         string `yaml:"temp_dir" mapstructure:"temp_dir"`
	MaxExtractBytes int64  `yaml:"max_extract_bytes" mapstructure:"max_extract_bytes"`
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port        int `yaml:"port" mapstructure:"port"`
	MaxUploadMB int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	RatePerMin  int `yaml:"rate_per_min" mapstructure:"rate_per_min"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Tab20 is the default categorical palette.
var Tab20 = []string{
	"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
	"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
	"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
	"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
}

// DefaultBasemaps returns the street, terrain and satellite providers.
func DefaultBasemaps() []BasemapConfig {
	return []BasemapConfig{
		{
			Name:        "Street Map",
			URL:         "https://tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "&copy; OpenStreetMap contributors",
			MaxZoom:     19,
		},
		{
			Name:        "Terrain",
			URL:         "https://tiles.stadiamaps.com/tiles/stamen_terrain/{z}/{x}/{y}.png",
			Attribution: "Map tiles by Stamen Design, hosted by Stadia Maps. Data &copy; OpenStreetMap contributors",
			MaxZoom:     18,
		},
		{
			Name:        "Satellite",
			URL:         "https://mt1.google.com/vt/lyrs=s&x={x}&y={y}&z={z}",
			Attribution: "Map data &copy; Google",
			MaxZoom:     20,
		},
	}
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Default returns the configuration Load produces with no file or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	// Defaults are static; unmarshal cannot fail on them.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	basemaps := make([]map[string]any, 0, 3)
	for _, b := range DefaultBasemaps() {
		basemaps = append(basemaps, map[string]any{
			"name":        b.Name,
			"url":         b.URL,
			"attribution": b.Attribution,
			"max_zoom":    b.MaxZoom,
		})
	}

	v.SetDefault("map.canonical_crs", "EPSG:4326")
	v.SetDefault("map.default_crs", "EPSG:4326")
	v.SetDefault("map.tolerance", 0.0001)
	v.SetDefault("map.min_vertices", 4)
	v.SetDefault("map.label_column", "GLG")
	v.SetDefault("map.palette", Tab20)
	v.SetDefault("map.zoom", 13)
	v.SetDefault("map.stroke.color", "#000000")
	v.SetDefault("map.stroke.weight", 0.5)
	v.SetDefault("map.stroke.fill_opacity", 0.6)
	v.SetDefault("map.tooltip_alias", "Unit:")
	v.SetDefault("map.title", "Geologic Map")
	v.SetDefault("map.export_name", "geology_map.html")
	v.SetDefault("map.style_preset", "")
	v.SetDefault("map.basemaps", basemaps)
	v.SetDefault("workspace.temp_dir", "")
	v.SetDefault("workspace.max_extract_bytes", int64(1<<30))
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 200)
	v.SetDefault("server.rate_per_min", 30)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks the configuration for the given mode ("render" or "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "render":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Map.CanonicalCRS == "" {
		errs = append(errs, "map.canonical_crs is required")
	}
	if c.Map.DefaultCRS == "" {
		errs = append(errs, "map.default_crs is required")
	}
	if c.Map.Tolerance < 0 {
		errs = append(errs, "map.tolerance must be >= 0")
	}
	if len(c.Map.Palette) == 0 {
		errs = append(errs, "map.palette must not be empty")
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 22 {
		errs = append(errs, "map.zoom must be between 0 and 22")
	}
	if c.Map.Stroke.FillOpacity < 0 || c.Map.Stroke.FillOpacity > 1 {
		errs = append(errs, "map.stroke.fill_opacity must be between 0 and 1")
	}
	if len(c.Map.Basemaps) == 0 {
		errs = append(errs, "map.basemaps must list at least one provider")
	}
	for i, b := range c.Map.Basemaps {
		if b.Name == "" || b.URL == "" {
			errs = append(errs, fmt.Sprintf("map.basemaps[%d] needs name and url", i))
		}
	}
	if c.Workspace.MaxExtractBytes <= 0 {
		errs = append(errs, "workspace.max_extract_bytes must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
