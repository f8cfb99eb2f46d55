package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/unitmap/internal/annotate"
	"github.com/sells-group/unitmap/internal/geo"
	"github.com/sells-group/unitmap/internal/model"
	"github.com/sells-group/unitmap/internal/pipeline"
	"github.com/sells-group/unitmap/internal/points"
)

// Config holds the full application configuration.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis" mapstructure:"analysis"`
	Points   PointsConfig   `yaml:"points" mapstructure:"points"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// AnalysisConfig holds the clustering, classification and marker parameters.
type AnalysisConfig struct {
	Radius       float64     `yaml:"radius" mapstructure:"radius"`
	LowRiseMin   int         `yaml:"low_rise_min" mapstructure:"low_rise_min"`
	HighRiseMin  int         `yaml:"high_rise_min" mapstructure:"high_rise_min"`
	MarkerRadius float64     `yaml:"marker_radius" mapstructure:"marker_radius"`
	MarkerLayer  string      `yaml:"marker_layer" mapstructure:"marker_layer"`
	Colors       ColorConfig `yaml:"colors" mapstructure:"colors"`
	Overlap      string      `yaml:"overlap" mapstructure:"overlap"`
	Layers       []string    `yaml:"layers" mapstructure:"layers"`
	Workers      int         `yaml:"workers" mapstructure:"workers"`
}

// ColorConfig holds AutoCAD Color Index values per category.
type ColorConfig struct {
	SingleUnit int `yaml:"single_unit" mapstructure:"single_unit"`
	LowRise    int `yaml:"low_rise" mapstructure:"low_rise"`
	HighRise   int `yaml:"high_rise" mapstructure:"high_rise"`
}

// PointsConfig configures point table loading.
type PointsConfig struct {
	XColumn string `yaml:"x_column" mapstructure:"x_column"`
	YColumn string `yaml:"y_column" mapstructure:"y_column"`
	Sheet   string `yaml:"sheet" mapstructure:"sheet"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB     int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	TimeoutSecs     int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	SaveRuns        bool     `yaml:"save_runs" mapstructure:"save_runs"`
	MaxConcurrent   int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("UNITMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("analysis.radius", 0.17)
	v.SetDefault("analysis.low_rise_min", geo.DefaultLowRiseMin)
	v.SetDefault("analysis.high_rise_min", geo.DefaultHighRiseMin)
	v.SetDefault("analysis.marker_radius", annotate.DefaultMarkerRadius)
	v.SetDefault("analysis.marker_layer", annotate.DefaultLayer)
	v.SetDefault("analysis.colors.single_unit", annotate.ColorGreen)
	v.SetDefault("analysis.colors.low_rise", annotate.ColorBlue)
	v.SetDefault("analysis.colors.high_rise", annotate.ColorRed)
	v.SetDefault("analysis.overlap", string(geo.OverlapFirst))
	v.SetDefault("analysis.layers", []string{})
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("points.x_column", points.DefaultXColumn)
	v.SetDefault("points.y_column", points.DefaultYColumn)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "unitmap.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.timeout_secs", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.save_runs", true)
	v.SetDefault("server.max_concurrent", 4)
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("batch.max_concurrent", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Pipeline converts the analysis section into a pipeline configuration.
func (a AnalysisConfig) Pipeline() pipeline.Config {
	return pipeline.Config{
		Radius: a.Radius,
		Thresholds: geo.Thresholds{
			LowRiseMin:  a.LowRiseMin,
			HighRiseMin: a.HighRiseMin,
		},
		Style: annotate.Style{
			MarkerRadius: a.MarkerRadius,
			Layer:        a.MarkerLayer,
			Colors: map[model.Category]int{
				model.CategorySingleUnit: a.Colors.SingleUnit,
				model.CategoryLowRise:    a.Colors.LowRise,
				model.CategoryHighRise:   a.Colors.HighRise,
			},
		},
		Overlap: geo.Overlap(a.Overlap),
		Layers:  a.Layers,
		Workers: a.Workers,
	}
}

// Options converts the points section into loader options.
func (p PointsConfig) Options() points.Options {
	return points.Options{XColumn: p.XColumn, YColumn: p.YColumn, Sheet: p.Sheet}
}

// Validate checks the settings a command mode needs. Mode is one of
// "analyze", "batch", "serve" or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze":
		errs = append(errs, c.validateAnalysis()...)
	case "batch":
		errs = append(errs, c.validateAnalysis()...)
		if c.Batch.MaxConcurrent < 1 || c.Batch.MaxConcurrent > 64 {
			errs = append(errs, "batch.max_concurrent must be between 1 and 64")
		}
	case "serve":
		errs = append(errs, c.validateAnalysis()...)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.MaxUploadMB <= 0 {
			errs = append(errs, "server.max_upload_mb must be > 0")
		}
		if c.Server.MaxConcurrent < 1 {
			errs = append(errs, "server.max_concurrent must be >= 1")
		}
		if c.Server.SaveRuns {
			errs = append(errs, c.validateStore()...)
		}
	case "runs":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	if err := c.Analysis.Pipeline().Validate(); err != nil {
		errs = append(errs, "analysis: "+err.Error())
	}
	if c.Points.XColumn == "" || c.Points.YColumn == "" {
		errs = append(errs, "points.x_column and points.y_column are required")
	}
	return errs
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
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
