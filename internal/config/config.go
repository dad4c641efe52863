package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Archive ArchiveConfig `yaml:"archive" mapstructure:"archive"`
	Assist  AssistConfig  `yaml:"assist" mapstructure:"assist"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	FTP     FTPConfig     `yaml:"ftp" mapstructure:"ftp"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend holding the taxonomy, the
// duplicate index and the run history.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// ArchiveConfig configures destination and post-archival behavior.
type ArchiveConfig struct {
	// DestRoot is the default archive root. The last destination used by
	// the archive command is persisted back here via the store settings.
	DestRoot string `yaml:"dest_root" mapstructure:"dest_root"`
	// AutoCreateCategories allows the assist service to extend the
	// taxonomy with new categories.
	AutoCreateCategories bool `yaml:"auto_create_categories" mapstructure:"auto_create_categories"`
	// AutoDeleteSource removes the source file after a verified archive.
	AutoDeleteSource bool `yaml:"auto_delete_source" mapstructure:"auto_delete_source"`
	// TagMedia enables best-effort metadata tagging of archived media.
	TagMedia bool `yaml:"tag_media" mapstructure:"tag_media"`
}

// AssistConfig configures the external classification-assist service.
type AssistConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// ExtractConfig bounds per-format text extraction work.
type ExtractConfig struct {
	MaxChars      int `yaml:"max_chars" mapstructure:"max_chars"`
	PDFMaxPages   int `yaml:"pdf_max_pages" mapstructure:"pdf_max_pages"`
	XLSXMaxSheets int `yaml:"xlsx_max_sheets" mapstructure:"xlsx_max_sheets"`
	XLSXMaxRows   int `yaml:"xlsx_max_rows" mapstructure:"xlsx_max_rows"`
	PPTXMaxSlides int `yaml:"pptx_max_slides" mapstructure:"pptx_max_slides"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// FTPConfig configures remote source staging.
type FTPConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	StagingDir  string `yaml:"staging_dir" mapstructure:"staging_dir"`
}

// ServerConfig configures the HTTP control surface.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("ARCHIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "archive.db")
	v.SetDefault("archive.auto_create_categories", true)
	v.SetDefault("archive.auto_delete_source", false)
	v.SetDefault("archive.tag_media", true)
	v.SetDefault("assist.enabled", true)
	v.SetDefault("assist.model", "claude-haiku-4-5-20251001")
	v.SetDefault("assist.timeout_secs", 30)
	v.SetDefault("assist.max_tokens", 500)
	v.SetDefault("assist.rate_per_sec", 2)
	v.SetDefault("extract.max_chars", 20000)
	v.SetDefault("extract.pdf_max_pages", 50)
	v.SetDefault("extract.xlsx_max_sheets", 2)
	v.SetDefault("extract.xlsx_max_rows", 20)
	v.SetDefault("extract.pptx_max_slides", 5)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("ftp.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
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

// Validate checks settings needed before running a batch.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return eris.New("config: store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Assist.Enabled && c.Assist.Key == "" {
		zap.L().Warn("assist enabled but no API key set, falling back to rules only")
	}
	if c.Batch.Workers < 1 {
		return eris.New("config: batch.workers must be at least 1")
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
