package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/spf13/viper"
)

type Config struct {
	Download DownloadConfig `mapstructure:"download" yaml:"download"`
	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`

	Port string `mapstructure:"port" yaml:"port"`
}

type DownloadConfig struct {
	Binary      string `mapstructure:"binary" yaml:"binary"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
	LinksFile   string `mapstructure:"links_file" yaml:"links_file"`
	OutDir      string `mapstructure:"out_dir" yaml:"out_dir"`
	ArchiveFile string `mapstructure:"archive_file" yaml:"archive_file"`
	// OutputTemplate is joined onto OutDir
	OutputTemplate string `mapstructure:"output_template" yaml:"output_template"`

	FormatPreset   string `mapstructure:"format_preset" yaml:"format_preset"`
	OutputFormat   string `mapstructure:"output_format" yaml:"output_format"`
	WriteSubtitles bool   `mapstructure:"write_subtitles" yaml:"write_subtitles"`
	WriteThumbnail bool   `mapstructure:"write_thumbnail" yaml:"write_thumbnail"`
	AddMetadata    bool   `mapstructure:"add_metadata" yaml:"add_metadata"`

	RateLimit          string `mapstructure:"rate_limit" yaml:"rate_limit"`
	CookiesFromBrowser string `mapstructure:"cookies_from_browser" yaml:"cookies_from_browser"`
	CustomArgs         string `mapstructure:"custom_args" yaml:"custom_args"`

	ResetStatsOnNewBatch bool `mapstructure:"reset_stats_on_new_batch" yaml:"reset_stats_on_new_batch"`
}

type RetryConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	Delay       time.Duration `mapstructure:"delay" yaml:"delay"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
}

type LogConfig struct {
	Path          string `mapstructure:"path" yaml:"path"`
	Level         string `mapstructure:"level" yaml:"level"`
	IncludeStdout bool   `mapstructure:"include_stdout" yaml:"include_stdout"`
}

type StoreConfig struct {
	// Driver is one of "sqlite", "postgres" or "none"
	Driver      string `mapstructure:"driver" yaml:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
}

// Flags that custom_args may not set because the downloader manages them
var ConflictingFlags = []string{
	"--download-archive",
	"-a",
	"--output",
	"-o",
	"--progress-template",
}

var FormatPresets = map[string]string{
	"best":  "bestvideo*+bestaudio/best",
	"audio": "bestaudio/best",
	"1080p": "bestvideo[height<=1080]+bestaudio/best[height<=1080]",
	"720p":  "bestvideo[height<=720]+bestaudio/best[height<=720]",
	"480p":  "bestvideo[height<=480]+bestaudio/best[height<=480]",
	"360p":  "bestvideo[height<=360]+bestaudio/best[height<=360]",
}

var OutputFormats = map[string][]string{
	"auto": nil,
	"mp4":  {"--merge-output-format", "mp4"},
	"mkv":  {"--merge-output-format", "mkv"},
	"webm": {"--merge-output-format", "webm"},
	"mp3":  {"--extract-audio", "--audio-format", "mp3"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("download.binary", "yt-dlp")
	v.SetDefault("download.concurrency", 4)
	v.SetDefault("download.links_file", "links.txt")
	v.SetDefault("download.out_dir", "./yt_dlp_downloads")
	v.SetDefault("download.archive_file", "./download_archive.txt")
	v.SetDefault("download.output_template", "%(title)s - [%(id)s].%(ext)s")
	v.SetDefault("download.format_preset", "best")
	v.SetDefault("download.output_format", "auto")
	v.SetDefault("download.reset_stats_on_new_batch", true)
	v.SetDefault("retry.enabled", true)
	v.SetDefault("retry.delay", "2s")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("log.path", "autodl.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.include_stdout", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./data/autodl.db")
}

// Load reads path (default config.yaml). Unlike a server config every key has
// a default, so a missing default config file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = "config.yaml"
	}

	v := viper.New()
	setDefaults(v)

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file not found: %s", path)
	} else if _, errEx := os.Stat("/config/config.yaml"); errEx == nil {
		// Docker layout
		v.SetConfigFile("/config/config.yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file /config/config.yaml: %w", err)
		}
	}

	// Support Environment Variables
	v.SetEnvPrefix("AUTODL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or env is present
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	_ = cfg.validate()
	return &cfg
}

func (c *Config) validate() error {
	d := &c.Download

	if d.Concurrency <= 0 {
		d.Concurrency = 4
	}

	if d.Binary == "" {
		d.Binary = "yt-dlp"
	}

	if d.LinksFile == "" {
		d.LinksFile = "links.txt"
	}

	if d.OutDir == "" {
		d.OutDir = "./yt_dlp_downloads"
	}

	if d.FormatPreset == "" {
		d.FormatPreset = "best"
	}
	if _, ok := FormatPresets[d.FormatPreset]; !ok {
		return fmt.Errorf("download.format_preset: unknown preset %q", d.FormatPreset)
	}

	if d.OutputFormat == "" {
		d.OutputFormat = "auto"
	}
	if _, ok := OutputFormats[d.OutputFormat]; !ok {
		return fmt.Errorf("download.output_format: unknown format %q", d.OutputFormat)
	}

	if err := ValidateCustomArgs(d.CustomArgs); err != nil {
		return fmt.Errorf("download.custom_args: %w", err)
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}

	if c.Retry.Delay < 0 {
		return errors.New("retry.delay must not be negative")
	}

	switch c.Store.Driver {
	case "", "sqlite":
		c.Store.Driver = "sqlite"
		if c.Store.SQLitePath == "" {
			c.Store.SQLitePath = "./data/autodl.db"
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn is required when store.driver is postgres")
		}
	case "none":
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}

	if c.Port == "" {
		c.Port = "8080"
	}

	return nil
}

// OutputPath is the full --output template
func (d DownloadConfig) OutputPath() string {
	return filepath.Join(d.OutDir, d.OutputTemplate)
}

// ParsedCustomArgs splits CustomArgs with shell quoting rules
func (d DownloadConfig) ParsedCustomArgs() ([]string, error) {
	if strings.TrimSpace(d.CustomArgs) == "" {
		return nil, nil
	}
	return shellwords.Parse(d.CustomArgs)
}

// ValidateCustomArgs rejects malformed quoting and flags the downloader sets itself
func ValidateCustomArgs(args string) error {
	if strings.TrimSpace(args) == "" {
		return nil
	}

	parsed, err := shellwords.Parse(args)
	if err != nil {
		return fmt.Errorf("invalid argument syntax: %w", err)
	}

	for _, arg := range parsed {
		for _, flag := range ConflictingFlags {
			if arg == flag || strings.HasPrefix(arg, flag+"=") {
				return fmt.Errorf("'%s' conflicts with autodl's internal handling", flag)
			}
		}
	}

	return nil
}
