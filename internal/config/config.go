package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Veraticus/narration-resolver/internal/classifier"
	"github.com/Veraticus/narration-resolver/internal/common"
	"github.com/Veraticus/narration-resolver/internal/service"
	"github.com/Veraticus/narration-resolver/internal/storage"
	"github.com/spf13/viper"
)

// Config is the typed view of config.yaml, NARRATE_* variables and flags.
type Config struct {
	Logging     LoggingConfig
	Taxonomy    TaxonomyConfig
	Corrections CorrectionsConfig
	Server      ServerConfig
	Classifier  ClassifierConfig
	Batch       BatchConfig
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// TaxonomyConfig locates categories.yml.
type TaxonomyConfig struct {
	Path string
}

// CorrectionsConfig selects the correction backend.
type CorrectionsConfig struct {
	Backend string
	Path    string
}

// ClassifierConfig configures the statistical classifier capability.
type ClassifierConfig struct {
	Backend           string
	URL               string
	Command           string
	WorkDir           string
	ModelDir          string
	LibraryPath       string
	Args              []string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
	Retry             service.RetryOptions
}

// BatchConfig sizes the batch worker pool.
type BatchConfig struct {
	Workers int
}

// ServerConfig configures `narrate serve`.
type ServerConfig struct {
	Addr         string
	CertDir      string
	Hosts        []string
	MaxBodyBytes int64
	TLS          bool
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("taxonomy.path", "$HOME/.config/narrate/categories.yml")

	v.SetDefault("corrections.backend", storage.BackendJSON)
	v.SetDefault("corrections.path", "$HOME/.local/share/narrate/user_corrections.json")

	v.SetDefault("classifier.backend", classifier.BackendNone)
	v.SetDefault("classifier.command", "python3")
	v.SetDefault("classifier.args", []string{"inference_local.py"})
	v.SetDefault("classifier.timeout", 30*time.Second)
	v.SetDefault("classifier.cache_ttl", 15*time.Minute)
	v.SetDefault("classifier.rate_limit", 600)
	v.SetDefault("classifier.retry.max_attempts", 3)
	v.SetDefault("classifier.retry.initial_delay", 500*time.Millisecond)
	v.SetDefault("classifier.retry.max_delay", 10*time.Second)
	v.SetDefault("classifier.retry.multiplier", 2.0)

	v.SetDefault("batch.workers", runtime.NumCPU())

	v.SetDefault("server.addr", "127.0.0.1:5000")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", "$HOME/.config/narrate/certs")
	v.SetDefault("server.hosts", []string{"localhost", "127.0.0.1", "::1"})
	v.SetDefault("server.max_body_bytes", 1<<20)
}

// Load reads the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom materializes a Config from v, expanding paths and validating
// backend names.
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Taxonomy: TaxonomyConfig{
			Path: ExpandPath(v.GetString("taxonomy.path")),
		},
		Corrections: CorrectionsConfig{
			Backend: strings.ToLower(v.GetString("corrections.backend")),
			Path:    ExpandPath(v.GetString("corrections.path")),
		},
		Classifier: ClassifierConfig{
			Backend:           strings.ToLower(v.GetString("classifier.backend")),
			URL:               v.GetString("classifier.url"),
			Command:           ExpandPath(v.GetString("classifier.command")),
			WorkDir:           ExpandPath(v.GetString("classifier.work_dir")),
			ModelDir:          ExpandPath(v.GetString("classifier.model_dir")),
			LibraryPath:       ExpandPath(v.GetString("classifier.library_path")),
			Args:              v.GetStringSlice("classifier.args"),
			Timeout:           v.GetDuration("classifier.timeout"),
			CacheTTL:          v.GetDuration("classifier.cache_ttl"),
			RequestsPerMinute: v.GetInt("classifier.rate_limit"),
			Retry: service.RetryOptions{
				MaxAttempts:  v.GetInt("classifier.retry.max_attempts"),
				InitialDelay: v.GetDuration("classifier.retry.initial_delay"),
				MaxDelay:     v.GetDuration("classifier.retry.max_delay"),
				Multiplier:   v.GetFloat64("classifier.retry.multiplier"),
			},
		},
		Batch: BatchConfig{
			Workers: v.GetInt("batch.workers"),
		},
		Server: ServerConfig{
			Addr:         v.GetString("server.addr"),
			TLS:          v.GetBool("server.tls"),
			CertDir:      ExpandPath(v.GetString("server.cert_dir")),
			Hosts:        v.GetStringSlice("server.hosts"),
			MaxBodyBytes: v.GetInt64("server.max_body_bytes"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend names and the fields each backend requires.
func (c *Config) Validate() error {
	switch c.Corrections.Backend {
	case storage.BackendJSON, storage.BackendSQLite:
	default:
		return fmt.Errorf("%w: corrections.backend must be %q or %q, got %q",
			common.ErrInvalidConfig, storage.BackendJSON, storage.BackendSQLite, c.Corrections.Backend)
	}
	if c.Corrections.Path == "" {
		return fmt.Errorf("%w: corrections.path", common.ErrConfigMissing)
	}

	switch c.Classifier.Backend {
	case classifier.BackendNone, classifier.BackendExec:
	case classifier.BackendHTTP:
		if c.Classifier.URL == "" {
			return fmt.Errorf("%w: classifier.url is required for the http backend", common.ErrConfigMissing)
		}
	case classifier.BackendONNX:
		if c.Classifier.ModelDir == "" {
			return fmt.Errorf("%w: classifier.model_dir is required for the onnx backend", common.ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: unknown classifier backend %q", common.ErrInvalidConfig, c.Classifier.Backend)
	}

	if c.Batch.Workers < 1 {
		c.Batch.Workers = 1
	}
	return nil
}

// ClassifierOptions converts the section into classifier.Config.
func (c ClassifierConfig) ClassifierOptions() classifier.Config {
	return classifier.Config{
		Backend:           c.Backend,
		URL:               c.URL,
		Command:           c.Command,
		WorkDir:           c.WorkDir,
		ModelDir:          c.ModelDir,
		LibraryPath:       c.LibraryPath,
		Args:              c.Args,
		Retry:             c.Retry,
		Timeout:           c.Timeout,
		CacheTTL:          c.CacheTTL,
		RequestsPerMinute: c.RequestsPerMinute,
	}
}
