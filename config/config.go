package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sagarc03/satchel"
	satchelhttp "github.com/sagarc03/satchel/http"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for satchel.
type Config struct {
	Server   ServerConfig           `mapstructure:"server" yaml:"server"`
	Archive  ArchiveConfig          `mapstructure:"archive" yaml:"archive"`
	Storage  StorageConfig          `mapstructure:"storage" yaml:"storage"`
	Database DatabaseConfig         `mapstructure:"database" yaml:"database"`
	CORS     satchelhttp.CORSConfig `mapstructure:"cors" yaml:"cors"`
	Metrics  MetricsConfig          `mapstructure:"metrics" yaml:"metrics"`
	Log      LogConfig              `mapstructure:"log" yaml:"log"`
	Env      string                 `mapstructure:"env" yaml:"env" validate:"omitempty,oneof=dev development prod production"`
}

// ServerConfig holds HTTP server configuration. Timeouts are in seconds.
type ServerConfig struct {
	Port            int `mapstructure:"port" yaml:"port" validate:"required,min=1,max=65535"`
	ReadTimeout     int `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    int `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout int `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=1"`
}

// ArchiveConfig holds the archive policy and builder settings.
type ArchiveConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// MaxInputSize accepts plain byte counts or strings such as "800 MiB".
	// Zero or negative means unlimited.
	MaxInputSize ByteSize `mapstructure:"max_input_size" yaml:"max_input_size"`
	TempDir      string   `mapstructure:"temp_dir" yaml:"temp_dir"`
	Method       string   `mapstructure:"method" yaml:"method" validate:"required,oneof=store deflate"`
}

// Policy returns the size policy for the guard.
func (a ArchiveConfig) Policy() satchel.ArchivePolicy {
	return satchel.ArchivePolicy{Enabled: a.Enabled, MaxInputSize: int64(a.MaxInputSize)}
}

// StorageConfig selects the storage tree downloads are served from.
type StorageConfig struct {
	Type string   `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem s3"`
	Path string   `mapstructure:"path" yaml:"path"`
	S3   S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds S3 bucket settings, used when storage.type is s3.
type S3Config struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"-"`
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
}

// DatabaseConfig selects the download log backend.
type DatabaseConfig struct {
	Type   string         `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite postgres none"`
	DSN    string         `mapstructure:"dsn" yaml:"dsn" validate:"required_unless=Type none"`
	Tables satchel.Tables `mapstructure:"tables" yaml:"tables"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// LogConfig holds logging configuration. An empty Format picks json in
// production and text otherwise.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// ByteSize is a size in bytes decoded from an integer or a humanized string.
type ByteSize int64

func (b ByteSize) String() string {
	if b <= 0 {
		return "unlimited"
	}
	return humanize.IBytes(uint64(b))
}

// MarshalYAML keeps printed configs loadable.
func (b ByteSize) MarshalYAML() (any, error) {
	if b <= 0 {
		return int64(b), nil
	}
	return humanize.IBytes(uint64(b)), nil
}

// byteSizeHook decodes strings such as "800 MiB" or "1GB" into ByteSize.
func byteSizeHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target || from.Kind() != reflect.String {
			return data, nil
		}

		s := strings.TrimSpace(data.(string))
		if s == "" {
			return ByteSize(0), nil
		}

		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return ByteSize(n), nil
		}

		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("parse byte size %q: %w", s, err)
		}
		return ByteSize(n), nil
	}
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type":        "database.type",
	"db-dsn":         "database.dsn",
	"storage-type":   "storage.type",
	"storage-path":   "storage.path",
	"port":           "server.port",
	"archive":        "archive.enabled",
	"max-input-size": "archive.max_input_size",
	"temp-dir":       "archive.temp_dir",
	"method":         "archive.method",
	"metrics":        "metrics.enabled",
	"log-level":      "log.level",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5709)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.max_input_size", satchel.DefaultMaxInputSize)
	v.SetDefault("archive.temp_dir", "")
	v.SetDefault("archive.method", string(satchel.MethodDeflate))

	v.SetDefault("storage.type", "filesystem")
	v.SetDefault("storage.path", "./data")
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.prefix", "")
	v.SetDefault("storage.s3.access_key", "")
	v.SetDefault("storage.s3.secret_key", "")
	v.SetDefault("storage.s3.use_ssl", true)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "satchel.db")
	v.SetDefault("database.tables.downloads", "satchel_downloads")

	v.SetDefault("cors.enabled", false)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "HEAD", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Accept", "Accept-Language", "Content-Type"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition", "Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 300)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "")
	v.SetDefault("env", "")
}

// validateStorage requires the settings of the selected storage type.
func validateStorage(sl validator.StructLevel) {
	s := sl.Current().Interface().(StorageConfig)

	switch s.Type {
	case "filesystem":
		if s.Path == "" {
			sl.ReportError(s.Path, "Path", "path", "required_for_filesystem", "")
		}
	case "s3":
		if s.S3.Endpoint == "" {
			sl.ReportError(s.S3.Endpoint, "S3.Endpoint", "endpoint", "required_for_s3", "")
		}
		if s.S3.Bucket == "" {
			sl.ReportError(s.S3.Bucket, "S3.Bucket", "bucket", "required_for_s3", "")
		}
	}
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("SATCHEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	hooks := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		byteSizeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hooks); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	validate.RegisterStructValidation(validateStorage, StorageConfig{})
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if err := cfg.Database.Tables.Validate(); err != nil && cfg.Database.Type != "none" {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
