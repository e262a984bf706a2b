package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "GEOBLOCK_"

// DefaultEnvFile is loaded by LoadDotEnv when no path is given.
const DefaultEnvFile = ".env"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// LogFile, when set, receives a rotated JSON copy of the log.
	LogFile       string `koanf:"log_file"`
	LogMaxSizeMB  int    `koanf:"log_max_size_mb" validate:"gte=0"`
	LogMaxBackups int    `koanf:"log_max_backups" validate:"gte=0"`
	LogMaxAgeDays int    `koanf:"log_max_age_days" validate:"gte=0"`

	// Listen is the host:port the HTTP API binds to. The host may be empty.
	Listen string `koanf:"listen" validate:"required,host_port"`

	// MaxConnections caps concurrent HTTP connections. Zero means unlimited.
	MaxConnections int `koanf:"max_connections" validate:"gte=0"`

	// SweepInterval is how often expired temporal blocks are removed.
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gte=1s"`

	// GeoProvider selects the geolocation backend.
	GeoProvider string        `koanf:"geo_provider" validate:"required,oneof=ipgeolocation mmdb"`
	GeoAPIKey   string        `koanf:"geo_api_key"`
	GeoBaseURL  string        `koanf:"geo_base_url" validate:"required,url"`
	GeoTimeout  time.Duration `koanf:"geo_timeout" validate:"gt=0s"`
	GeoMMDBPath string        `koanf:"geo_mmdb_path" validate:"required_if=GeoProvider mmdb"`

	// GeoCacheSize is the number of lookups kept in memory; zero disables the cache.
	GeoCacheSize int           `koanf:"geo_cache_size" validate:"gte=0"`
	GeoCacheTTL  time.Duration `koanf:"geo_cache_ttl" validate:"gte=0s"`

	// ArchivePath, when set, is a bbolt file receiving every attempt log entry.
	ArchivePath string `koanf:"archive_path"`

	// TrustedProxies lists the proxy addresses or CIDRs whose forwarding
	// headers are honored when resolving the caller IP.
	TrustedProxies []string `koanf:"trusted_proxies" validate:"dive,ip|cidr"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the geoblock service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	LogMaxSizeMB:   100,
	LogMaxBackups:  3,
	LogMaxAgeDays:  28,
	Listen:         ":8080",
	MaxConnections: 1024,
	SweepInterval:  5 * time.Minute,
	GeoProvider:    "ipgeolocation",
	GeoBaseURL:     "https://api.ipgeolocation.io",
	GeoTimeout:     5 * time.Second,
	GeoCacheSize:   4096,
	GeoCacheTTL:    time.Hour,
}

// validHostPort validates a "host:port" listen address. The host may be
// empty, an IP address, or a hostname; the port must be 1-65535.
func validHostPort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	if strings.ContainsAny(host, " /") {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "GEOBLOCK_",
// lowercasing keys and splitting comma or space separated lists.
// It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			value = strings.TrimSpace(value)

			if value == "" {
				return key, value
			}

			if strings.Contains(value, " ") || strings.Contains(value, ",") {
				parts := strings.FieldsFunc(value, func(r rune) bool {
					return r == ' ' || r == ','
				})
				return key, parts
			}

			return key, value
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG into k.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the custom "host_port" validation.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("host_port", validHostPort)
}

// LoadDotEnv populates the process environment from a dotenv file without
// overriding variables that are already set. An empty path means
// DefaultEnvFile, which may be absent; an explicit path must exist.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error loading env file %q: %w", path, err)
	}
	return nil
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
