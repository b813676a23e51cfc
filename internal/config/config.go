// Package config handles configuration settings for the application.
package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/voltzug/cinder/internal/pepper"
)

// Config holds the configuration settings for the application.
type Config struct {
	Addr    string `koanf:"addr" validate:"required,ip_port"`
	DataDir string `koanf:"data_dir" validate:"required,custom_path"`

	// StorageDirectory, SchedulerEnabled, SchedulerCron, SessionTimeout and
	// DefaultMaxAttempts correspond to the dotted config keys
	// storage.local.directory, scheduler.enabled, scheduler.cleanup_cron,
	// session.timeout_seconds and session.max_attempts; they are carried as
	// flat env-style names here since the env loader (like the teacher's)
	// only flattens one level, not arbitrary nesting.
	StorageDirectory  string        `koanf:"storage_local_directory" validate:"required,custom_path"`
	MaxBytes          int64         `koanf:"max_bytes" validate:"required,gt=0"`
	SchedulerEnabled  bool          `koanf:"scheduler_enabled"`
	SchedulerCron     string        `koanf:"scheduler_cleanup_cron"`
	SchedulerInterval time.Duration `koanf:"-"`

	SessionTimeout     time.Duration `koanf:"session_timeout_seconds" validate:"required,gt=0"`
	DefaultMaxAttempts int           `koanf:"session_max_attempts" validate:"required,gt=0,lte=99"`

	// PepperActiveVersion and PepperKeys are not loaded through koanf: env
	// var names carry a dynamic version suffix (CINDER_PEPPER_HEX_1,
	// CINDER_PEPPER_HEX_2, ...) that koanf's flat env provider cannot express
	// as a map. loadPepperKeys populates them directly from os.Environ.
	PepperActiveVersion uint16           `koanf:"-" validate:"required"`
	PepperKeys          map[uint16][]byte `koanf:"-" validate:"required,min=1"`

	MetricsAddr  string `koanf:"metrics_addr" validate:"omitempty,ip_port"`
	MetricsToken string `koanf:"metrics_token"`
}

// DefaultAppConfig provides the default app configuration values.
var DefaultAppConfig = Config{
	Addr:               ":8080",
	DataDir:            "/data",
	StorageDirectory:   "/data/blobs",
	MaxBytes:           5 * 1024 * 1024 * 1024, // 5 GiB
	SchedulerEnabled:   true,
	SchedulerCron:      "5m",
	SessionTimeout:     15 * time.Minute,
	DefaultMaxAttempts: 5,
	MetricsAddr:        "", // disabled by default
}

// defaultLoader loads default configuration values into the provided Koanf instance
// using the structs provider and the DefaultAppConfig struct. It returns an error
// if loading fails.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
}

// envLoader loads environment variables with the prefix "CINDER_". It
// transforms the keys to lowercase and removes the prefix; a value
// containing commas becomes a slice of trimmed strings, any other value a
// trimmed string.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{Prefix: "CINDER_", TransformFunc: func(key, value string) (string, any) {
		key = strings.ToLower(strings.TrimPrefix(key, "CINDER_"))
		if strings.Contains(value, ",") {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return key, parts
		}
		return key, strings.TrimSpace(value)
	}}), nil)
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be parseable by net.Listen().
// Examples: ":8080", "127.0.0.1:8080"
func validIPPort(fl validator.FieldLevel) bool {
	addr := fl.Field().String()
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || port == "" {
		return false
	}
	if ip != "" && net.ParseIP(ip) == nil {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0 && portNum < 65536
}

// validDirNotExists checks that the provided value is a directory path, but does not ensure it exists.
// It disallows empty paths, ".", the root directory, and paths that traverse upwards (contain "..").
func validDirNotExists(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return false
	}
	cleaned := filepath.Clean(raw)
	if cleaned == "." || cleaned == string(os.PathSeparator) {
		return false
	}
	for _, part := range strings.Split(cleaned, string(os.PathSeparator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// registerValidators registers custom validation functions with the provided validator instance.
var registerValidators = func(v *validator.Validate) error {
	if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
		return err
	}
	return v.RegisterValidation("custom_path", validDirNotExists)
}

// Load loads the configuration by applying default values and overriding
// them with environment variables, then parses the scheduler interval and
// pepper keyring and validates the final result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, err
	}
	if err := envLoader(k); err != nil {
		return nil, err
	}

	var cfg Config
	err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.ComposeDecodeHookFunc(SecondsToDuration()),
		},
	})
	if err != nil {
		return nil, err
	}

	// scheduler.cleanup_cron is named as if it carried a cron expression,
	// but no cron-expression library is wired into this module; it is
	// honored as a plain duration interval between sweeps.
	interval, err := time.ParseDuration(cfg.SchedulerCron)
	if err != nil {
		return nil, fmt.Errorf("scheduler.cleanup_cron: %w", err)
	}
	cfg.SchedulerInterval = interval

	if err := loadPepperKeys(&cfg); err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidators(validate); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadPepperKeys scans the process environment for CINDER_PEPPER_HEX_<version>
// entries and CINDER_PEPPER_VERSION, building the versioned keyring the
// pepper service is constructed from.
func loadPepperKeys(cfg *Config) error {
	const prefix = "CINDER_PEPPER_HEX_"
	keys := make(map[uint16][]byte)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, prefix) {
			continue
		}
		versionStr := strings.TrimPrefix(name, prefix)
		version, err := strconv.ParseUint(versionStr, 10, 16)
		if err != nil {
			return fmt.Errorf("invalid pepper version suffix %q: %w", versionStr, err)
		}
		raw, err := hex.DecodeString(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("pepper key version %d is not valid hex: %w", version, err)
		}
		if len(raw) != pepper.KeySize {
			return fmt.Errorf("pepper key version %d must be %d bytes, got %d", version, pepper.KeySize, len(raw))
		}
		keys[uint16(version)] = raw
	}
	cfg.PepperKeys = keys

	if v := os.Getenv("CINDER_PEPPER_VERSION"); v != "" {
		version, err := strconv.ParseUint(strings.TrimSpace(v), 10, 16)
		if err != nil {
			return fmt.Errorf("CINDER_PEPPER_VERSION: %w", err)
		}
		cfg.PepperActiveVersion = uint16(version)
	}
	return nil
}

// SQLiteDSN returns a fixed hardened SQLite DSN derived from DataDir.
// WAL mode, foreign keys, busy timeout, and FULL synchronous are enforced.
func (c *Config) SQLiteDSN() string {
	dbPath := filepath.Join(c.DataDir, "cinder.db")
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL", dbPath)
}
