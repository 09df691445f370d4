// Package config loads naming-server and storage-server configuration from
// an optional YAML file layered over built-in defaults, and validates it.
// CLI flags are not read here; commands apply their own flag overrides
// after loading. The viper instance enables AutomaticEnv with the DFS
// prefix but sets no key replacer and binds no keys, so environment
// variables such as DFS_SERVER_PORT do not override settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/dfs/internal/bytesize"
)

// NSConfig is the naming server's static configuration.
type NSConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" validate:"required"`
	Server  NSServerConfig `mapstructure:"server" yaml:"server" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Exec    ExecConfig    `mapstructure:"exec" yaml:"exec"`
}

// NSServerConfig controls the naming server's listener and timing knobs.
type NSServerConfig struct {
	// Port is the fixed TCP port the naming server listens on.
	Port int `mapstructure:"port" yaml:"port" validate:"required,gt=0"`

	// HeartbeatInterval is how often the heartbeat monitor probes each SS.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" yaml:"heartbeat_interval" validate:"required,gt=0"`

	// HeartbeatTimeout is how long an SS may go unresponsive before being
	// marked failed.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" yaml:"heartbeat_timeout" validate:"required,gt=0"`

	// ShutdownTimeout bounds graceful connection draining on SHUTDOWN.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// SearchCacheSize bounds the number of cached search results kept in
	// memory before the oldest entry is evicted.
	SearchCacheSize int `mapstructure:"search_cache_size" yaml:"search_cache_size" validate:"required,gt=0"`

	// AdminAddr is the listen address for the admin HTTP API (status, SS
	// list, shutdown, metrics). Empty disables it.
	AdminAddr string `mapstructure:"admin_addr" yaml:"admin_addr"`
}

// ExecConfig gates the EXEC opcode, a deliberate remote-code-execution
// trust hole in the source protocol; it defaults to disabled.
type ExecConfig struct {
	// Enabled must be explicitly set true to allow EXEC requests at all.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Sandbox, when Enabled is true, runs the uploaded script with a
	// minimal environment (only PATH=/usr/bin:/bin) instead of inheriting
	// the naming server's environment.
	Sandbox bool `mapstructure:"sandbox" yaml:"sandbox"`

	// Timeout bounds how long an EXEC subprocess may run before being
	// killed.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"required,gt=0"`
}

// SSConfig is a storage server's static configuration.
type SSConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" validate:"required"`
	Server  SSServerConfig `mapstructure:"server" yaml:"server" validate:"required"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
}

// SSServerConfig controls a storage server's identity, listeners, and
// on-disk roots.
type SSServerConfig struct {
	// AdvertiseIP is the address the SS reports to the naming server on
	// REGISTER_SS, overriding local interface auto-discovery. Needed
	// whenever the SS isn't reachable on the address its local interfaces
	// would suggest (containers, multi-homed hosts, NAT).
	AdvertiseIP string `mapstructure:"advertise_ip" yaml:"advertise_ip"`

	StorageRoot string `mapstructure:"storage_root" yaml:"storage_root" validate:"required"`
	BackupRoot  string `mapstructure:"backup_root" yaml:"backup_root" validate:"required"`

	// MaxFileBytes caps the size a single file's content may grow to on
	// this storage server; a WRITE commit that would exceed it fails
	// instead of landing on disk. Accepts human-readable sizes ("500Mi",
	// "2GB"); zero means unlimited.
	MaxFileBytes bytesize.ByteSize `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
}

// StoreConfig selects and configures the content-storage backend.
type StoreConfig struct {
	// Backend selects the ContentStore implementation: "disk" (default) or
	// "s3".
	Backend string `mapstructure:"backend" yaml:"backend" validate:"omitempty,oneof=disk s3"`

	S3 S3StoreConfig `mapstructure:"s3" yaml:"s3"`
}

// S3StoreConfig configures the optional S3-compatible content backend.
type S3StoreConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
}

// LoggingConfig controls logger output, shared between NS and SS.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
	Path    string `mapstructure:"path" yaml:"path"`
}

var validate = validator.New()

// LoadNS reads naming-server configuration from the given file path (if
// non-empty) over the defaults, and validates the result. Environment
// variables do not override settings (see the package doc).
func LoadNS(path string) (*NSConfig, error) {
	v := newViper("DFS")
	cfg := &NSConfig{}
	ApplyNSDefaults(cfg)

	if err := loadInto(v, path, cfg); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid naming server configuration: %w", err)
	}
	return cfg, nil
}

// LoadSS reads storage-server configuration from the given file path (if
// non-empty) over the defaults, and validates the result. Environment
// variables do not override settings (see the package doc).
func LoadSS(path string) (*SSConfig, error) {
	v := newViper("DFS")
	cfg := &SSConfig{}
	ApplySSDefaults(cfg)

	if err := loadInto(v, path, cfg); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: invalid storage server configuration: %w", err)
	}
	return cfg, nil
}

func newViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}

func loadInto(v *viper.Viper, path string, out any) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	)
	if err := v.Unmarshal(out, viper.DecodeHook(decodeHook)); err != nil {
		return fmt.Errorf("config: decode: %w", err)
	}
	return nil
}

// WatchFile invokes onChange whenever the backing config file is modified on
// disk, so deployments can pick up NS/SS-level tuning (log level, cache
// size) without a restart. It does not itself re-validate; callers should
// reload via LoadNS/LoadSS and bail out on error rather than apply a bad
// config.
func WatchFile(path string, onChange func()) (*fsnotify.Watcher, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				onChange()
			}
		}
	}()

	return watcher, nil
}
