package config

import "time"

// ApplyNSDefaults fills in zero-valued NS config fields with sensible
// defaults before file/env overrides are applied.
func ApplyNSDefaults(cfg *NSConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics, ":9090")

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.HeartbeatInterval == 0 {
		cfg.Server.HeartbeatInterval = 5 * time.Second
	}
	if cfg.Server.HeartbeatTimeout == 0 {
		cfg.Server.HeartbeatTimeout = 15 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.SearchCacheSize == 0 {
		cfg.Server.SearchCacheSize = 50
	}
	if cfg.Server.AdminAddr == "" {
		cfg.Server.AdminAddr = ":9092"
	}

	// Exec.Enabled defaults to false; this is a deliberate security gate,
	// not an oversight.
	if cfg.Exec.Timeout == 0 {
		cfg.Exec.Timeout = 5 * time.Second
	}
}

// ApplySSDefaults fills in zero-valued SS config fields with sensible
// defaults before file/env overrides are applied.
func ApplySSDefaults(cfg *SSConfig) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics, ":9091")

	if cfg.Server.StorageRoot == "" {
		cfg.Server.StorageRoot = "./data/storage"
	}
	if cfg.Server.BackupRoot == "" {
		cfg.Server.BackupRoot = "./data/backup"
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "disk"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig, defaultAddr string) {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
}
