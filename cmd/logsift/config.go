package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/tinytelemetry/logsift/internal/model"
)

const (
	defaultBindHost        = "127.0.0.1"
	defaultTCPPort         = 4000
	defaultAPIPort         = 3000
	defaultQueryTimeout    = 30 * time.Second
	defaultMuxBufferSize   = DefaultMuxBuffer
	defaultMaxBatchBytes   = 16 * 1024 * 1024
	defaultAnalysisWorkers = 4
	defaultReportRetention = 30 // days, 0 = disabled
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Host            string        `mapstructure:"host"`
	TCPEnabled      bool          `mapstructure:"tcp-enabled"`
	TCPPort         int           `mapstructure:"tcp-port"`
	TCPAddr         string        `mapstructure:"tcp-addr"`
	MuxBufferSize   int           `mapstructure:"mux-buffer-size"`
	DBPath          string        `mapstructure:"db-path"`
	APIEnabled      bool          `mapstructure:"api-enabled"`
	APIPort         int           `mapstructure:"api-port"`
	APIAddr         string        `mapstructure:"api-addr"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
	MaxBatchBytes   int           `mapstructure:"max-batch-bytes"`
	AnalysisWorkers int           `mapstructure:"analysis-workers"`
	MinOccurrences  int           `mapstructure:"min-occurrences"`
	WindowMinutes   int           `mapstructure:"window-minutes"`
	ReportRetention int           `mapstructure:"report-retention"`
	JournalEnabled  bool          `mapstructure:"journal-enabled"`
	JournalPath     string        `mapstructure:"journal-path"`
	ConfigPath      string        `mapstructure:"-"` // not from config file
}

// loadConfig layers defaults, the YAML config file, LOGSIFT_* env vars and
// explicitly set command-line flags, in increasing priority.
func loadConfig(configPath string, flags *pflag.FlagSet) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	defaultDBPath := filepath.Join(home, ".local", "share", "logsift", "logsift.duckdb")
	defaultJournalPath := filepath.Join(home, ".local", "share", "logsift", "intake.journal")

	v := viper.New()
	v.SetEnvPrefix("LOGSIFT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("host", defaultBindHost)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-port", defaultTCPPort)
	v.SetDefault("mux-buffer-size", defaultMuxBufferSize)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("max-batch-bytes", defaultMaxBatchBytes)
	v.SetDefault("analysis-workers", defaultAnalysisWorkers)
	v.SetDefault("min-occurrences", model.DefaultMinOccurrences)
	v.SetDefault("window-minutes", model.DefaultWindowMinutes)
	v.SetDefault("report-retention", defaultReportRetention)
	v.SetDefault("journal-enabled", false)
	v.SetDefault("journal-path", defaultJournalPath)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "logsift", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return cfg, fmt.Errorf("binding flags: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if _, err := os.Stat(v.ConfigFileUsed()); err == nil {
		cfg.ConfigPath = v.ConfigFileUsed()
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	// Expand ~ in paths
	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.JournalPath = expandHome(home, cfg.JournalPath)

	if cfg.Host == "" {
		cfg.Host = defaultBindHost
	}
	if cfg.TCPAddr == "" {
		cfg.TCPAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.TCPPort))
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func (cfg appConfig) validate() error {
	if cfg.TCPPort <= 0 || cfg.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp-port: %d", cfg.TCPPort)
	}
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.MaxBatchBytes <= 0 {
		return fmt.Errorf("invalid max-batch-bytes: %d", cfg.MaxBatchBytes)
	}
	if cfg.AnalysisWorkers <= 0 {
		return fmt.Errorf("invalid analysis-workers: %d", cfg.AnalysisWorkers)
	}
	if cfg.MinOccurrences <= 0 {
		return fmt.Errorf("invalid min-occurrences: %d", cfg.MinOccurrences)
	}
	if cfg.WindowMinutes <= 0 {
		return fmt.Errorf("invalid window-minutes: %d", cfg.WindowMinutes)
	}
	if cfg.ReportRetention < 0 {
		return fmt.Errorf("invalid report-retention: %d", cfg.ReportRetention)
	}
	if cfg.JournalEnabled && strings.TrimSpace(cfg.JournalPath) == "" {
		return errors.New("journal-path is required when journal-enabled is set")
	}
	return nil
}
