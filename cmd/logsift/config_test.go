package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

func TestLoadConfig_AddressResolution(t *testing.T) {
	resetLogsiftEnv(t)

	tests := []struct {
		name        string
		configYAML  string
		wantHost    string
		wantTCPAddr string
		wantAPIAddr string
	}{
		{
			name: "defaults to localhost host",
			configYAML: `
tcp-port: 4100
api-port: 3100
`,
			wantHost:    "127.0.0.1",
			wantTCPAddr: "127.0.0.1:4100",
			wantAPIAddr: "127.0.0.1:3100",
		},
		{
			name: "host applies to derived tcp and api addresses",
			configYAML: `
host: 0.0.0.0
tcp-port: 4200
api-port: 3200
`,
			wantHost:    "0.0.0.0",
			wantTCPAddr: "0.0.0.0:4200",
			wantAPIAddr: "0.0.0.0:3200",
		},
		{
			name: "explicit addresses override host and ports",
			configYAML: `
host: 0.0.0.0
tcp-port: 4300
api-port: 3300
tcp-addr: 10.0.0.5:9999
api-addr: 10.0.0.5:8888
`,
			wantHost:    "0.0.0.0",
			wantTCPAddr: "10.0.0.5:9999",
			wantAPIAddr: "10.0.0.5:8888",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeTempConfig(t, tt.configYAML), nil)
			if err != nil {
				t.Fatalf("loadConfig returned error: %v", err)
			}
			if cfg.Host != tt.wantHost {
				t.Fatalf("Host = %q, want %q", cfg.Host, tt.wantHost)
			}
			if cfg.TCPAddr != tt.wantTCPAddr {
				t.Fatalf("TCPAddr = %q, want %q", cfg.TCPAddr, tt.wantTCPAddr)
			}
			if cfg.APIAddr != tt.wantAPIAddr {
				t.Fatalf("APIAddr = %q, want %q", cfg.APIAddr, tt.wantAPIAddr)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetLogsiftEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("ConfigPath = %q, want empty when no file exists", cfg.ConfigPath)
	}
	if want := filepath.Join(home, ".local", "share", "logsift", "logsift.duckdb"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if cfg.MinOccurrences != 3 || cfg.WindowMinutes != 5 {
		t.Errorf("analysis defaults = %d/%d, want 3/5", cfg.MinOccurrences, cfg.WindowMinutes)
	}
	if cfg.QueryTimeout != 30*time.Second || cfg.AnalysisWorkers != defaultAnalysisWorkers {
		t.Errorf("runtime defaults = %v/%d", cfg.QueryTimeout, cfg.AnalysisWorkers)
	}
	if cfg.ReportRetention != 30 || cfg.MaxBatchBytes != defaultMaxBatchBytes {
		t.Errorf("storage defaults = %d/%d", cfg.ReportRetention, cfg.MaxBatchBytes)
	}
	if !cfg.APIEnabled || !cfg.TCPEnabled {
		t.Error("api and tcp should be enabled by default")
	}
	if cfg.JournalEnabled {
		t.Error("journal should be disabled by default")
	}
	if want := filepath.Join(home, ".local", "share", "logsift", "intake.journal"); cfg.JournalPath != want {
		t.Errorf("JournalPath = %q, want %q", cfg.JournalPath, want)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	resetLogsiftEnv(t)

	tests := []struct {
		name         string
		configYAML   string
		errSubstring string
	}{
		{"tcp port", "tcp-port: 70000", "invalid tcp-port"},
		{"api port", "api-port: 0", "invalid api-port"},
		{"workers", "analysis-workers: 0", "invalid analysis-workers"},
		{"min occurrences", "min-occurrences: -2", "invalid min-occurrences"},
		{"window", "window-minutes: 0", "invalid window-minutes"},
		{"batch bytes", "max-batch-bytes: 0", "invalid max-batch-bytes"},
		{"retention", "report-retention: -1", "invalid report-retention"},
		{"journal path", "journal-enabled: true\njournal-path: \"\"", "journal-path is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeTempConfig(t, tt.configYAML), nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errSubstring) {
				t.Fatalf("error = %q, want substring %q", err.Error(), tt.errSubstring)
			}
		})
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	resetLogsiftEnv(t)
	path := writeTempConfig(t, `
window-minutes: 10
min-occurrences: 4
api-port: 3500
`)

	t.Setenv("LOGSIFT_WINDOW_MINUTES", "15")

	cmd := &cobra.Command{Use: "test"}
	addAnalysisFlags(cmd)
	cmd.Flags().Int("api-port", defaultAPIPort, "")
	if err := cmd.Flags().Parse([]string{"--min-occurrences", "7"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig(path, cmd.Flags())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.WindowMinutes != 15 {
		t.Errorf("WindowMinutes = %d, want env value 15", cfg.WindowMinutes)
	}
	if cfg.MinOccurrences != 7 {
		t.Errorf("MinOccurrences = %d, want flag value 7", cfg.MinOccurrences)
	}
	if cfg.APIPort != 3500 {
		t.Errorf("APIPort = %d, want file value 3500 over unset flag", cfg.APIPort)
	}
	if cfg.ConfigPath != path {
		t.Errorf("ConfigPath = %q, want %q", cfg.ConfigPath, path)
	}
}

func TestLoadConfig_ExpandsHomeInPaths(t *testing.T) {
	resetLogsiftEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := loadConfig(writeTempConfig(t, `
db-path: ~/data/reports.duckdb
journal-path: ~/data/intake.journal
`), nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if want := filepath.Join(home, "data", "reports.duckdb"); cfg.DBPath != want {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, want)
	}
	if want := filepath.Join(home, "data", "intake.journal"); cfg.JournalPath != want {
		t.Errorf("JournalPath = %q, want %q", cfg.JournalPath, want)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func resetLogsiftEnv(t *testing.T) {
	t.Helper()

	original := make(map[string]string)
	existed := make(map[string]bool)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "LOGSIFT_") {
			continue
		}
		original[key] = value
		existed[key] = true
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}

	t.Cleanup(func() {
		for key := range existed {
			if err := os.Unsetenv(key); err != nil {
				t.Fatalf("cleanup unset %s: %v", key, err)
			}
		}
		for key, value := range original {
			if err := os.Setenv(key, value); err != nil {
				t.Fatalf("cleanup restore %s: %v", key, err)
			}
		}
	})
}
