package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tinytelemetry/logsift/internal/logsource"
	"github.com/tinytelemetry/logsift/internal/tcpserver"
)

// NamedLogSource aliases the shared source abstraction to keep app-layer APIs explicit.
type NamedLogSource = logsource.LogSource

// InputSourcePlugin is a small plugin primitive for wiring log inputs.
type InputSourcePlugin interface {
	Name() string
	Enabled() bool
	Build(ctx context.Context) (NamedLogSource, error)
}

// InputPluginConfig defines runtime input selection.
type InputPluginConfig struct {
	TCPEnabled    bool
	TCPAddr       string
	MaxBatchBytes int
	Files         []string
}

func buildInputPlugins(cfg InputPluginConfig) []InputSourcePlugin {
	plugins := make([]InputSourcePlugin, 0, 2)
	plugins = append(plugins, tcpInputPlugin{
		addr:          cfg.TCPAddr,
		enabled:       cfg.TCPEnabled,
		maxBatchBytes: cfg.MaxBatchBytes,
	})
	plugins = append(plugins, fileInputPlugin{
		paths:         cfg.Files,
		maxBatchBytes: cfg.MaxBatchBytes,
	})
	return plugins
}

type tcpInputPlugin struct {
	addr          string
	enabled       bool
	maxBatchBytes int
}

func (p tcpInputPlugin) Name() string { return "tcp" }

func (p tcpInputPlugin) Enabled() bool { return p.enabled }

func (p tcpInputPlugin) Build(_ context.Context) (NamedLogSource, error) {
	server := tcpserver.NewServer(p.addr, tcpserver.ServerConfig{MaxBatchBytes: p.maxBatchBytes})
	if err := server.Start(); err != nil {
		return nil, fmt.Errorf("start tcp server: %w", err)
	}
	return logsource.NewTCPSource(server), nil
}

type fileInputPlugin struct {
	paths         []string
	maxBatchBytes int
}

func (p fileInputPlugin) Name() string { return "file" }

func (p fileInputPlugin) Enabled() bool { return len(p.paths) > 0 }

func (p fileInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	for _, path := range p.paths {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("file input: %w", err)
		}
	}
	return logsource.NewFileSource(ctx, p.paths, p.maxBatchBytes), nil
}

type stdinInputPlugin struct {
	maxBatchBytes int
}

func (p stdinInputPlugin) Name() string { return "stdin" }

func (p stdinInputPlugin) Enabled() bool {
	return stdinIsPiped()
}

func (p stdinInputPlugin) Build(ctx context.Context) (NamedLogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.StdinConfig{MaxBatchBytes: p.maxBatchBytes}), nil
}

func stdinIsPiped() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
