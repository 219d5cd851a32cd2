package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/logsift/internal/analysis"
	"github.com/tinytelemetry/logsift/internal/duckdb"
	"github.com/tinytelemetry/logsift/internal/httpserver"
	"github.com/tinytelemetry/logsift/internal/journal"
)

// runServer starts the headless analysis service with the HTTP API.
func runServer(cfg appConfig, files []string) error {
	cleanupLogger := configureRuntimeLogger()
	defer cleanupLogger()

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	// Start retention cleaner for automatic report expiry
	retentionCleaner := duckdb.NewRetentionCleaner(store, duckdb.RetentionConfig{
		RetentionDays: cfg.ReportRetention,
	})
	if retentionCleaner != nil {
		defer retentionCleaner.Stop()
	}

	engine := analysis.New(analysis.Options{
		MinOccurrences: cfg.MinOccurrences,
		WindowMinutes:  cfg.WindowMinutes,
	})

	proc := &batchProcessor{engine: engine, writer: store}

	// Open local intake journal for crash-safe replay of unprocessed batches.
	if cfg.JournalEnabled {
		intakeJournal, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open intake journal: %w", err)
		}
		defer intakeJournal.Close()
		proc.journal = intakeJournal
		if _, err := proc.replay(context.Background()); err != nil {
			return fmt.Errorf("failed to replay intake journal: %w", err)
		}
	}

	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, engine, store, httpserver.Config{
			MaxBodyBytes: int64(cfg.MaxBatchBytes),
		})
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	// Set up context and signal handling before errgroup
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case <-sigCh:
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	plugins := buildInputPlugins(InputPluginConfig{
		TCPEnabled:    cfg.TCPEnabled,
		TCPAddr:       cfg.TCPAddr,
		MaxBatchBytes: cfg.MaxBatchBytes,
		Files:         files,
	})

	sources := make([]NamedLogSource, 0, len(plugins))
	for _, plugin := range plugins {
		if !plugin.Enabled() {
			continue
		}
		src, err := plugin.Build(ctx)
		if err != nil {
			log.Printf("Error initializing input plugin %q: %v", plugin.Name(), err)
			continue
		}
		sources = append(sources, src)
	}

	if len(sources) == 0 {
		// Fall back to stdin if piped
		fallback := stdinInputPlugin{maxBatchBytes: cfg.MaxBatchBytes}
		if fallback.Enabled() {
			if src, err := fallback.Build(ctx); err == nil {
				sources = append(sources, src)
			}
		}
	}

	mux := NewSourceMultiplexer(ctx, sources, cfg.MuxBufferSize)
	mux.Start()

	printStartupBanner(cfg, sourceNames(sources))

	g, gctx := errgroup.WithContext(ctx)

	// Analysis loop: batches fan out to a bounded worker group. In-flight
	// analyses finish during shutdown.
	if mux.HasSources() {
		g.Go(func() error {
			workers := new(errgroup.Group)
			workers.SetLimit(cfg.AnalysisWorkers)
			workCtx := context.WithoutCancel(gctx)
			for batch := range mux.Batches() {
				seq := proc.record(batch)
				workers.Go(func() error {
					proc.process(workCtx, seq, batch)
					return nil
				})
			}
			return workers.Wait()
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("server: errgroup exited with error: %v", err)
	}

	cancel()
	mux.Stop()

	signal.Stop(sigCh)

	return nil
}

func sourceNames(sources []NamedLogSource) []string {
	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	return names
}

func configureRuntimeLogger() func() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	home, err := os.UserHomeDir()
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logDir := filepath.Join(home, ".local", "state", "logsift")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	logPath := filepath.Join(logDir, "logsift.log")
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		return func() {}
	}

	log.SetOutput(f)
	return func() {
		_ = f.Close()
	}
}

func printStartupBanner(cfg appConfig, inputs []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render("    logsift")

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Intake"), "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if cfg.TCPEnabled {
		lines = append(lines, fmt.Sprintf("    %s  TCP Intake     %s", check, cyan.Render(cfg.TCPAddr)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  TCP Intake     %s", dot, dim.Render("disabled")))
	}
	if len(inputs) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Sources        %s", check, dim.Render(strings.Join(inputs, ", "))))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  Reports        %s", check, dim.Render(shortenPath(cfg.DBPath))))
	if cfg.JournalEnabled {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", check, dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Journal        %s", dot, dim.Render("disabled")))
	}
	if cfg.ReportRetention > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(strconv.Itoa(cfg.ReportRetention)+" days")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("disabled")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Analysis"), "")
	lines = append(lines, fmt.Sprintf("    %s  Workers        %s", check, dim.Render(strconv.Itoa(cfg.AnalysisWorkers))))
	lines = append(lines, fmt.Sprintf("    %s  Patterns       %s", check, dim.Render(fmt.Sprintf(">= %d occurrences", cfg.MinOccurrences))))
	lines = append(lines, fmt.Sprintf("    %s  Windows        %s", check, dim.Render(fmt.Sprintf("%d min", cfg.WindowMinutes))))
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
