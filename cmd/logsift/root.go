package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/logsift/internal/model"
)

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "logsift",
		Short: "logsift - log analysis engine",
		Long: `logsift turns raw container log text into a diagnostic report: extracted
error messages, embedded JSON entries, parsed timestamps, recurring line
patterns and per-window frequency/error-rate statistics.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default is $HOME/.config/logsift/config.yml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newAnalyzeCmd(&configPath),
		newVersionCmd(),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and TCP intake, storing a report per received log blob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runServer(cfg, files)
		},
	}

	f := cmd.Flags()
	f.String("host", defaultBindHost, "bind host for derived API and TCP addresses")
	f.Int("api-port", defaultAPIPort, "HTTP API port")
	f.Int("tcp-port", defaultTCPPort, "TCP intake port")
	f.Bool("api-enabled", true, "serve the HTTP API")
	f.Bool("tcp-enabled", true, "accept log blobs over TCP")
	f.String("db-path", "", "DuckDB report store path")
	f.Int("analysis-workers", defaultAnalysisWorkers, "concurrent analyses")
	f.Int("report-retention", defaultReportRetention, "days to keep reports, 0 disables cleanup")
	f.Bool("journal-enabled", false, "journal received batches for crash-safe replay")
	addAnalysisFlags(cmd)
	f.StringSliceVar(&files, "file", nil, "log files to analyze at startup (repeatable)")
	return cmd
}

func addAnalysisFlags(cmd *cobra.Command) {
	cmd.Flags().Int("min-occurrences", model.DefaultMinOccurrences, "minimum repetitions for a reported pattern")
	cmd.Flags().Int("window-minutes", model.DefaultWindowMinutes, "frequency window size in minutes")
}

func newAnalyzeCmd(configPath *string) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze a log file (or stdin) and print the report",
		Long: `Analyze reads log text from the given file, or from stdin when no file is
given, and prints the combined report.

Examples:
  logsift analyze pod.log
  kubectl logs my-pod | logsift analyze --output json
  logsift analyze pod.log --window-minutes 1 --store`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.Flags())
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runAnalyze(cmd, args, cfg, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "text", "output format: text, json")
	f.BoolVar(&opts.Store, "store", false, "persist the report in the DuckDB store")
	f.StringVar(&opts.Source, "source", "", "source label for the report (default: file name or stdin)")
	f.IntVar(&opts.Top, "top", 10, "max entries per section in text output")
	f.String("db-path", "", "DuckDB report store path")
	addAnalysisFlags(cmd)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			gv := goVersion
			if gv == "unknown" {
				gv = runtime.Version()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "logsift - Log Analysis Engine\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			fmt.Fprintf(out, "  Go version: %s\n", gv)
		},
	}
}
