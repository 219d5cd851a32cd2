package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/logsift/internal/analysis"
	"github.com/tinytelemetry/logsift/internal/duckdb"
	"github.com/tinytelemetry/logsift/internal/logsource"
	"github.com/tinytelemetry/logsift/internal/model"
)

// analyzeOptions are the analyze flags that are not part of appConfig.
type analyzeOptions struct {
	Output string
	Store  bool
	Source string
	Top    int
}

var errNoInput = errors.New("no input: pass a log file or pipe logs on stdin")

func runAnalyze(cmd *cobra.Command, args []string, cfg appConfig, opts analyzeOptions) error {
	if opts.Output != "text" && opts.Output != "json" {
		return fmt.Errorf("invalid output format %q (want text or json)", opts.Output)
	}

	batch, err := readAnalyzeInput(cmd.InOrStdin(), args, cfg.MaxBatchBytes)
	if err != nil {
		return err
	}
	if opts.Source != "" {
		batch.Source = opts.Source
	}

	engine := analysis.New(analysis.Options{
		MinOccurrences: cfg.MinOccurrences,
		WindowMinutes:  cfg.WindowMinutes,
	})
	report, err := engine.Analyze(cmd.Context(), batch.Source, batch.Text)
	if err != nil {
		return err
	}

	if opts.Store {
		if err := storeReport(cfg, report); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "stored report %s in %s\n", report.ID, shortenPath(cfg.DBPath))
	}

	return writeReport(cmd.OutOrStdout(), report, opts)
}

// readAnalyzeInput reads the file named in args, or stdin when args is empty.
// stdin is read only when it is piped, so an interactive run fails fast.
func readAnalyzeInput(stdin io.Reader, args []string, maxBytes int) (model.LogBatch, error) {
	if len(args) > 0 {
		batch, err := logsource.ReadFile(args[0], maxBytes)
		if err != nil {
			return batch, fmt.Errorf("reading %s: %w", args[0], err)
		}
		return batch, nil
	}
	if stdin == nil {
		return model.LogBatch{}, errNoInput
	}
	if f, ok := stdin.(*os.File); ok && f == os.Stdin && !stdinIsPiped() {
		return model.LogBatch{}, errNoInput
	}
	return logsource.ReadBatch(stdin, "stdin", maxBytes)
}

func storeReport(cfg appConfig, report *model.Report) error {
	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()
	if err := store.SaveReport(report); err != nil {
		return fmt.Errorf("storing report: %w", err)
	}
	return nil
}

func writeReport(w io.Writer, report *model.Report, opts analyzeOptions) error {
	if opts.Output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := io.WriteString(w, renderReport(report, opts.Top))
	return err
}
