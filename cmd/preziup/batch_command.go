package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"preziup/internal/batch"
	"preziup/internal/config"
	"preziup/internal/fileutil"
	"preziup/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var (
		flags    upgradeFlags
		outDir   string
		listFile string
		workers  int
		jsonOut  bool
	)

	cmd := &cobra.Command{
		Use:   "batch [source...]",
		Short: "Upgrade many documents concurrently",
		Long: "Upgrade every source (local paths or URIs) and write each result to the output\n" +
			"directory. A failing document does not stop the others.",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := append([]string(nil), args...)
			if strings.TrimSpace(listFile) != "" {
				listed, err := readSourceList(listFile)
				if err != nil {
					return err
				}
				sources = append(sources, listed...)
			}
			if len(sources) == 0 {
				return services.Wrap(services.ErrInputNotFound, "batch", "sources", "no sources given (pass arguments or --from)", nil)
			}
			for _, s := range sources {
				if s == "-" {
					return services.Wrap(services.ErrConfiguration, "batch", "sources", "standard input is not supported in batch mode", nil)
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			n := cfg.Batch.Workers
			if cmd.Flags().Changed("workers") {
				n = workers
			}

			dir, err := config.ExpandPath(outDir)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory %q: %w", dir, err)
			}

			sess, err := ctx.newSession(cmd, &flags)
			if err != nil {
				return err
			}
			defer sess.Close()

			ext := sess.encode.Format.Extension()
			upgradeOne := func(ctx context.Context, index int, source string) (batch.Outcome, error) {
				res, err := sess.upgradeSource(ctx, source, nil)
				if err != nil {
					return batch.Outcome{}, err
				}
				data, err := sess.encodeDocument(res.Document)
				if err != nil {
					return batch.Outcome{}, err
				}
				target := filepath.Join(dir, batch.OutputName(index, source, ext))
				if err := fileutil.WriteVerified(target, data, 0o644); err != nil {
					return batch.Outcome{}, fmt.Errorf("write %s: %w", target, err)
				}
				typ, _ := res.Document["type"].(string)
				return batch.Outcome{
					Output:   target,
					Type:     typ,
					Warnings: len(res.Warnings),
					Failures: len(res.Failures),
					Cached:   res.Cached,
				}, nil
			}

			outcomes := batch.Run(cmd.Context(), sources, upgradeOne, n, batch.WithLogger(sess.logger))
			if jsonOut {
				if err := writeJSON(cmd, newBatchReport(outcomes)); err != nil {
					return err
				}
			} else {
				printBatchTable(cmd, outcomes)
			}
			return batchError(outcomes)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Directory receiving upgraded documents")
	cmd.Flags().StringVar(&listFile, "from", "", "File listing one source per line")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent upgrades (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the batch report as JSON")
	_ = cmd.MarkFlagRequired("out-dir")
	return cmd
}

// readSourceList reads one source per line; blank lines and # comments are skipped.
func readSourceList(path string) ([]string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, services.Wrap(services.ErrInputNotFound, "batch", "read list", expanded, err)
	}
	defer f.Close()

	var sources []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sources = append(sources, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", expanded, err)
	}
	return sources, nil
}

func printBatchTable(cmd *cobra.Command, outcomes []batch.Outcome) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(outcomes))
	for i, o := range outcomes {
		status, kind := "ok", statusOK
		detail := o.Output
		switch {
		case o.Err != nil:
			status, kind = "failed", statusError
			detail = o.Err.Error()
		case o.Failures > 0:
			status, kind = "partial", statusWarn
		case o.Cached:
			status, kind = "cached", statusInfo
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			o.Source,
			o.Type,
			statusCell(status, kind, colorize),
			strconv.Itoa(o.Warnings),
			strconv.Itoa(o.Failures),
			o.Elapsed.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Source", "Type", "Status", "Warnings", "Omitted", "Elapsed", "Output"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))

	s := batch.Summarize(outcomes)
	fmt.Fprintf(out, "Upgraded %d of %d documents (%d cached, %d warnings)", s.Succeeded, s.Total, s.Cached, s.Warnings)
	if s.Failed > 0 {
		fmt.Fprintf(out, "; %d failed", s.Failed)
	}
	fmt.Fprintln(out)
}

type batchReportEntry struct {
	Source    string `json:"source"`
	Output    string `json:"output,omitempty"`
	Type      string `json:"type,omitempty"`
	Warnings  int    `json:"warnings"`
	Omitted   int    `json:"omitted"`
	Cached    bool   `json:"cached"`
	ElapsedMS int64  `json:"elapsed_ms"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

type batchReport struct {
	Summary batch.Summary      `json:"summary"`
	Results []batchReportEntry `json:"results"`
}

func newBatchReport(outcomes []batch.Outcome) batchReport {
	report := batchReport{
		Summary: batch.Summarize(outcomes),
		Results: make([]batchReportEntry, 0, len(outcomes)),
	}
	for _, o := range outcomes {
		entry := batchReportEntry{
			Source:    o.Source,
			Output:    o.Output,
			Type:      o.Type,
			Warnings:  o.Warnings,
			Omitted:   o.Failures,
			Cached:    o.Cached,
			ElapsedMS: o.Elapsed.Milliseconds(),
		}
		if o.Err != nil {
			entry.Error = o.Err.Error()
			entry.ErrorKind = services.Kind(o.Err)
		}
		report.Results = append(report.Results, entry)
	}
	return report
}

// batchError reports failed documents; the first failure decides the exit code.
func batchError(outcomes []batch.Outcome) error {
	var first error
	failed := 0
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		failed++
		if first == nil {
			first = o.Err
		}
	}
	if first == nil {
		return nil
	}
	if errors.Is(first, context.Canceled) {
		return first
	}
	return fmt.Errorf("%d of %d documents failed: %w", failed, len(outcomes), first)
}
