package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"preziup/internal/config"
	"preziup/internal/fileutil"
	"preziup/internal/services"
	"preziup/internal/upgrade"
)

func newUpgradeCommand(ctx *commandContext) *cobra.Command {
	var (
		flags      upgradeFlags
		outputPath string
		report     bool
		quiet      bool
	)

	cmd := &cobra.Command{
		Use:   "upgrade <source>",
		Short: "Upgrade one Presentation 2.x document",
		Long: "Upgrade one document read from a local path, a URI, or standard input (\"-\").\n" +
			"The upgraded document is written to stdout unless --output is given.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.newSession(cmd, &flags)
			if err != nil {
				return err
			}
			defer sess.Close()

			res, err := sess.upgradeSource(cmd.Context(), args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if !quiet {
				printDiagnostics(cmd.ErrOrStderr(), res)
			}

			if report {
				return writeJSON(cmd, newUpgradeReport(args[0], res))
			}

			data, err := sess.encodeDocument(res.Document)
			if err != nil {
				return err
			}
			target := strings.TrimSpace(outputPath)
			if target == "" || target == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			target, err = config.ExpandPath(target)
			if err != nil {
				return err
			}
			if err := fileutil.WriteAtomic(target, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}
			if !quiet {
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", target)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the upgraded document to this file")
	cmd.Flags().BoolVar(&report, "report", false, "Print warnings and failures as JSON instead of the document")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print warnings and failures")
	return cmd
}

// printDiagnostics lists warnings and omitted sub-trees, one per line.
func printDiagnostics(out io.Writer, res *upgrade.Result) {
	for _, w := range res.Warnings {
		fmt.Fprintf(out, "warning: %s [%s] %s\n", displayPath(w.Path), w.Code, w.Message)
	}
	for _, f := range res.Failures {
		fmt.Fprintf(out, "omitted: %s [%s] %v\n", displayPath(f.Path), services.Kind(f.Err), f.Err)
	}
}

func displayPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

type upgradeReport struct {
	Source   string               `json:"source"`
	ID       any                  `json:"id,omitempty"`
	Type     any                  `json:"type,omitempty"`
	Cached   bool                 `json:"cached"`
	Warnings []upgrade.Warning    `json:"warnings"`
	Failures []*upgrade.PathError `json:"failures"`
}

func newUpgradeReport(source string, res *upgrade.Result) upgradeReport {
	r := upgradeReport{
		Source:   source,
		ID:       res.Document["id"],
		Type:     res.Document["type"],
		Cached:   res.Cached,
		Warnings: res.Warnings,
		Failures: res.Failures,
	}
	if r.Warnings == nil {
		r.Warnings = []upgrade.Warning{}
	}
	if r.Failures == nil {
		r.Failures = []*upgrade.PathError{}
	}
	return r
}
