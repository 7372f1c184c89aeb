package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"preziup/internal/doccache"
	"preziup/internal/fileutil"
	"preziup/internal/logging"
	"preziup/internal/services"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the document cache",
	}

	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))

	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document cache usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, note, err := openCacheStore(ctx)
			out := cmd.OutOrStdout()
			if note != "" && !jsonOut {
				fmt.Fprintln(out, note)
			}
			if err != nil || store == nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, stats)
			}

			fmt.Fprintf(out, "Cache:  %s\n", store.Path())
			if free, err := fileutil.FreeBytes(filepath.Dir(store.Path())); err == nil {
				fmt.Fprintf(out, "Disk:   %s free\n", humanize.IBytes(free))
			}
			if len(stats) == 0 {
				fmt.Fprintln(out, "Entries: none")
				return nil
			}
			rows := make([][]string, 0, len(stats))
			for _, st := range stats {
				rows = append(rows, []string{
					st.Namespace,
					humanize.Comma(st.Entries),
					humanize.IBytes(uint64(st.StoredBytes)),
					humanize.IBytes(uint64(st.RawBytes)),
					humanize.Time(st.Newest),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Namespace", "Entries", "Stored", "Raw", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print statistics as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var namespace string
	var all bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ns := strings.TrimSpace(namespace)
			switch {
			case all:
				ns = ""
			case ns == doccache.NamespaceSource, ns == doccache.NamespaceUpgraded:
			case ns == "":
				return services.Wrap(services.ErrConfiguration, "cache", "clear", "pass --namespace source|upgraded or --all", nil)
			default:
				return services.Wrap(services.ErrConfiguration, "cache", "clear", fmt.Sprintf("unknown namespace %q", ns), nil)
			}

			store, note, err := openCacheStore(ctx)
			if note != "" {
				fmt.Fprintln(cmd.OutOrStdout(), note)
			}
			if err != nil || store == nil {
				return err
			}
			defer store.Close()

			removed, err := store.Purge(cmd.Context(), ns)
			if err != nil {
				return err
			}
			label := ns
			if label == "" {
				label = "all namespaces"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s cached documents (%s)\n", humanize.Comma(removed), label)
			return nil
		},
	}
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "", "Namespace to clear: source or upgraded")
	cmd.Flags().BoolVar(&all, "all", false, "Clear every namespace")
	return cmd
}

// openCacheStore opens the configured cache database. A missing database is
// not an error; the note explains what was found instead.
func openCacheStore(ctx *commandContext) (*doccache.Store, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	path := strings.TrimSpace(cfg.Cache.Path)
	if path == "" {
		return nil, "Document cache path is not configured", nil
	}
	note := ""
	if !cfg.Cache.Enabled {
		note = "Document cache is disabled (set [cache] enabled = true in config.toml)"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, strings.TrimSpace(note + "\nNo cache database at " + path), nil
		}
		return nil, note, fmt.Errorf("inspect cache: %w", err)
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, note, err
	}
	store, err := doccache.Open(path, append(doccache.OptionsFromConfig(cfg.Cache), doccache.WithLogger(logging.NewComponentLogger(logger, "cli-cache")))...)
	if err != nil {
		return nil, note, err
	}
	return store, note, nil
}
