package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	bolt "go.etcd.io/bbolt"

	"github.com/jmcleod/learngate/audit"
	bboltstorage "github.com/jmcleod/learngate/storage/bbolt"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log tools",
	Long:  `Commands for inspecting the audit entries recorded by the server.`,
}

var (
	auditLimit  int
	auditEvents []string
	auditJSON   bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded audit entries, newest first",
	Long: `Reads the audit store in data_dir. The server holds the store's lock
while running; list waits up to a second for it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		repo, err := bboltstorage.NewRepositoryFromFile(filepath.Join(cfg.DataDir, auditDBFile),
			&bolt.Options{Timeout: time.Second, ReadOnly: true})
		if err != nil {
			return fmt.Errorf("failed to open audit storage: %w", err)
		}
		defer repo.Close()

		events := make([]audit.Event, 0, len(auditEvents))
		for _, e := range auditEvents {
			events = append(events, audit.Event(e))
		}
		entries, err := audit.NewStore(repo, cfg.Audit.Retention).List(auditLimit, events...)
		if err != nil {
			return err
		}
		if auditJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entries)
		}
		return printEntries(cmd.OutOrStdout(), entries)
	},
}

func printEntries(w io.Writer, entries []audit.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tREMOTE\tPATH\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Event, e.RemoteAddr, e.Path, details(e.Attrs))
	}
	return tw.Flush()
}

func details(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+attrs[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum number of entries; 0 for all")
	auditListCmd.Flags().StringSliceVar(&auditEvents, "event", nil, "Only show these event types")
	auditListCmd.Flags().BoolVar(&auditJSON, "json", false, "Output entries as JSON")
	auditListCmd.Flags().String("data-dir", "./data", "Directory for persistent data")
}
