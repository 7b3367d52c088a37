// Command stylesync loads communication styles and system personas from a
// YAML seed file into the persona catalog.
//
// Usage:
//
//	stylesync sync config/styles.yaml --db lifestory.db
//	stylesync list
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lifestory-agent/internal/catalog"
)

var (
	dsn    string
	dryRun bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "stylesync",
	Short:         "Manage the communication style catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync <seed.yaml>",
	Short: "Upsert styles by key and system personas by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("stylesync: read seed: %w", err)
		}
		seed, err := parseSeed(data)
		if err != nil {
			return err
		}
		if dryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "seed OK: %d styles, %d personas\n", len(seed.Styles), len(seed.Personas))
			return nil
		}

		store, err := catalog.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := applySeed(cmd.Context(), store, seed)
		if err != nil {
			return err
		}
		slog.Info("catalog synced",
			"dsn", dsn,
			"styles", res.Styles,
			"personasCreated", res.PersonasCreated,
			"personasUpdated", res.PersonasUpdated)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog styles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := catalog.Open(dsn)
		if err != nil {
			return err
		}
		defer store.Close()

		styles, err := store.ListStyles(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tVISIBLE\tSORT")
		for _, s := range styles {
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", s.Key, s.DisplayName, s.Visible, s.SortOrder)
		}
		return w.Flush()
	},
}

func init() {
	defaultDSN := os.Getenv("CATALOG_DSN")
	if defaultDSN == "" {
		defaultDSN = "lifestory.db"
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "db", defaultDSN, "Catalog database DSN (env CATALOG_DSN)")
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the seed file without writing")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.SetContext(context.Background())
}
