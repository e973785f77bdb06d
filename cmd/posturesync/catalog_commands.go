package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"posturesync/internal/catalog"
	"posturesync/internal/ipc"
	"posturesync/internal/store"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Posture step catalog utilities",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List active posture steps in workflow order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				steps, err := client.CatalogList()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(steps) == 0 {
					fmt.Fprintln(stdout, "Catalog is empty; run `posturesync catalog seed`")
					return nil
				}
				fmt.Fprintln(stdout, catalogTable(steps))
				return nil
			})
		},
	}

	// Seed works directly against the database so the catalog can be
	// prepared before the daemon ever runs.
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert the default posture steps if the catalog is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			inserted, err := catalog.New(st).Seed(cmd.Context())
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			stdout := cmd.OutOrStdout()
			if inserted == 0 {
				fmt.Fprintln(stdout, "Catalog already seeded")
				return nil
			}
			fmt.Fprintf(stdout, "Seeded %d posture steps\n", inserted)
			return nil
		},
	}

	catalogCmd.AddCommand(listCmd)
	catalogCmd.AddCommand(seedCmd)
	return catalogCmd
}
