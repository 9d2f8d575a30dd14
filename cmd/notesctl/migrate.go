package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"opennotes/internal/notes/db"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations to the note table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, err := db.Migrate(cmd.Context(), &c.cfg.Postgres)
			if err != nil {
				return err
			}
			if version.Dirty {
				return fmt.Errorf("schema version %d is dirty; fix it manually before migrating again", version.Number)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d.\n", version.Number)
			return nil
		},
	}
}
