package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"opennotes/internal/notes/ports/services"
)

// ErrPurgeNotConfirmed возвращается, если purge запущен без --yes.
var ErrPurgeNotConfirmed = errors.New("purge deletes every note; rerun with --yes to confirm")

func newPurgeCmd(c *cli) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every note and announce each deletion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return ErrPurgeNotConfirmed
			}
			return c.withStore(cmd.Context(), func(store services.RemoteStore) error {
				deleted, err := store.DeleteAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d notes.\n", deleted)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deleting every note")
	return cmd
}
