package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"opennotes/internal/notes/app"
	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/services"
)

func newAddCmd(c *cli) *cobra.Command {
	var color string

	cmd := &cobra.Command{
		Use:   "add <content>",
		Short: "Insert a note and announce it on the change channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := entities.ParseColor(color)
			if err != nil {
				return err
			}
			content := strings.Join(args, " ")
			if entities.IsBlank(content) {
				return app.ErrBlankContent
			}

			return c.withStore(cmd.Context(), func(store services.RemoteStore) error {
				note, err := store.Insert(cmd.Context(), content, parsed)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), note.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&color, "color", "c", "", "Palette color ("+strings.Join(entities.PaletteNames(), ", ")+")")
	return cmd
}
