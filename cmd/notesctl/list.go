package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"opennotes/internal/notes/app"
	"opennotes/internal/notes/domain/entities"
	"opennotes/internal/notes/ports/services"
)

const previewLength = 60

func newListCmd(c *cli) *cobra.Command {
	var (
		asJSON bool
		query  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return c.withStore(ctx, func(remote services.RemoteStore) error {
				store := app.NewSyncStore(remote)
				if err := store.Start(ctx); err != nil {
					return errors.Join(err, store.Stop(ctx))
				}
				notes := store.FilteredBy(query)
				if err := store.Stop(ctx); err != nil {
					return err
				}
				return printNotes(cmd.OutOrStdout(), notes, asJSON)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only notes whose content contains the query")
	return cmd
}

func printNotes(w io.Writer, notes []*entities.Note, asJSON bool) error {
	if asJSON {
		if notes == nil {
			notes = []*entities.Note{}
		}
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(notes)
	}

	for _, n := range notes {
		if _, err := fmt.Fprintf(w, "%s %-7s %s %s\n",
			n.ID, n.ColorTag, n.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"), preview(n.Content)); err != nil {
			return err
		}
	}
	return nil
}

// preview возвращает первую строку содержимого, обрезанную до previewLength рун.
func preview(content string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(content), "\n")
	runes := []rune(line)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return line
}
