package main

import (
	"encoding/json"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"opennotes/internal/notes/ports/services"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print change events as JSON lines until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return c.withStore(ctx, func(store services.RemoteStore) (err error) {
				sub, err := store.Subscribe(ctx)
				if err != nil {
					return err
				}
				defer func() { err = errors.Join(err, sub.Close()) }()

				encoder := json.NewEncoder(cmd.OutOrStdout())
				for {
					select {
					case <-ctx.Done():
						return nil
					case event, ok := <-sub.Events():
						if !ok {
							return nil
						}
						if err := encoder.Encode(event); err != nil {
							return err
						}
					}
				}
			})
		},
	}
}
