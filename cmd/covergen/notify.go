package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mmcdole/covergen/internal/service"
)

func newNotifyCmd(root *rootOptions) *cobra.Command {
	var (
		serverName string
		itemID     string
		itemPath   string
	)

	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Update the library holding a newly added item",
		Long: `Updates the cover of the library whose folder contains a newly added item.
Intended to be called from a media server webhook or a download client.

The cover is left alone when the item already produced the newest cover.`,
		Example: `  covergen notify --server home --item-id 12345 --path "/media/movies/Heat (1995)/Heat.mkv"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(root)
			if err != nil {
				return err
			}
			defer a.Close()

			srv, err := a.server(serverName)
			if err != nil {
				return err
			}
			opts, err := a.cfg.Options()
			if err != nil {
				return err
			}

			out, err := a.covers.Notify(cmd.Context(), srv, itemID, itemPath, opts)
			if err != nil {
				return err
			}
			renderSummary(cmd.OutOrStdout(), service.Result{Outcomes: []service.Outcome{out}, Duration: out.Duration}, isTerminal(os.Stdout))
			if out.Status == service.StatusFailed {
				return out.Err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&serverName, "server", "", "Configured server name")
	cmd.Flags().StringVar(&itemID, "item-id", "", "Id of the added item")
	cmd.Flags().StringVar(&itemPath, "path", "", "Path of the added item as the server sees it")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("item-id")
	_ = cmd.MarkFlagRequired("path")

	return cmd
}
