package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gaborage/dashclient/apiclient"
	"github.com/gaborage/dashclient/app"
)

// QueueStatus is printed by the queue command
type QueueStatus struct {
	Connectivity string                `json:"connectivity"`
	Flushed      bool                  `json:"flushed"`
	Report       apiclient.FlushReport `json:"report"`
	Queued       int                   `json:"queued"`
}

// NewQueueCommand creates the queue command
func NewQueueCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Probe connectivity, replay queued requests and show what is left",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				status := QueueStatus{Connectivity: a.Probe(ctx).String()}
				if a.Monitor.Online() {
					status.Report = a.Client.Flush(ctx)
					status.Flushed = true
				}
				status.Queued = a.Client.QueueLen()
				return printJSON(cmd.OutOrStdout(), status)
			})
		},
	}
}
