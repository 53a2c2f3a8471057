// Package commands implements the dashctl subcommands.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gaborage/dashclient/app"
	"github.com/gaborage/dashclient/config"
	"github.com/gaborage/dashclient/logger"
)

// GlobalOptions holds flags shared by every command
type GlobalOptions struct {
	ConfigDir    string
	ConfigInline string
	Verbose      bool

	// AppOptions are passed to app.New; tests use them to swap the transport
	AppOptions []app.Option
}

// NewRootCommand creates the dashctl root command with every subcommand attached
func NewRootCommand(version string, opts *GlobalOptions) *cobra.Command {
	if opts == nil {
		opts = &GlobalOptions{}
	}

	root := &cobra.Command{
		Use:   "dashctl",
		Short: "Talk to the dashboard API from the command line",
		Long: `dashctl sends requests through the resilient dashboard API client.

Requests carry the stored bearer token and CSRF token, recover once from CSRF
and auth rejections, and retry server errors with exponential backoff.
Responses are printed as the JSON envelope returned by the server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir", ".", "Directory holding config.yaml")
	root.PersistentFlags().StringVar(&opts.ConfigInline, "config-inline", "", "Inline YAML layered over the config files")
	root.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		NewRequestCommand(opts, "get"),
		NewRequestCommand(opts, "delete"),
		NewRequestCommand(opts, "post"),
		NewRequestCommand(opts, "put"),
		NewRequestCommand(opts, "patch"),
		NewUploadCommand(opts),
		NewTokenCommand(opts),
		NewQueueCommand(opts),
		NewVersionCommand(version),
	)
	return root
}

// open loads configuration and wires an App logging to stderr
func (o *GlobalOptions) open(cmd *cobra.Command) (*app.App, error) {
	loadOpts := []config.LoadOption{config.WithDir(o.ConfigDir)}
	if o.ConfigInline != "" {
		loadOpts = append(loadOpts, config.WithInline([]byte(o.ConfigInline)))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Pretty, nil)

	opts := append([]app.Option{app.WithTelemetryWriter(cmd.ErrOrStderr())}, o.AppOptions...)
	return app.New(cmd.Context(), cfg, log, opts...)
}

// withApp runs fn against a freshly opened App and always shuts it down
func (o *GlobalOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := a.Shutdown(context.WithoutCancel(cmd.Context())); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()
	return fn(cmd.Context(), a)
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
