package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/gaborage/dashclient/app"
	"github.com/gaborage/dashclient/auth"
)

// TokenStatus is printed by token show
type TokenStatus struct {
	Authenticated   bool       `json:"authenticated"`
	AccessToken     string     `json:"accessToken,omitempty"`
	HasRefreshToken bool       `json:"hasRefreshToken"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
	Expired         bool       `json:"expired,omitempty"`
}

// NewTokenCommand creates the token command group
func NewTokenCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage stored credentials",
		Long: `Manage the credentials the client attaches to requests.

Credentials only outlive a single invocation with storage.driver set to sqlite.`,
	}
	cmd.AddCommand(newTokenSetCommand(global), newTokenShowCommand(global), newTokenClearCommand(global))
	return cmd
}

func newTokenSetCommand(global *GlobalOptions) *cobra.Command {
	var refresh string
	cmd := &cobra.Command{
		Use:   "set <access-token>",
		Short: "Store an access token and optionally a refresh token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Client.SetAuthToken(ctx, args[0]); err != nil {
					return err
				}
				if refresh != "" {
					return a.Tokens().SetRefreshToken(ctx, refresh)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&refresh, "refresh", "", "Refresh token to store alongside")
	return cmd
}

func newTokenShowCommand(global *GlobalOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				creds, err := a.Tokens().Credentials(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), tokenStatus(creds, reveal, time.Now()))
			})
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the access token instead of a masked form")
	return cmd
}

func newTokenClearCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Client.ClearAuthToken(ctx); err != nil {
					return err
				}
				return a.Tokens().Purge(ctx)
			})
		},
	}
}

func tokenStatus(creds auth.Credentials, reveal bool, now time.Time) TokenStatus {
	status := TokenStatus{
		Authenticated:   creds.Authenticated(),
		HasRefreshToken: creds.RefreshToken != "",
	}
	if !status.Authenticated {
		return status
	}

	status.AccessToken = maskToken(creds.AccessToken)
	if reveal {
		status.AccessToken = creds.AccessToken
	}
	if exp, ok := auth.TokenExpiry(creds.AccessToken); ok {
		status.ExpiresAt = &exp
		status.Expired = !now.Before(exp)
	}
	return status
}

func maskToken(token string) string {
	const visible = 4
	if len(token) <= visible*2 {
		return "****"
	}
	return token[:visible] + "****" + token[len(token)-visible:]
}
