package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gaborage/dashclient/apiclient"
	"github.com/gaborage/dashclient/app"
)

// RequestOptions holds options for the request commands
type RequestOptions struct {
	Query []string
	Data  string
}

// NewRequestCommand creates the get, delete, post, put or patch command
func NewRequestCommand(global *GlobalOptions, method string) *cobra.Command {
	opts := &RequestOptions{}
	method = strings.ToUpper(method)
	hasBody := method != "GET" && method != "DELETE"

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <path>",
		Short: fmt.Sprintf("Send a %s request", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := opts.body()
			if err != nil {
				return err
			}
			query, err := opts.values()
			if err != nil {
				return err
			}
			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Client.Do(ctx, apiclient.Request{
					Method: method,
					Path:   args[0],
					Query:  query,
					Body:   body,
				})
				return printResult(cmd, res, err)
			})
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Query, "query", "q", nil, "Query parameter as key=value (repeatable)")
	if hasBody {
		cmd.Flags().StringVarP(&opts.Data, "data", "d", "", "JSON request body, or @file to read it from a file")
		cmd.Example = fmt.Sprintf(`  dashctl %s /orders --data '{"qty":2}'
  dashctl %s /orders --data @order.json`, strings.ToLower(method), strings.ToLower(method))
	} else {
		cmd.Example = fmt.Sprintf(`  dashctl %s /wallet/balance -q currency=USD`, strings.ToLower(method))
	}
	return cmd
}

func (o *RequestOptions) body() ([]byte, error) {
	if o.Data == "" {
		return nil, nil
	}
	data := []byte(o.Data)
	if path, ok := strings.CutPrefix(o.Data, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("request body is not valid JSON")
	}
	return data, nil
}

func (o *RequestOptions) values() (url.Values, error) {
	if len(o.Query) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, kv := range o.Query {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid query parameter %q (expected key=value)", kv)
		}
		q.Add(k, v)
	}
	return q, nil
}

// printResult writes the envelope, or the error envelope when the server sent one
func printResult(cmd *cobra.Command, res *apiclient.Envelope, err error) error {
	if err == nil {
		return printJSON(cmd.OutOrStdout(), res)
	}

	var apiErr *apiclient.Error
	if errors.As(err, &apiErr) && apiErr.Detail != nil {
		if printErr := printJSON(cmd.OutOrStdout(), apiclient.Envelope{Error: apiErr.Detail}); printErr != nil {
			return printErr
		}
	}
	return err
}
