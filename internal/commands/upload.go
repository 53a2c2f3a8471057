package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gaborage/dashclient/apiclient"
	"github.com/gaborage/dashclient/app"
)

// UploadOptions holds options for the upload command
type UploadOptions struct {
	Field    string
	Fields   map[string]string
	Progress bool
}

// NewUploadCommand creates the upload command
func NewUploadCommand(global *GlobalOptions) *cobra.Command {
	opts := &UploadOptions{}

	cmd := &cobra.Command{
		Use:     "upload <path> <file>",
		Short:   "Upload a file as multipart/form-data",
		Args:    cobra.ExactArgs(2),
		Example: `  dashctl upload /uploads avatar.png --field avatar --form folder=profile --progress`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open upload: %w", err)
			}
			defer f.Close()

			var progress apiclient.ProgressFunc
			if opts.Progress {
				errOut := cmd.ErrOrStderr()
				progress = func(sent, total int64) {
					fmt.Fprintf(errOut, "\ruploaded %d/%d bytes", sent, total)
					if sent == total {
						fmt.Fprintln(errOut)
					}
				}
			}

			return global.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Client.Upload(ctx, args[0], apiclient.UploadFile{
					FieldName: opts.Field,
					FileName:  filepath.Base(args[1]),
					Content:   f,
					Fields:    opts.Fields,
				}, progress)
				return printResult(cmd, res, err)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Field, "field", "file", "Form field name for the file")
	cmd.Flags().StringToStringVar(&opts.Fields, "form", nil, "Extra form fields as key=value")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "Report upload progress on stderr")
	return cmd
}
