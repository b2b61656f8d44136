package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/wire"
)

// ExportCmd renders grievances to CSV or PDF on behalf of an administrator
// and copies the file to a local path.
func ExportCmd() *cobra.Command {
	var (
		req    dto.ExportRequest
		asUser string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export grievances to CSV or PDF",
		Example: `  grievancectl export --as admin@campus.edu --format csv -o grievances.csv
  grievancectl export --as admin@campus.edu --format pdf --status submitted -o open.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withContainer(cmd.Context(), false, out, func(ctx context.Context, app *wire.Container) error {
				user, err := app.Users.FindByEmail(ctx, asUser)
				if err != nil {
					return fmt.Errorf("look up %s: %w", asUser, err)
				}
				actor := &models.JWTClaims{UserID: user.ID, Role: user.Role, Email: user.Email, FullName: user.FullName}

				res, err := app.Exports.Generate(ctx, req, actor)
				if err != nil {
					fmt.Fprintf(out, "%s %v\n", errLabel("FAIL"), err)
					return err
				}
				_, relPath, err := app.Exports.ParseToken(path.Base(res.URL))
				if err != nil {
					return err
				}
				src, _, err := app.Exports.Open(relPath)
				if err != nil {
					return err
				}
				defer src.Close()

				if output == "" {
					output = path.Base(relPath)
				}
				dst, err := os.Create(output)
				if err != nil {
					return err
				}
				if _, err := io.Copy(dst, src); err != nil {
					dst.Close()
					return err
				}
				if err := dst.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "%s %d rows written to %s\n", okLabel("OK"), res.Rows, output)
				fmt.Fprintf(out, "  link: %s %s\n", res.URL, dimLabel("(expires "+res.ExpiresAt.Format("2006-01-02 15:04 MST")+")"))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asUser, "as", "", "Email of the administrator performing the export")
	cmd.Flags().StringVarP(&req.Format, "format", "f", "csv", "csv or pdf")
	cmd.Flags().StringVar(&req.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&req.Category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&req.Priority, "priority", "", "Filter by priority")
	cmd.Flags().StringVar(&req.From, "from", "", "Created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&req.To, "to", "", "Created on or before (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to the stored file name)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}
