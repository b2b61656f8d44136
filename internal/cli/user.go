package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/dto"
	"github.com/noah-isme/grievance-api/internal/models"
	"github.com/noah-isme/grievance-api/internal/wire"
)

// UserCmd groups account commands.
func UserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		req        dto.CreateUserRequest
		role       string
		department string
		telegram   string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision an account",
		Long: `Provision an account. This is how the first administrator is created,
since the HTTP endpoint requires an administrator token.`,
		Example: `  grievancectl user create --email admin@campus.edu --name "Campus Admin" --role super_admin --password 'change-me-now'`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Role = models.UserRole(role)
			if department != "" {
				req.Department = &department
			}
			if telegram != "" {
				req.TelegramChatID = &telegram
			}
			out := cmd.OutOrStdout()
			return withContainer(cmd.Context(), false, out, func(ctx context.Context, app *wire.Container) error {
				user, err := app.Auth.CreateUser(ctx, req)
				if err != nil {
					fmt.Fprintf(out, "%s %v\n", errLabel("FAIL"), err)
					return err
				}
				fmt.Fprintf(out, "%s created %s (%s) %s\n", okLabel("OK"), user.Email, user.Role, dimLabel(user.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "Login email")
	cmd.Flags().StringVar(&req.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password (min 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleStudent), "student, faculty, staff, admin or super_admin")
	cmd.Flags().StringVar(&department, "department", "", "Department")
	cmd.Flags().StringVar(&telegram, "telegram-chat-id", "", "Telegram chat for notifications")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
