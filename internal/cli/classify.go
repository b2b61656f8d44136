package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/grievance-api/internal/wire"
)

// ClassifyCmd runs the classifier and safety check on ad-hoc text without
// touching the database.
func ClassifyCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "classify <description>",
		Short: "Preview category, priority and safety verdict for text",
		Example: `  grievancectl classify --title "WiFi broken" "the wifi in the library has been down for days"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			svc, err := wire.NewClassifier(cfg.Classifier, nil, nil)
			if err != nil {
				return err
			}
			description := strings.Join(args, " ")
			ctx := cmd.Context()

			result := svc.Classify(ctx, title, description)
			fmt.Fprintf(out, "category: %s\npriority: %s\nsource:   %s\n", result.Category, result.Priority, result.Source)

			verdict := svc.CheckSafety(ctx, strings.TrimSpace(title+" "+description))
			if verdict.Safe {
				fmt.Fprintf(out, "safety:   %s\n", okLabel("safe"))
			} else {
				fmt.Fprintf(out, "safety:   %s (%s)\n", errLabel("rejected"), verdict.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Grievance title")
	return cmd
}
