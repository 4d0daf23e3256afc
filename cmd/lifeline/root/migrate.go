package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			b, err := openBackend(ctx, cfg, logger)
			if err != nil {
				return err
			}
			b.close()

			fmt.Fprintln(cmd.OutOrStdout(), "✅ migrations applied")
			return nil
		},
	}
}
