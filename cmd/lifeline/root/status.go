package root

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <user>",
		Short: "Show a user's derived check-in status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			view, err := svc.Status(ctx, args[0], time.Now())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", args[0], view.Status)
			fmt.Fprintf(out, "- schedules: %s\n", strings.Join(view.Schedules, ", "))
			fmt.Fprintf(out, "- completed: %s\n", strings.Join(view.Completed, ", "))
			if len(view.Overdue) > 0 {
				fmt.Fprintf(out, "- overdue: %s\n", strings.Join(view.Overdue, ", "))
			}
			fmt.Fprintf(out, "- streak: %d\n", view.Streak)
			if view.NextExpected != nil {
				fmt.Fprintf(out, "- next expected: %s\n", view.NextExpected.Format("2006-01-02 15:04 MST"))
			}
			return nil
		},
	}
}
