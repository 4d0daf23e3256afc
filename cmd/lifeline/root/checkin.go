package root

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hray3182/lifeline-checkin/internal/checkin"
)

func newCheckInCmd() *cobra.Command {
	var in checkin.Input
	cmd := &cobra.Command{
		Use:   "checkin <user>",
		Short: "Record a check-in for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := svc.RecordCheckIn(ctx, args[0], in)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✅ check-in %s recorded for %s\n", result.Record.ID, args[0])
			fmt.Fprintf(out, "- streak: %d (%s)\n", result.Streak.Current, result.StreakState)
			if len(result.Satisfied) > 0 {
				fmt.Fprintf(out, "- satisfied: %s\n", strings.Join(result.Satisfied, ", "))
			}
			if result.NextExpected != nil {
				fmt.Fprintf(out, "- next expected: %s\n", result.NextExpected.Format("2006-01-02 15:04 MST"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Answers.Mood, "mood", "", "mood answer")
	cmd.Flags().StringVar(&in.Answers.Sleep, "sleep", "", "sleep answer")
	cmd.Flags().StringVar(&in.Answers.Energy, "energy", "", "energy answer")
	cmd.Flags().StringVar(&in.Answers.Medication, "medication", "", "medication answer")
	cmd.Flags().BoolVar(&in.BrainExercise, "brain-exercise", false, "a brain exercise was completed")
	return cmd
}
