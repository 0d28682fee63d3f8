package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weighthabit/habitsync/checkin"
)

var (
	checkinNote  string
	checkinPhoto string
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Task completion and check-in statistics",
}

var checkinCompleteCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Mark a task completed for today",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		// Today's tasks must be cached before the completion transform.
		if _, err := a.Tasks.FetchDaily(cmd.Context(), ""); err != nil {
			return fmt.Errorf("%s", a.Tasks.ErrorMessage())
		}
		record, err := a.CheckIn.CompleteTask(cmd.Context(), checkin.CompletionRequest{
			TaskID:   args[0],
			Note:     checkinNote,
			PhotoURL: checkinPhoto,
		})
		if err != nil {
			return fmt.Errorf("%s", a.CheckIn.ErrorMessage())
		}
		fmt.Printf("Completed %d/%d tasks, +%d points\n", record.TasksCompleted, record.TasksSelected, record.PointsEarned)
		return nil
	},
}

var checkinUncompleteCmd = &cobra.Command{
	Use:   "uncomplete <task-id>",
	Short: "Reverse today's completion of a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Tasks.FetchDaily(cmd.Context(), ""); err != nil {
			return fmt.Errorf("%s", a.Tasks.ErrorMessage())
		}
		if err := a.CheckIn.UncompleteTask(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("%s", a.CheckIn.ErrorMessage())
		}
		fmt.Println("Completion reversed")
		return nil
	},
}

var checkinStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show check-in statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.CheckIn.FetchStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", a.CheckIn.ErrorMessage())
		}
		fmt.Printf("Check-ins:      %d\n", stats.TotalCheckins)
		fmt.Printf("Current streak: %d\n", stats.CurrentStreak)
		fmt.Printf("Best streak:    %d\n", stats.MaxStreak)
		fmt.Printf("Points:         %d\n", stats.TotalPoints)
		fmt.Printf("Perfect days:   %d\n", stats.PerfectDays)
		return nil
	},
}

var checkinStreakCmd = &cobra.Command{
	Use:   "streak",
	Short: "Show the current streak",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		streak, err := a.CheckIn.FetchStreak(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s", a.CheckIn.ErrorMessage())
		}
		fmt.Printf("Current streak: %d (best %d)\n", streak.CurrentStreak, streak.MaxStreak)
		return nil
	},
}

var checkinMakeupCmd = &cobra.Command{
	Use:   "makeup <date>",
	Short: "Spend a make-up allowance on a missed date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.CheckIn.MakeupCheckin(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s", a.CheckIn.ErrorMessage())
		}
		fmt.Printf("Made up %s, +%d points\n", record.Date, record.PointsEarned)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkinCmd)
	checkinCmd.AddCommand(checkinCompleteCmd)
	checkinCmd.AddCommand(checkinUncompleteCmd)
	checkinCmd.AddCommand(checkinStatsCmd)
	checkinCmd.AddCommand(checkinStreakCmd)
	checkinCmd.AddCommand(checkinMakeupCmd)
	checkinCompleteCmd.Flags().StringVar(&checkinNote, "note", "", "Optional note")
	checkinCompleteCmd.Flags().StringVar(&checkinPhoto, "photo", "", "Optional photo URL")
}
