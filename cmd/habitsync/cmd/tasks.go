package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weighthabit/habitsync/tasks"
)

var (
	tasksDate       string
	tasksCategory   string
	tasksDifficulty string
	tasksPage       int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Daily task selection and the task library",
}

var tasksDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show the task set for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		day, err := a.Tasks.FetchDaily(cmd.Context(), tasksDate)
		if err != nil {
			return fmt.Errorf("%s", a.Tasks.ErrorMessage())
		}
		for _, dt := range day {
			marker := " "
			if dt.IsCompleted {
				marker = "x"
			} else if dt.IsSelected {
				marker = "*"
			}
			title := dt.TaskID
			if dt.Task != nil {
				title = dt.Task.Title
			}
			fmt.Printf("[%s] %s\n", marker, title)
		}
		return nil
	},
}

var tasksSelectCmd = &cobra.Command{
	Use:   "select <task-id>...",
	Short: "Replace the selected task set for a date",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Tasks.SelectTasks(cmd.Context(), tasksDate, args); err != nil {
			return fmt.Errorf("%s", a.Tasks.ErrorMessage())
		}
		fmt.Printf("Selected %d task(s)\n", len(args))
		return nil
	},
}

var tasksLibraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Browse the task library",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.Tasks.FetchLibrary(cmd.Context(), tasks.LibraryFilter{
			Category:   tasksCategory,
			Difficulty: tasksDifficulty,
			Page:       tasksPage,
		})
		if err != nil {
			return fmt.Errorf("%s", a.Tasks.ErrorMessage())
		}
		for _, task := range page.Data {
			fmt.Printf("%-36s  %-12s %-8s %s\n", task.ID, task.Category, task.Difficulty, task.Title)
		}
		fmt.Printf("Page %d/%d (%d tasks)\n", page.Pagination.Page, page.Pagination.TotalPages, page.Pagination.Total)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.AddCommand(tasksDailyCmd)
	tasksCmd.AddCommand(tasksSelectCmd)
	tasksCmd.AddCommand(tasksLibraryCmd)
	tasksCmd.PersistentFlags().StringVar(&tasksDate, "date", "", "Date (YYYY-MM-DD), defaults to today")
	tasksLibraryCmd.Flags().StringVar(&tasksCategory, "category", "", "Filter by category")
	tasksLibraryCmd.Flags().StringVar(&tasksDifficulty, "difficulty", "", "Filter by difficulty")
	tasksLibraryCmd.Flags().IntVar(&tasksPage, "page", 1, "Page number")
}
