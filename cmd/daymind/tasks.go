package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show and manage your task list",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Tasks().LastError(); err != nil {
				return err
			}
			printTasks(a.session.Tasks().Tasks(), a.session.Tasks().Counts())
			return nil
		},
	}

	doneCmd := &cobra.Command{
		Use:   "done <number>",
		Short: "Mark a task as completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid task number %q", args[0])
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.CompleteTask(ctx, n-1); err != nil {
				return err
			}
			printTasks(a.session.Tasks().Tasks(), a.session.Tasks().Counts())
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove all tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.ClearTasks(ctx); err != nil {
				return err
			}
			fmt.Println(doneStyle.Sprint("✓ All tasks cleared"))
			return nil
		},
	}

	cmd.AddCommand(listCmd, doneCmd, clearCmd)
	return cmd
}
