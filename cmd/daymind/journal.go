package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/daymind/internal/journal"
)

func newJournalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Write and browse journal entries",
	}

	var mood string
	writeCmd := &cobra.Command{
		Use:     "write <entry>",
		Short:   "Save a journal entry",
		Example: `  daymind journal write -m good "Finally finished the report"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := journal.ParseMood(mood)
			if err != nil {
				return fmt.Errorf("%w (choose one of: %s)", err, moodList())
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.session.Journal().Save(ctx, strings.Join(args, " "), m)
			if err != nil {
				return err
			}
			fmt.Println(doneStyle.Sprint("✨ Journal entry saved!"))
			if result.Entry.AIResponse != "" {
				fmt.Printf("%s %s\n", assistantStyle.Sprint("DayMind:"), result.Entry.AIResponse)
			}
			if result.Played {
				a.waitPlayback(ctx)
			}
			return nil
		},
	}
	writeCmd.Flags().StringVarP(&mood, "mood", "m", "", "how you feel: "+moodList())

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Show your most recent entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.session.Journal().Recent(ctx)
			if err != nil {
				return err
			}
			printJournalEntries(entries, "No entries yet. Start journaling above!")
			return nil
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search entries by text or mood",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.session.Journal().Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printJournalEntries(results, "No matching entries.")
			return nil
		},
	}

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show this week's summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.session.Journal().Summary(ctx)
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		},
	}

	promptsCmd := &cobra.Command{
		Use:   "prompts",
		Short: "Show today's reflection prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			prompts, err := a.session.Journal().Prompts(ctx)
			if err != nil {
				return err
			}
			fmt.Println(headerStyle.Sprint("Today's prompts"))
			for _, p := range prompts {
				fmt.Printf("  • %s\n", p)
			}
			return nil
		},
	}

	cmd.AddCommand(writeCmd, listCmd, searchCmd, summaryCmd, promptsCmd)
	return cmd
}
