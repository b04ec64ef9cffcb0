// DayMind - a conversational planning and journaling assistant for the terminal
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// set at build time
var version = "dev"

var (
	flagConfig  string
	flagVerbose bool
	flagBaseURL string
	flagEmotion string
	flagFeed    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "daymind",
		Short: "DayMind - plan your day, organize your thoughts, journal your feelings",
		Long: color.New(color.FgMagenta, color.Bold).Sprint("DayMind") + `

Talk to your DayMind assistant by text or voice, keep your task list in
sync and write journal entries, all from the terminal.

Run 'daymind repl' for an interactive session.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "config file (default ~/.daymind/config.yaml)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "log to stderr at debug level")
	pf.StringVar(&flagBaseURL, "base-url", "", "backend address, overrides api.base_url")
	pf.StringVarP(&flagEmotion, "emotion", "e", "", "reply tone: friendly, excited, calm, serious, empathetic")
	pf.StringVar(&flagFeed, "feed", "", "serve the event feed on this address, overrides feed.addr")

	rootCmd.AddCommand(
		newChatCmd(),
		newVoiceCmd(),
		newTasksCmd(),
		newJournalCmd(),
		newReplCmd(),
		newConfigCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("daymind %s\n", version)
		},
	}
}
