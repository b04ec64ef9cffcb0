package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/normanking/daymind/internal/audio"
	"github.com/normanking/daymind/internal/config"
	"github.com/normanking/daymind/internal/exchange"
)

var replCommands = []string{
	"/record", "/send", "/cancel", "/emotion", "/stop",
	"/tasks", "/done", "/clear", "/history", "/logs", "/help", "/quit",
}

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			r := newRepl(a)
			defer r.Close()
			return r.Run(ctx)
		},
	}
}

type repl struct {
	app         *app
	line        *liner.State
	historyFile string
}

func newRepl(a *app) *repl {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		var out []string
		for _, c := range replCommands {
			if strings.HasPrefix(c, input) {
				out = append(out, c)
			}
		}
		return out
	})

	historyFile := filepath.Join(os.TempDir(), "daymind_history")
	if dir, err := config.GetConfigDir(); err == nil {
		historyFile = filepath.Join(dir, "repl_history")
	}

	r := &repl{app: a, line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// Close saves history and restores the terminal
func (r *repl) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0755); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

func (r *repl) prompt() string {
	if r.app.session.Recording() {
		return "● rec> "
	}
	return "daymind> "
}

func (r *repl) Run(ctx context.Context) error {
	sess := r.app.session
	printEntries(sess.Store().Entries())
	fmt.Println(dimStyle.Sprintf("Tasks %s · tone %s · /help for commands",
		sess.Tasks().Counts(), sess.Emotion()))

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := r.line.Prompt(r.prompt())
		if err != nil {
			// Ctrl+C or Ctrl+D
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if !r.command(ctx, input) {
				return nil
			}
			continue
		}
		r.send(ctx, func() (*exchange.Result, error) { return sess.SendText(ctx, input) })
	}
}

// send runs one exchange and prints what it appended
func (r *repl) send(ctx context.Context, submit func() (*exchange.Result, error)) {
	store := r.app.session.Store()
	before := store.Len()
	printThinking()

	result, err := submit()
	if err != nil {
		printError(err)
		return
	}
	printEntries(store.Since(before))
	printResult(result)
}

// command handles a slash command; false means quit
func (r *repl) command(ctx context.Context, input string) bool {
	sess := r.app.session
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return false

	case "/help":
		fmt.Println(`  /record          start recording a voice message
  /send            stop recording and send it
  /cancel          discard the current recording
  /emotion [tone]  show or set the reply tone
  /stop            stop audio playback
  /tasks           show the task list
  /done <n>        mark task n as completed
  /clear           remove all tasks
  /history         show the whole conversation
  /logs [n]        show the last n log lines (default 20)
  /quit            leave`)

	case "/record":
		if err := sess.StartRecording(ctx); err != nil {
			switch {
			case errors.Is(err, audio.ErrPermission):
				printError(errors.New(micNotice))
			case errors.Is(err, exchange.ErrBusy):
				printError(errors.New("wait for the current reply first"))
			default:
				printError(err)
			}
			return true
		}
		sess.StopPlayback()
		fmt.Println(userStyle.Sprint("🎤 Recording...") + dimStyle.Sprint(" /send when done, /cancel to discard"))

	case "/send":
		if !sess.Recording() {
			printError(errors.New("not recording, use /record first"))
			return true
		}
		fmt.Println(dimStyle.Sprintf("recorded %s", sess.RecordingElapsed().Round(100*time.Millisecond)))
		r.send(ctx, func() (*exchange.Result, error) { return sess.StopRecording(ctx) })

	case "/cancel":
		if sess.CancelRecording() {
			fmt.Println(dimStyle.Sprint("Recording discarded"))
		}

	case "/emotion":
		if len(args) == 0 {
			fmt.Printf("tone: %s %s\n", sess.Emotion(), dimStyle.Sprintf("(%s)", emotionList()))
			return true
		}
		e, err := exchange.ParseEmotion(args[0])
		if err == nil {
			err = sess.SetEmotion(e)
		}
		if err != nil {
			printError(fmt.Errorf("%w (choose one of: %s)", err, emotionList()))
			return true
		}
		fmt.Println(dimStyle.Sprintf("tone set to %s", e))

	case "/stop":
		sess.StopPlayback()

	case "/tasks":
		if err := sess.Tasks().Refresh(ctx); err != nil {
			printError(err)
		}
		printTasks(sess.Tasks().Tasks(), sess.Tasks().Counts())

	case "/done":
		if len(args) != 1 {
			printError(errors.New("usage: /done <n>"))
			return true
		}
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			printError(fmt.Errorf("invalid task number %q", args[0]))
			return true
		}
		if err := sess.CompleteTask(ctx, n-1); err != nil {
			printError(err)
			return true
		}
		printTasks(sess.Tasks().Tasks(), sess.Tasks().Counts())

	case "/clear":
		if err := sess.ClearTasks(ctx); err != nil {
			printError(err)
			return true
		}
		fmt.Println(doneStyle.Sprint("✓ All tasks cleared"))

	case "/history":
		fmt.Println(dimStyle.Sprint(strings.Repeat("─", 40)))
		printEntries(sess.Store().Entries())
		if p, ok := sess.Store().PendingPlaceholder(); ok {
			fmt.Println(dimStyle.Sprint(p.Text()))
		}

	case "/logs":
		limit := 20
		if len(args) > 0 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				printError(fmt.Errorf("invalid line count %q", args[0]))
				return true
			}
			limit = n
		}
		if path := r.app.syslog.GetLogPath(); path != "" {
			fmt.Println(dimStyle.Sprintf("log file: %s", path))
		}
		printLogs(r.app.syslog.GetHistory(limit))

	default:
		printError(fmt.Errorf("unknown command %s, try /help", name))
	}
	return true
}
