package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/conversation"
	"github.com/normanking/daymind/internal/exchange"
	"github.com/normanking/daymind/internal/journal"
	"github.com/normanking/daymind/internal/logging"
	"github.com/normanking/daymind/internal/tasks"
)

var (
	userStyle      = color.New(color.FgCyan, color.Bold)
	assistantStyle = color.New(color.FgMagenta, color.Bold)
	errorStyle     = color.New(color.FgRed)
	dimStyle       = color.New(color.Faint)
	doneStyle      = color.New(color.FgGreen)
	headerStyle    = color.New(color.Bold, color.Underline)
)

func printError(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("✗"), err)
}

func printEntry(e conversation.MessageEntry) {
	switch {
	case e.Role == conversation.RoleUser:
		label := "You"
		if e.IsVoice {
			label = "You 🎤"
		}
		fmt.Printf("%s %s\n", userStyle.Sprint(label+":"), e.Content)
	case e.IsError:
		fmt.Printf("%s %s\n", assistantStyle.Sprint("DayMind:"), errorStyle.Sprint(e.Content))
	default:
		suffix := ""
		if e.AudioAvailable {
			suffix = dimStyle.Sprint(" 🔊")
		}
		fmt.Printf("%s %s%s\n", assistantStyle.Sprint("DayMind:"), e.Content, suffix)
	}
}

func printEntries(entries []conversation.MessageEntry) {
	for _, e := range entries {
		printEntry(e)
	}
}

func printThinking() {
	fmt.Println(dimStyle.Sprint(conversation.ThinkingText))
}

func printResult(r *exchange.Result) {
	if r == nil {
		return
	}
	if r.Err != nil {
		fmt.Fprintln(os.Stderr, dimStyle.Sprintf("(%v)", r.Err))
	}
}

func printTasks(list []api.Task, counts tasks.Counts) {
	fmt.Printf("%s %s\n", headerStyle.Sprint("Tasks"), dimStyle.Sprint(counts.String()))
	if len(list) == 0 {
		fmt.Println(dimStyle.Sprint("  No tasks yet. Ask DayMind to add some!"))
		return
	}
	for i, t := range list {
		if t.Completed {
			fmt.Printf("  %2d. %s %s\n", i+1, doneStyle.Sprint("✓"), dimStyle.Sprint(t.Task))
		} else {
			fmt.Printf("  %2d. ○ %s\n", i+1, t.Task)
		}
	}
}

func printJournalEntry(e api.JournalEntry) {
	mood := journal.Mood(e.Mood)
	when := e.Date
	if !e.Timestamp.IsZero() {
		when = e.Timestamp.Format("Mon Jan 2 15:04")
	}
	fmt.Printf("%s %s %s\n", mood.Icon(), headerStyle.Sprint(mood.Label()), dimStyle.Sprint(when))
	fmt.Printf("  %s\n", e.Entry)
	if e.AIResponse != "" {
		fmt.Printf("  %s %s\n", assistantStyle.Sprint("DayMind:"), e.AIResponse)
	}
}

func printJournalEntries(entries []api.JournalEntry, empty string) {
	if len(entries) == 0 {
		fmt.Println(dimStyle.Sprint(empty))
		return
	}
	for i, e := range entries {
		if i > 0 {
			fmt.Println()
		}
		printJournalEntry(e)
	}
}

func printSummary(s *api.JournalSummary) {
	fmt.Println(headerStyle.Sprint("This week"))
	fmt.Println(s.Summary)
	fmt.Println()
	fmt.Printf("  Entries:        %d\n", s.Stats.TotalEntries)
	mood := journal.Mood(s.Stats.MostCommonMood)
	fmt.Printf("  Common mood:    %s %s\n", mood.Icon(), mood.Label())
	fmt.Printf("  Days journaled: %d\n", s.Stats.DaysJournaled)
}

func moodList() string {
	names := make([]string, 0, len(journal.Moods()))
	for _, m := range journal.Moods() {
		names = append(names, m.Icon()+" "+string(m))
	}
	return strings.Join(names, ", ")
}

func emotionList() string {
	names := make([]string, 0, len(exchange.Emotions()))
	for _, e := range exchange.Emotions() {
		names = append(names, string(e))
	}
	return strings.Join(names, ", ")
}

func printLogs(entries []logging.LogEntry) {
	if len(entries) == 0 {
		fmt.Println(dimStyle.Sprint("  No log lines recorded"))
		return
	}
	for _, e := range entries {
		level := dimStyle.Sprintf("%-5s", e.Level)
		switch e.Level {
		case "warn":
			level = color.YellowString("%-5s", e.Level)
		case "error":
			level = errorStyle.Sprintf("%-5s", e.Level)
		}
		line := fmt.Sprintf("%s %s %s %s", dimStyle.Sprint(e.Timestamp), level, headerStyle.Sprint(e.Component), e.Message)
		if e.Data != "" {
			line += " " + dimStyle.Sprint(e.Data)
		}
		fmt.Println(line)
	}
}
