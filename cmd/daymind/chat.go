package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/normanking/daymind/internal/audio"
	"github.com/normanking/daymind/internal/exchange"
)

const micNotice = "Could not access microphone. Please check permissions."

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <message>",
		Short: "Send one message and print the reply",
		Example: `  daymind chat "Plan my day"
  daymind chat -e calm "I have too much on my plate"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			before := a.session.Store().Len()
			result, err := a.session.SendText(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printEntries(a.session.Store().Since(before))
			printResult(result)
			if result.Played {
				a.waitPlayback(ctx)
			}
			return nil
		},
	}
}

func newVoiceCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "voice",
		Short: "Record a voice message and print the reply",
		Long: `Record from the microphone until Enter is pressed, then send the
recording for transcription. Ctrl+C discards the recording.

With --file an existing WAV recording is sent instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			before := a.session.Store().Len()
			var result *exchange.Result

			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if _, _, err := audio.DecodeWAV(data); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				result, err = a.session.Coordinator().SubmitVoice(ctx, data)
				if err != nil {
					return err
				}
			} else {
				if err := a.session.StartRecording(ctx); err != nil {
					if errors.Is(err, audio.ErrPermission) {
						printError(errors.New(micNotice))
					}
					return err
				}
				fmt.Println(userStyle.Sprint("🎤 Recording...") + dimStyle.Sprint(" press Enter to send, Ctrl+C to cancel"))

				enter := make(chan struct{})
				go func() {
					_, _ = bufio.NewReader(os.Stdin).ReadString('\n')
					close(enter)
				}()

				select {
				case <-enter:
				case <-ctx.Done():
					a.session.CancelRecording()
					fmt.Println(dimStyle.Sprint("\nRecording discarded"))
					return nil
				}

				printThinking()
				result, err = a.session.StopRecording(ctx)
				if err != nil {
					return err
				}
			}

			printEntries(a.session.Store().Since(before))
			printResult(result)
			if result.Played {
				a.waitPlayback(ctx)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "send this WAV file instead of recording")
	return cmd
}
