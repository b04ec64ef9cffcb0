package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/normanking/daymind/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Printf("%s wrote %s\n", doneStyle.Sprint("✓"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(flagConfig)
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			source := loader.ConfigFileUsed()
			if source == "" {
				source = "defaults"
			}
			fmt.Println(dimStyle.Sprintf("# %s", source))
			fmt.Printf("api.base_url:      %s\n", cfg.API.BaseURL)
			fmt.Printf("api.timeout:       %s\n", cfg.API.Timeout)
			fmt.Printf("user.emotion:      %s\n", cfg.User.Emotion)
			fmt.Printf("audio.capture:     %v\n", cfg.Audio.CaptureCommand)
			fmt.Printf("audio.sample_rate: %d\n", cfg.Audio.SampleRate)
			fmt.Printf("playback.command:  %v\n", cfg.Playback.PlayerCommand)
			fmt.Printf("playback.enabled:  %t\n", cfg.Playback.Enabled)
			fmt.Printf("logging.level:     %s\n", cfg.Logging.Level)
			fmt.Printf("feed.addr:         %s\n", cfg.Feed.Addr)
			fmt.Printf("metrics.enabled:   %t\n", cfg.Metrics.Enabled)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func configPath() (string, error) {
	if flagConfig != "" {
		return flagConfig, nil
	}
	dir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
