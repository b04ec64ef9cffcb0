package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/normanking/daymind/internal/config"
	"github.com/normanking/daymind/internal/discovery"
	"github.com/normanking/daymind/internal/logging"
)

func newStatusCmd() *cobra.Command {
	var use, showLogs bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check which DayMind backends are reachable",
		Long: `Probe the configured backend and the usual local ports.
With --use the fastest reachable backend is written to the config file.
With --logs the probe log is printed after the table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(flagConfig)
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			if flagBaseURL != "" {
				cfg.API.BaseURL = flagBaseURL
			}

			level := logging.LevelWarn
			if flagVerbose || showLogs {
				level = logging.LevelDebug
			}
			syslog, err := logging.New(&logging.Config{Level: level, Console: flagVerbose})
			if err != nil {
				return err
			}
			defer syslog.Close()

			svc := discovery.NewService(nil, syslog.Zerolog())
			svc.AddCustomURL(cfg.API.BaseURL)
			backends := svc.Scan(cmd.Context())

			fmt.Println(headerStyle.Sprint("Backends"))
			for _, b := range backends {
				marker := "  "
				if b.URL == cfg.API.BaseURL {
					marker = "→ "
				}
				if b.Online() {
					fmt.Printf("%s%s %s %s\n", marker, doneStyle.Sprint("●"), b.URL,
						dimStyle.Sprintf("%dms · %d tasks", b.Latency.Milliseconds(), b.Tasks))
				} else {
					fmt.Printf("%s%s %s\n", marker, dimStyle.Sprint("○"), dimStyle.Sprint(b.URL))
				}
			}

			if showLogs {
				fmt.Println(headerStyle.Sprint("Probe log"))
				printLogs(syslog.GetHistory(0))
			}

			best := svc.Best()
			if best == nil {
				return fmt.Errorf("no backend reachable, start the DayMind server or pass --base-url")
			}
			if !use || best.URL == cfg.API.BaseURL {
				return nil
			}

			cfg.API.BaseURL = best.URL
			path, err := configPath()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			fmt.Printf("%s using %s (saved to %s)\n", doneStyle.Sprint("✓"), best.URL, path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&use, "use", false, "save the fastest reachable backend as api.base_url")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "print the log recorded while probing")
	return cmd
}
