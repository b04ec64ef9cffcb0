package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/normanking/daymind/internal/api"
	"github.com/normanking/daymind/internal/audio"
	"github.com/normanking/daymind/internal/bus"
	"github.com/normanking/daymind/internal/config"
	"github.com/normanking/daymind/internal/exchange"
	"github.com/normanking/daymind/internal/feed"
	"github.com/normanking/daymind/internal/logging"
	"github.com/normanking/daymind/internal/session"
)

// app is everything a command needs, built once per invocation
type app struct {
	cfg      *config.Config
	loader   *config.Loader
	syslog   *logging.Logger
	logger   zerolog.Logger
	eventBus *bus.EventBus
	client   *api.Client
	session  *session.Session
	feed     *feed.Server
}

// loadEnvFiles reads ~/.daymind/.env then ./.env. Variables already set
// in the environment win.
func loadEnvFiles() []string {
	var paths []string
	if dir, err := config.GetConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	paths = append(paths, ".env")

	var loaded []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

func newApp(ctx context.Context) (*app, error) {
	envFiles := loadEnvFiles()

	loader := config.NewLoader(flagConfig)
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if flagBaseURL != "" {
		cfg.API.BaseURL = flagBaseURL
	}
	if flagFeed != "" {
		cfg.Feed.Addr = flagFeed
	}

	logCfg := &logging.Config{
		LogDir:  cfg.Logging.Dir,
		Level:   logging.ParseLevel(cfg.Logging.Level),
		Console: cfg.Logging.Console || flagVerbose,
		Output:  os.Stderr,
	}
	if flagVerbose {
		logCfg.Level = logging.LevelDebug
	}
	syslog, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	zlog := syslog.Zerolog()

	syslog.Info("main", "DayMind starting", map[string]interface{}{
		"version": version,
		"backend": cfg.API.BaseURL,
		"config":  loader.ConfigFileUsed(),
		"env":     len(envFiles),
	})

	scfg, err := session.ConfigFrom(cfg)
	if err != nil {
		syslog.Close()
		return nil, err
	}
	if flagEmotion != "" {
		e, err := exchange.ParseEmotion(flagEmotion)
		if err != nil {
			syslog.Close()
			return nil, err
		}
		scfg.Emotion = e
	}

	eventBus := bus.NewEventBus()
	syslog.SetOnLog(func(e logging.LogEntry) {
		eventBus.Publish(bus.Event{
			Type: bus.EventTypeLogEntry,
			Data: map[string]any{
				"level":     e.Level,
				"component": e.Component,
				"message":   e.Message,
				"data":      e.Data,
			},
		})
	})
	client := api.NewClient(&api.ClientConfig{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, zlog)
	mic := audio.NewCommandMicrophone(cfg.Audio.CaptureCommand)
	player := audio.NewCommandPlayer(cfg.Playback.PlayerCommand, client, zlog)
	sess := session.New(client, mic, player, scfg, eventBus, zlog)

	a := &app{
		cfg:      cfg,
		loader:   loader,
		syslog:   syslog,
		logger:   zlog,
		eventBus: eventBus,
		client:   client,
		session:  sess,
	}

	if loader.ConfigFileUsed() != "" {
		loader.Watch(a.reload, func(err error) {
			syslog.Warn("config", "Ignoring invalid config change", map[string]interface{}{"error": err.Error()})
		})
	}

	if cfg.Feed.Addr != "" {
		a.feed = feed.NewServer(feed.Config{
			Addr:           cfg.Feed.Addr,
			MetricsEnabled: cfg.Metrics.Enabled,
			Logs:           syslog,
		}, sess, eventBus, zlog)
		if err := a.feed.Start(); err != nil {
			a.Close()
			return nil, err
		}
	}

	sess.Start(ctx)
	return a, nil
}

// reload applies the settings that can change while running
func (a *app) reload(cfg *config.Config) {
	a.syslog.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	if flagEmotion == "" {
		if e, err := exchange.ParseEmotion(cfg.User.Emotion); err == nil {
			_ = a.session.SetEmotion(e)
		}
	}
	a.syslog.Info("config", "Configuration reloaded", map[string]interface{}{
		"level":   cfg.Logging.Level,
		"emotion": cfg.User.Emotion,
	})
	a.eventBus.Publish(bus.Event{
		Type: bus.EventTypeConfigReloaded,
		Data: map[string]any{"file": a.loader.ConfigFileUsed()},
	})
}

// waitPlayback blocks until the reply audio has finished or ctx ends
func (a *app) waitPlayback(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for a.session.Playback().State().IsPlaying {
		select {
		case <-ctx.Done():
			a.session.StopPlayback()
			return
		case <-ticker.C:
		}
	}
}

func (a *app) Close() {
	a.session.Close()
	if a.feed != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.feed.Stop(ctx); err != nil {
			a.syslog.Error("feed", "Feed shutdown failed", err, nil)
		}
		cancel()
	}
	a.syslog.Info("main", "DayMind exited", nil)
	if err := a.syslog.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
