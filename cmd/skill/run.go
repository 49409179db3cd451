package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"homeassistant-skill/config"
	"homeassistant-skill/internal/application"
	"homeassistant-skill/internal/domain"
	"homeassistant-skill/internal/infra"
	"homeassistant-skill/internal/infra/dialog"
	"homeassistant-skill/internal/infra/httpapi"
	"homeassistant-skill/internal/infra/intents"
	"homeassistant-skill/internal/infra/messagebus"
	"homeassistant-skill/internal/infra/phal"
	"homeassistant-skill/internal/infra/settings"
	"homeassistant-skill/locale"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the messagebus and serve intents",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCommand(cmd, flags)
		},
	}
}

func runCommand(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return run(ctx, cfg, logger)
}

// run wires the skill to the messagebus and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	syncInterval, err := cfg.PHAL.SyncEvery()
	if err != nil {
		return err
	}
	timeout, err := cfg.PHAL.Timeout()
	if err != nil {
		return err
	}

	settingsPath := cfg.Skill.SettingsPath
	if settingsPath == "" {
		settingsPath = settings.DefaultPath(cfg.Skill.ID)
	}

	bus := messagebus.NewClient(cfg.Bus.URL(), cfg.Skill.ID, infra.ReconnectConfig(), logger)
	renderer := dialog.NewRenderer(locale.FS, locale.DefaultLang, logger)
	intentService := intents.NewService(bus, locale.FS, cfg.Skill.ID, cfg.Skill.Lang, locale.DefaultLang, logger)
	registry := phal.NewRegistry(bus, timeout, logger)
	store := settings.NewStore(settingsPath, logger)

	skill := application.NewSkill(
		cfg.Skill.ID,
		cfg.Skill.Lang,
		bus,
		renderer,
		intentService,
		registry,
		store,
		logger,
	)
	skill.Initialize(ctx)
	bus.OnConnect(skill.OnConnect)

	go func() {
		err := store.Watch(ctx, func(s domain.Settings) {
			skill.OnSettingsChanged(ctx, s)
		})
		if err != nil {
			logger.Warn("settings watcher stopped", "error", err)
		}
	}()

	registry.StartPeriodicSync(ctx, syncInterval, skill.RequestResync)

	if cfg.HTTP.Addr != "" {
		apiCfg := httpapi.Config{
			Addr:       cfg.HTTP.Addr,
			AuthToken:  cfg.HTTP.AuthToken,
			Lang:       cfg.Skill.Lang,
			TrustProxy: cfg.HTTP.TrustProxy,
		}
		api := httpapi.NewServer(apiCfg, bus, bus, skill, logger)
		if err := api.Start(ctx); err != nil {
			return err
		}
		defer api.Stop()
	}

	logger.Info("starting homeassistant skill",
		"skill_id", cfg.Skill.ID,
		"bus", cfg.Bus.URL(),
		"lang", cfg.Skill.Lang,
		"settings", store.Path(),
	)

	err = bus.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logger.Info("shutting down")
		return nil
	}
	return err
}
