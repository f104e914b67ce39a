package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-extras/cobraflags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/warp/birthday-engine/api"
	"github.com/warp/birthday-engine/birthday"
	"github.com/warp/birthday-engine/bot"
	"github.com/warp/birthday-engine/config"
	"github.com/warp/birthday-engine/discord"
	"github.com/warp/birthday-engine/schema"
	"github.com/warp/birthday-engine/store/sqlite"
)

// ErrSchema aborts startup when a table cannot be created.
var ErrSchema = errors.New("failed to create tables")

// tables holds the declarations created at startup.
var tables = schema.DefaultRegistry

const (
	configFlag  = "config"
	envFileFlag = "env-file"
)

// newRunFlags builds a fresh flag set per command. cobraflags binds each
// Flag to viper once, so sharing values across commands pins the first
// command's arguments.
func newRunFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		configFlag: &cobraflags.StringFlag{
			Name:  configFlag,
			Value: "config.json",
			Usage: "Path to the config file (JSON, YAML or TOML)",
		},
		envFileFlag: &cobraflags.StringFlag{
			Name:  envFileFlag,
			Value: ".env",
			Usage: "Optional dotenv file loaded before BIRTHDAY_* overrides",
		},
	}
}

func newRunCommand() *cobra.Command {
	flags := newRunFlags()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and start handing out birthday roles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBot(cmd, flags[configFlag].GetString(), flags[envFileFlag].GetString())
		},
	}
	cobraflags.RegisterMap(cmd, flags)
	return cmd
}

func runBot(cmd *cobra.Command, configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), cfg.Debug)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if !tables.CreateAll(ctx, db, true, logger) {
		return ErrSchema
	}
	store := birthday.NewStore(db)

	client, err := discord.New(cfg.Token, cfg.Prefix, logger)
	if err != nil {
		return err
	}

	handlers := bot.NewHandlers(store, cfg.GuildID, logger)
	handlers.SourceURL = cfg.SourceURL
	handlers.ConfirmTimeout = cfg.ConfirmTimeout

	router := bot.NewRouter(cfg.Prefix, cfg.Owners, client, logger)
	router.Register(handlers.Commands()...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	scheduler := bot.NewReconciliationScheduler(store, client, bot.Target{
		GuildID:           cfg.GuildID,
		RoleID:            cfg.BirthdayRoleID,
		AnnounceChannelID: cfg.AnnounceChannelID,
	}, logger)
	scheduler.CheckInterval = cfg.PollInterval
	scheduler.Metrics = bot.NewMetrics(reg)

	if err := client.Open(ctx, router); err != nil {
		return err
	}
	defer client.Close()

	scheduler.Start(ctx)
	defer scheduler.Stop()

	httpErr := make(chan error, 1)
	if cfg.HTTPAddr != "" {
		h := api.NewHandler(store, db, scheduler, logger)
		go func() {
			httpErr <- api.Serve(ctx, cfg.HTTPAddr, api.NewRouter(h, reg), logger)
		}()
	}

	logger.Info("bot running", "prefix", cfg.Prefix, "guild_id", cfg.GuildID)

	select {
	case <-ctx.Done():
		if cfg.HTTPAddr != "" {
			if err := <-httpErr; err != nil {
				logger.Warn("admin http server shutdown", "error", err)
			}
		}
	case err := <-httpErr:
		if err != nil {
			return fmt.Errorf("admin http server: %w", err)
		}
	}

	logger.Info("shutting down")
	return nil
}
