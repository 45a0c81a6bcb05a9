package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mint-sniper/agent/internal/bot"
	"mint-sniper/agent/internal/feed"
	"mint-sniper/agent/internal/filters"
	"mint-sniper/agent/internal/handlers"
	"mint-sniper/agent/internal/metrics"
	"mint-sniper/agent/internal/services"
	"mint-sniper/agent/internal/watchlist"
	"mint-sniper/shared/config"
	"mint-sniper/shared/env"
	"mint-sniper/shared/logger"
	"mint-sniper/shared/notifications"

	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func startHeartbeat(ctx context.Context, appLogger *logger.Logger, store *watchlist.Store) {
	go func() {
		ticker := time.NewTicker(8 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				appLogger.Info("Heartbeat: Program running...", zap.Int("pending", store.PendingCount()), zap.Int("alerted", store.SeenCount()))
			}
		}
	}()
}

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mint-sniper",
	Short: "Momentum-confirmed Solana mint alerts",
	Long: `mint-sniper listens to a Telegram channel for token mints, filters them on
market data and alerts the target channel once a mint's market cap confirms
upward momentum.`,
	SilenceUsage: true,
	RunE:         runAgent,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: CONFIG_PATH or agent/config.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadSettings reads env and yaml; a ConfigurationError aborts startup.
func loadSettings() (*env.Vars, *config.Config, error) {
	vars, err := env.LoadEnv()
	if err != nil {
		var cfgErr *env.ConfigurationError
		if errors.As(err, &cfgErr) {
			return nil, nil, fmt.Errorf("configuration error for %s: %w", cfgErr.Key, err)
		}
		return nil, nil, fmt.Errorf("load environment variables: %w", err)
	}
	log.Println("INFO: Environment variables loaded via shared/env.")

	path := vars.ConfigPath
	if configPath != "" {
		path = configPath
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	config.SetGlobalConfig(cfg)
	return vars, cfg, nil
}

func runAgent(cmd *cobra.Command, args []string) error {
	vars, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	appLogger, err := logger.NewLogger(loggerConfig(cfg, vars))
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer appLogger.Sync()
	appLogger.Info("Application logger initialized successfully.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api, err := notifications.InitTelegramBot(vars.TelegramBotToken, appLogger)
	if err != nil {
		return err
	}
	tgClient := notifications.NewClient(api, cfg.Notifications.RatePerSec, cfg.Notifications.Timeout, appLogger)
	if vars.LogChatID != 0 {
		appLogger.SetTelegramMirror(tgClient.LogMirror(ctx, vars.LogChatID, 64))
		appLogger.Info("Mirroring WARN/ERROR logs to Telegram", zap.Int64("chatID", vars.LogChatID))
	}
	sink := notifications.NewTelegramSink(tgClient, vars.TargetChannelID, cfg.Notifications.Template, appLogger)

	m := metrics.New()

	aggregator := services.NewAggregator(aggregatorConfig(cfg), appLogger, m,
		services.NewDexScreenerClient(dexScreenerConfig(cfg), appLogger),
		services.NewJupiterClient(jupiterConfig(cfg), appLogger),
	)

	var checker filters.ConcentrationChecker
	if cfg.RugCheck.Enabled {
		checker = services.NewHolderChecker(holderCheckConfig(cfg, vars), appLogger)
		appLogger.Info("Holder concentration check enabled", zap.String("rpc", vars.RPCEndpoint))
	}
	filter := filters.New(filterConfig(cfg), checker, appLogger)
	mode := filters.ParseMode(cfg.Filters.Mode)
	if !filter.HasMode(mode) {
		return fmt.Errorf("filters.mode %q has no thresholds configured", cfg.Filters.Mode)
	}

	store := watchlist.NewStore(cfg.Watchlist.Expiry)
	snapshot, closeStores, err := buildSnapshotStore(ctx, cfg, vars, appLogger)
	if err != nil {
		return fmt.Errorf("set up watchlist storage: %w", err)
	}
	defer closeStores()

	if entries, seen, err := snapshot.Load(ctx); err != nil {
		appLogger.Warn("Could not restore watchlist snapshot, starting fresh", zap.Error(err))
	} else {
		restored := store.Restore(entries, seen, time.Now())
		appLogger.Info("Watchlist restored", zap.Int("pending", restored), zap.Int("alerted", store.SeenCount()))
	}

	supervisor := watchlist.NewSupervisor(supervisorConfig(cfg), store, aggregator, sink, snapshot, appLogger, m)

	pipeline := feed.NewPipeline(feed.PipelineConfig{
		TriggerPrefixes: cfg.Feed.TriggerPrefixes,
		Mode:            mode,
	}, aggregator, filter, store, appLogger, m)

	feedBot, err := telego.NewBot(vars.TelegramBotToken, telego.WithLogger(appLogger.Zap()))
	if err != nil {
		return fmt.Errorf("create feed bot: %w", err)
	}
	listener := feed.NewListener(feed.ListenerConfig{
		SourceChatID:   vars.SourceChannelID,
		AdminChatID:    vars.AdminChatID,
		ReconnectDelay: cfg.Feed.ReconnectDelay,
		MessageTimeout: cfg.Feed.PollTimeout,
		MaxInFlight:    cfg.Feed.MaxInFlight,
	}, feedBot, pipeline, bot.NewCommands(tgClient, store, appLogger), appLogger)

	router := handlers.NewRouter(appLogger)
	handlers.RegisterRoutes(router, m)
	handlers.RegisterAPIRoutes(router, appLogger, store)
	srv := &http.Server{
		Addr:              ":" + vars.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(supervisor.Run(gctx))
	})
	g.Go(func() error {
		return ignoreCanceled(listener.Run(gctx))
	})
	g.Go(func() error {
		appLogger.Info("Starting web server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	startHeartbeat(gctx, appLogger, store)
	appLogger.Info("Application startup complete. Waiting for channel posts...",
		zap.String("mode", cfg.Filters.Mode),
		zap.Int64("sourceChatID", vars.SourceChannelID),
		zap.Int64("targetChatID", vars.TargetChannelID),
	)

	if err := g.Wait(); err != nil {
		appLogger.Error("Shutting down after failure", zap.Error(err))
		return err
	}
	appLogger.Info("Shutdown complete")
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
