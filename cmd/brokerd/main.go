package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/brokerd/internal/common"
	"github.com/ternarybob/brokerd/internal/questrade"
	"github.com/ternarybob/brokerd/internal/storage/credstore"
)

var (
	// Command-line flags
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
	revokeToken  = flag.Bool("revoke", false, "Revoke the stored refresh token and exit")

	// Global state
	config *common.Config
	logger arbor.ILogger
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Brokerd version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Merge config flags (shorthand takes precedence)
	configPath := *configFile
	if *configFileC != "" {
		configPath = *configFileC
	}

	// Auto-discover config file if not specified
	if configPath == "" {
		if _, err := os.Stat("brokerd.toml"); err == nil {
			configPath = "brokerd.toml"
		}
	}

	// Startup sequence: load config, initialize logger, print banner
	var err error
	config, err = common.LoadFromFile(configPath)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Str("path", configPath).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config_file", configPath).
		Str("credentials_dir", config.Credentials.Dir).
		Str("log_level", config.Logging.Level).
		Msg("Application configuration loaded")

	store := credstore.NewStore(config.Credentials.Dir, credstore.WithLogger(logger))

	record, err := questrade.LoadOrSeed(store, common.NewConsolePrompter(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load broker credentials")
		os.Exit(1)
	}

	client := questrade.NewClient(record, store, clientOptions(config)...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *revokeToken {
		client.RevokeAccess(ctx)
		return
	}

	// Validate the keep-alive schedule before opening a session: every grant
	// rotates the refresh token, so once a session is open the only safe exits
	// run Session.Close. Exiting on a bad schedule after the rotation would
	// strand the new token in memory and lock the operator out.
	var scheduler *cron.Cron
	if config.KeepAlive.Enabled {
		scheduler, err = newKeepAliveScheduler(client, config.KeepAlive.Schedule)
		if err != nil {
			logger.Fatal().Str("schedule", config.KeepAlive.Schedule).Err(err).Msg("Invalid keep-alive schedule")
			os.Exit(1)
		}
	}

	logger.Info().Msg("Waiting on API access...")
	session, err := client.OpenSession(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open broker session")
		os.Exit(1)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to persist credentials on shutdown")
		}
	}()

	reportStatus(ctx, session)

	// Keep the token warm until terminated
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()

		logger.Info().
			Str("schedule", config.KeepAlive.Schedule).
			Msg("Keep-alive scheduler started - Press Ctrl+C to stop")
	}

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received, shutting down")
}

// newKeepAliveScheduler builds the keep-alive scheduler, validating the cron
// schedule without starting it.
func newKeepAliveScheduler(client *questrade.Client, schedule string) (*cron.Cron, error) {
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(schedule, func() { keepAlive(client) }); err != nil {
		return nil, err
	}
	return scheduler, nil
}

// clientOptions maps the app config onto questrade client options.
func clientOptions(config *common.Config) []questrade.ClientOption {
	opts := []questrade.ClientOption{
		questrade.WithLogger(logger),
	}
	if config.Questrade.LoginURL != "" {
		opts = append(opts, questrade.WithLoginURL(config.Questrade.LoginURL))
	}
	if config.Questrade.APIVersion != "" {
		opts = append(opts, questrade.WithAPIVersion(config.Questrade.APIVersion))
	}
	if config.Questrade.RateLimit > 0 {
		opts = append(opts, questrade.WithRateLimit(config.Questrade.RateLimit))
	}
	if config.Questrade.Timeout > 0 {
		opts = append(opts, questrade.WithHTTPClient(&http.Client{Timeout: config.Questrade.Timeout}))
	}
	return opts
}

// reportStatus logs the server time and account list for the opened session.
func reportStatus(ctx context.Context, session *questrade.Session) {
	serverTime, err := session.Time(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch server time")
	} else {
		logger.Info().Str("server_time", serverTime.Time).Msg("Questrade server time")
	}

	accounts, err := session.Accounts(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to fetch accounts")
		return
	}
	logger.Info().Int("count", len(accounts.Accounts)).Msg("Accounts retrieved")
	for _, account := range accounts.Accounts {
		logger.Info().
			Str("number", account.Number).
			Str("type", account.Type).
			Str("status", account.Status).
			Msg("Account")
	}
}

// keepAlive re-validates the session off the cron schedule. Failures are
// logged and retried on the next tick.
func keepAlive(client *questrade.Client) {
	ctx := context.Background()

	if _, err := client.EnsureAccess(ctx, false); err != nil {
		logger.Warn().Err(err).Msg("Keep-alive token refresh failed")
		return
	}
	if _, err := client.Time(ctx); err != nil {
		logger.Warn().Err(err).Msg("Keep-alive probe failed")
		return
	}
	logger.Debug().Msg("Keep-alive probe succeeded")
}
