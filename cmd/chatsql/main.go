package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/chatsql/internal/api"
	"github.com/felixgeelhaar/chatsql/internal/auth"
	"github.com/felixgeelhaar/chatsql/internal/config"
	"github.com/felixgeelhaar/chatsql/internal/domain"
	"github.com/felixgeelhaar/chatsql/internal/i18n"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is what every command shares once flags, env and config are merged
type app struct {
	cfg     *config.LocalConfig
	logger  *slog.Logger
	client  *api.Client
	events  *domain.EventDispatcher
	authCtx *auth.Context
	authSvc *auth.Service
}

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	a, _ := cmd.Context().Value(appKey{}).(*app)
	return a
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatsql",
		Short:         "Practice SQL against sandbox databases with an AI tutor",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.String("config", "", "Config file (default ~/.chatsql/config.yaml)")
	f.String("api-url", "", "Backend base URL, e.g. http://localhost:8000/api")
	f.Bool("demo", false, "Use the built-in demo dataset instead of the backend")
	f.String("log-level", "", "Log level (debug, info, warn, error)")
	f.String("log-format", "", "Log format (text, json)")
	f.StringP("lang", "l", "", "UI language (en, zh)")

	root.AddCommand(
		exercisesCmd(), tagsCmd(), schemasCmd(), exerciseCmd(),
		pullCmd(), runCmd(), submitCmd(), watchCmd(),
		askCmd(), historyCmd(),
		loginCmd(), signupCmd(), logoutCmd(), whoamiCmd(),
		instructorCmd(),
		workspaceCmd(), mcpCmd(), demoServerCmd(),
		configCmd(), versionCmd(),
	)
	return root
}

// setup merges .env, environment, flags and the config file, then builds
// the shared client
func setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("error reading .env", "error", err)
	}

	v := viperForCmd(cmd)
	cfg, err := loadConfig(v.GetString("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	overlay(cfg, v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogging(cfg.Log)
	if err := i18n.Init(cfg.UI.Language); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client, err := api.NewFromConfig(cfg.API, logger)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	events := domain.NewEventDispatcher()
	authCtx := auth.NewContext(events)

	var repo auth.Repository
	if dir, err := config.EnsureChatsqlDir(); err != nil {
		logger.Warn("session will not be persisted", "error", err)
	} else if store, err := auth.NewStore(filepath.Join(dir, "session")); err != nil {
		logger.Warn("session will not be persisted", "error", err)
	} else {
		repo = store
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		events:  events,
		authCtx: authCtx,
		authSvc: auth.NewService(client, authCtx, repo, cfg.API.BaseURL, logger),
	}

	ctx := i18n.WithLocalizer(cmd.Context(), i18n.NewLocalizer(cfg.UI.Language))
	cmd.SetContext(context.WithValue(ctx, appKey{}, a))
	return nil
}

func loadConfig(path string) (*config.LocalConfig, error) {
	if path != "" {
		return config.LoadLocalConfigFrom(path)
	}
	return config.LoadLocalConfig()
}

// overlay applies flags and CHATSQL_* variables on top of the file config
func overlay(cfg *config.LocalConfig, v *viper.Viper) {
	if s := v.GetString("api-url"); s != "" {
		cfg.API.BaseURL = s
	}
	if v.GetBool("demo") {
		cfg.API.DemoMode = true
	}
	if s := v.GetString("log-level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("log-format"); s != "" {
		cfg.Log.Format = s
	}
	if s := v.GetString("lang"); s != "" {
		cfg.UI.Language = s
	}
}

func setupLogging(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// viperForCmd binds a command's flags and environment to a fresh viper instance
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CHATSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// restoreSession reloads a stored login for commands that act as the user
func (a *app) restoreSession(ctx context.Context) domain.AuthState {
	if a.client.Demo() {
		return a.authCtx.State()
	}
	state, err := a.authSvc.Restore(ctx)
	if err != nil {
		a.logger.Warn("restore session", "error", err)
	}
	return state
}
