package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sitaraServer/api"
	"sitaraServer/config"
	"sitaraServer/crypto"
	"sitaraServer/db"
	"sitaraServer/export"
	"sitaraServer/fbapp"
	"sitaraServer/logging"
	"sitaraServer/notify"
	"sitaraServer/scheduler"
	"sitaraServer/state"
	"sitaraServer/ws"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "sitara",
	Short:         "Sitara bazaar admin and client API server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, live feed and scheduler",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and exit",
	RunE:  runMigrate,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write bazaars, recent results and wallets to Firestore",
	RunE:  runExport,
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin panel login",
	RunE:  runCreateAdmin,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("SITARA_CONFIG"), "optional YAML config file")

	createAdminCmd.Flags().String("username", "", "admin username (required)")
	createAdminCmd.Flags().String("password", "", "admin password; generated when empty")
	createAdminCmd.Flags().String("role", "admin", "admin role")
	_ = createAdminCmd.MarkFlagRequired("username")

	rootCmd.AddCommand(serveCmd, migrateCmd, exportCmd, createAdminCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

// setup loads .env and config and installs the logger.
func setup() (*config.Config, error) {
	envErr := godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if _, err := logging.Setup(cfg.LogLevel); err != nil {
		return nil, err
	}

	if envErr != nil {
		zap.S().Info("⚠️  .env file not found, using environment variables")
	} else {
		zap.S().Info("✅ Loaded environment variables from .env")
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	defer zap.L().Sync()

	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.InitPostgres(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.ClosePostgres()

	if err := db.InitRedis(cfg.Redis); err != nil {
		zap.S().Warnf("⚠️  Redis initialization failed: %v", err)
		zap.S().Info("   Caching and settlement locks fall back to the database")
	}
	defer db.CloseRedis()

	pusher := newPusher(ctx, cfg)

	alerter, closeAlerter := newAlerter(cfg)
	defer closeAlerter()

	mirror, err := export.NewFirestoreMirror(ctx, cfg.Firebase)
	if err != nil {
		zap.S().Warnf("⚠️  Firestore mirror disabled: %v", err)
		mirror = export.NopMirror{}
	}
	defer mirror.Close()

	registry := state.NewRegistry(loc)
	hub := ws.NewHub(cfg.CORSOrigins)
	sched := scheduler.New(registry, hub, mirror, cfg.ExportResultDays)

	server := api.NewServer(ctx, api.Deps{
		Config:   cfg,
		Registry: registry,
		Hub:      hub,
		Pusher:   pusher,
		Alerter:  alerter,
		Mirror:   mirror,
		Exporter: sched.RunExport,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error {
		zap.S().Infof("🚀 Server starting on %s (%s)", cfg.HTTPAddr, loc)
		zap.S().Info("🔌 Admin API: /admin/api  Client API: /api  Live feed: /api/ws, /admin/api/ws")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.S().Info("🛑 Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newPusher(ctx context.Context, cfg *config.Config) notify.Pusher {
	app, err := fbapp.NewApp(ctx, cfg.Firebase)
	if err != nil {
		if !errors.Is(err, fbapp.ErrDisabled) {
			zap.S().Warnf("⚠️  Firebase initialization failed: %v", err)
		}
		return notify.NopPusher{}
	}

	pusher, err := notify.NewFCMPusher(ctx, app)
	if err != nil {
		zap.S().Warnf("⚠️  FCM disabled: %v", err)
		return notify.NopPusher{}
	}
	return pusher
}

func newAlerter(cfg *config.Config) (notify.Alerter, func()) {
	if !cfg.Telegram.Enabled() {
		return notify.NopAlerter{}, func() {}
	}

	alerter, err := notify.NewTelegramAlerter(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
	if err != nil {
		zap.S().Warnf("⚠️  Telegram alerts disabled: %v", err)
		return notify.NopAlerter{}, func() {}
	}
	return alerter, alerter.Close
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}

	// InitPostgres applies the schema
	if err := db.InitPostgres(cfg.DatabaseURL); err != nil {
		return err
	}
	db.ClosePostgres()

	zap.S().Info("✅ Schema is up to date")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror, err := export.NewFirestoreMirror(ctx, cfg.Firebase)
	if err != nil {
		return err
	}
	defer mirror.Close()
	if !mirror.Enabled() {
		return errors.New("firebase is not configured (set FIREBASE_CREDENTIALS or FIREBASE_PROJECT_ID)")
	}

	if err := db.InitPostgres(cfg.DatabaseURL); err != nil {
		return err
	}
	defer db.ClosePostgres()

	snap, err := export.LoadSnapshot(ctx, time.Now().In(loc), cfg.ExportResultDays)
	if err != nil {
		return err
	}

	summary, err := mirror.ExportAll(ctx, snap)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d documents failed to export", summary.Failed)
	}
	return nil
}

func runCreateAdmin(cmd *cobra.Command, args []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	role, _ := cmd.Flags().GetString("role")

	cfg, err := setup()
	if err != nil {
		return err
	}

	generated := password == ""
	if generated {
		if password, err = crypto.RandomSecret(8); err != nil {
			return err
		}
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return err
	}

	if err := db.InitPostgres(cfg.DatabaseURL); err != nil {
		return err
	}
	defer db.ClosePostgres()

	admin, err := db.CreateAdmin(context.Background(), username, hash, role)
	if err != nil {
		return err
	}

	zap.S().Infof("✅ Admin %s created (%s)", admin.Username, admin.ID)
	if generated {
		fmt.Printf("Generated password: %s\n", password)
	}
	return nil
}
