package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/catalog"
	"github.com/voyagen/fiootv/internal/config"
	"github.com/voyagen/fiootv/internal/credentials"
	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/notify"
	"github.com/voyagen/fiootv/internal/server"
	"github.com/voyagen/fiootv/internal/service"
	"github.com/voyagen/fiootv/internal/store"
	"github.com/voyagen/fiootv/internal/upstream"
)

// Version is set via ldflags during build.
var Version = "dev"

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "fiootv",
	Short:         "FiooTV storefront backend",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Optional config file path (YAML); else use env DATABASE_URL")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	migrateDownCmd.Flags().Int("steps", 1, "Number of migrations to roll back")

	rootCmd.AddCommand(serveCmd, syncCmd, migrateCmd)
}

// loadConfig reads configuration and initializes logging from it.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	return cfg, nil
}

// app is the wired dependency graph shared by serve and sync.
type app struct {
	cfg    *config.Config
	pg     *store.Postgres
	redis  *cache.Redis
	store  store.Store
	creds  *credentials.FileStore
	names  catalog.NameSource
	syncer *service.Syncer
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	a.pg.Close()
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log := logging.WithComponent("main")

	if err := store.RunMigrations(cfg.DatabaseURL, store.MigrationsDir("migrations")); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	a := &app{cfg: cfg, pg: pg, store: pg}

	if cfg.RedisURL != "" {
		a.redis, err = cache.New(ctx, cfg.RedisURL)
		if err != nil {
			pg.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.store = store.NewCachedStore(pg, a.redis)
		log.Info().Msg("redis connected (caching, sync lock and mail queue enabled)")
	} else {
		log.Info().Msg("redis disabled (REDIS_URL not set)")
	}

	client, err := upstream.NewClient(cfg.UpstreamURL, cfg.UserAgent, cfg.Timeout)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.creds = credentials.NewFileStore(cfg.CredentialsFile, credentials.Record{
		Session: cfg.DefaultSession,
		Cookie:  cfg.DefaultCookie,
	})
	a.names = catalog.NamesFile(cfg.CategoriesFile)

	a.syncer = service.NewSyncer(client, a.store, a.creds, a.names)
	a.syncer.PageDelay = cfg.PageDelay
	a.syncer.CategoryDelay = cfg.CategoryDelay
	if a.redis != nil {
		a.syncer.Lock = cache.SyncLock{Redis: a.redis}
	}
	return a, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(cfg, server.Deps{
			Store:       a.store,
			Credentials: a.creds,
			Names:       a.names,
			Syncer:      a.syncer,
			Notifier:    newNotifier(ctx, a),
			Redis:       a.redis,
		})
		return srv.ListenAndServe(ctx)
	},
}

// newNotifier returns the e-mail notifier, or nil when SMTP is not
// configured. With Redis, deliveries go through the queue and a worker.
func newNotifier(ctx context.Context, a *app) service.Notifier {
	log := logging.WithComponent("notify")
	sender := notify.NewSMTPSender(a.cfg.SMTP)
	if !sender.Configured() {
		log.Info().Msg("email disabled (RESEND_* not set)")
		return nil
	}
	mailer := notify.NewEmailNotifier(sender, a.cfg.SiteName, a.cfg.SMTP.AdminEmails)
	async := &notify.Async{Deliverer: mailer, Log: log}
	if a.redis == nil {
		return async
	}
	go notify.RunWorker(ctx, a.redis, cache.NotificationQueue, mailer, log)
	return &notify.Queued{Redis: a.redis, Queue: cache.NotificationQueue, Fallback: async, Log: log}
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one channel sync and print the report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.syncer.Run(ctx)
		if err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Message())
		for _, res := range report.Results {
			if !res.Success {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s\n", res.Category, res.Error)
			}
		}
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return store.RunMigrations(cfg.DatabaseURL, store.MigrationsDir("migrations"))
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		steps, _ := cmd.Flags().GetInt("steps")
		return store.RollbackMigrations(cfg.DatabaseURL, store.MigrationsDir("migrations"), steps)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		version, dirty, err := store.MigrationVersion(cfg.DatabaseURL, store.MigrationsDir("migrations"))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
		return nil
	},
}
