package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"example.com/tinyfeed/cmd/server"
	"example.com/tinyfeed/cmd/worker"
	appkafka "example.com/tinyfeed/internal/broker"
	config "example.com/tinyfeed/internal/init"
	"example.com/tinyfeed/internal/logger"
	"example.com/tinyfeed/internal/seed"
	"example.com/tinyfeed/internal/store"
	"github.com/spf13/cobra"
)

var (
	cfg  *config.Config
	logg = logger.New()

	workerCount  int
	jobQueueSize int
	seedParams   = seed.DefaultParams()
)

var rootCmd = &cobra.Command{
	Use:   "tinyfeed",
	Short: "tinyfeed - follow people, post, read a merged timeline",
	Long: `tinyfeed serves a minimal social feed over a pluggable store
(memory, cassandra, mongodb, datastore, postgres, sqlite).

Run without a subcommand to start the component named by MODE
(server or worker).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Init()
		if err := logger.Init(cfg.LogLevel, cfg.SentryDSN); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		switch cfg.Mode {
		case "server":
			return runServer(cmd, args)
		case "worker":
			return runWorker(cmd, args)
		default:
			return fmt.Errorf("unknown mode: %s", cfg.Mode)
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServer,
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume seed jobs from Kafka",
	RunE:  runWorker,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic users, follows and posts in the configured store",
	Long: `Creates <prefix>0..<prefix>N-1 users (existing ones are skipped),
gives each new user a random follow set and appends the requested number
of posts. Re-running with the same prefix only adds posts.`,
	RunE: runSeed,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the Cassandra schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.RunMigrations(cfg); err != nil {
			return err
		}
		logg.Info("main", "Migrations applied")
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerCount, "workers", 0, "concurrent seed jobs (0 = NumCPU)")
	workerCmd.Flags().IntVar(&jobQueueSize, "queue", 0, "job queue size (0 = 10 per worker)")

	seedCmd.Flags().IntVar(&seedParams.Users, "users", seedParams.Users, "number of users")
	seedCmd.Flags().IntVar(&seedParams.Posts, "posts", seedParams.Posts, "number of posts")
	seedCmd.Flags().IntVar(&seedParams.FollowsMin, "follows-min", seedParams.FollowsMin, "minimum follows per new user")
	seedCmd.Flags().IntVar(&seedParams.FollowsMax, "follows-max", seedParams.FollowsMax, "maximum follows per new user")
	seedCmd.Flags().StringVar(&seedParams.Prefix, "prefix", seedParams.Prefix, "user name prefix")

	rootCmd.AddCommand(serveCmd, workerCmd, seedCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func kafkaConfig() appkafka.KafkaConfig {
	return appkafka.KafkaConfig{
		Brokers:      []string{cfg.KafkaBroker},
		Topic:        cfg.KafkaTopic,
		Partition:    cfg.KafkaPartition,
		GroupID:      cfg.KafkaGroupID,
		WriteTimeout: cfg.KafkaWriteTO,
		ReadTimeout:  cfg.KafkaReadTO,
	}
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store %q connection failed: %w", cfg.StoreDriver, err)
	}
	return st, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var writer appkafka.KafkaWriter
	if cfg.AsyncSeedEnabled() {
		w, err := appkafka.NewKafkaWriter(kafkaConfig())
		if err != nil {
			return fmt.Errorf("kafka writer init failed: %w", err)
		}
		defer w.Close()
		writer = w
	}

	if err := server.Run(ctx, st, writer, cfg); err != nil {
		return err
	}
	logg.Info("main", "Shutdown completed")
	return nil
}

func runWorker(cmd *cobra.Command, args []string) error {
	if !cfg.AsyncSeedEnabled() {
		return fmt.Errorf("worker needs KAFKA_BROKER to be set")
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}

	w := worker.New(st, appkafka.NewKafkaReader(kafkaConfig()), workerCount, jobQueueSize)
	w.Run(ctx)
	if err := w.Close(); err != nil {
		return err
	}
	logg.Info("main", "Shutdown completed")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := seed.New(st, nil).Run(ctx, seedParams)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
}
