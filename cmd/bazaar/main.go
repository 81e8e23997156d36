package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bizzbazzar/bazaar/pkg/attachments"
	"github.com/bizzbazzar/bazaar/pkg/broker"
	"github.com/bizzbazzar/bazaar/pkg/bus"
	"github.com/bizzbazzar/bazaar/pkg/channels"
	"github.com/bizzbazzar/bazaar/pkg/classifier"
	"github.com/bizzbazzar/bazaar/pkg/config"
	"github.com/bizzbazzar/bazaar/pkg/ledger"
	"github.com/bizzbazzar/bazaar/pkg/logger"
	"github.com/bizzbazzar/bazaar/pkg/scheduler"
	"github.com/bizzbazzar/bazaar/pkg/store"
)

func main() {
	fs := flag.NewFlagSet("bazaar", flag.ContinueOnError)
	configPath := fs.String("config", "~/.bazaar/config.json", "path to the JSON config file")
	writeDefault := fs.Bool("init", false, "write the default config to -config and exit")
	console := fs.Bool("console", false, "enable the console channel regardless of the config")
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	path := expandHome(*configPath)

	if *writeDefault {
		if err := config.SaveConfig(path, config.DefaultConfig()); err != nil {
			fmt.Fprintf(os.Stderr, "write config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return
	}

	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *console {
		cfg.Channels.Console.Enabled = true
	}
	if err := setupLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.ErrorCF("main", "Bazaar stopped with an error", map[string]interface{}{
			"error": err.Error(),
		})
		logger.Sync()
		os.Exit(1)
	}
	logger.InfoC("main", "Bazaar stopped")
}

func setupLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if !cfg.Logging.FileEnabled {
		return nil
	}
	return logger.EnableFileLoggingWithRotation(
		cfg.LogFilePath(),
		cfg.Logging.RotationEnabled,
		cfg.Logging.MaxSizeMB,
		cfg.Logging.MaxAgeDays,
	)
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := scheduler.ValidateCron(cfg.Broker.SweepCron); err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg.Storage, cfg.StorageDir())
	if err != nil {
		return err
	}
	st := store.New(backend)
	defer st.Close()
	if err := st.Load(ctx); err != nil {
		return fmt.Errorf("load collections: %w", err)
	}

	led, err := ledger.Open(ctx, backend)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	images, err := attachments.NewStore(filepath.Join(cfg.WorkspacePath(), "images"))
	if err != nil {
		return fmt.Errorf("open image store: %w", err)
	}
	cls, err := classifier.New(cfg.Classifier)
	if err != nil {
		return fmt.Errorf("build classifier: %w", err)
	}
	sched := newScheduler(cfg.Scheduler)
	defer sched.Stop()

	mb := bus.NewMessageBus()
	defer mb.Close()

	manager := channels.NewManager()
	var consoleDone <-chan struct{}
	if tg := cfg.Channels.Telegram; tg.Enabled {
		ch, err := channels.NewTelegramChannel(tg, mb, filepath.Join(cfg.WorkspacePath(), "media"))
		if err != nil {
			return err
		}
		manager.Register(ch)
	}
	if cfg.Channels.Console.Enabled {
		ch := channels.NewConsoleChannel(cfg.Channels.Console, mb)
		consoleDone = ch.Done()
		manager.Register(ch)
	}

	b := broker.New(broker.Deps{
		Store:      st,
		Classifier: cls,
		Scheduler:  sched,
		Outbox:     manager,
		Ledger:     led,
		Images:     images,
	}, broker.OptionsFromConfig(cfg))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := b.Start(ctx); err != nil {
		return err
	}
	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		manager.StopAll(stopCtx)
	}()

	go func() {
		err := scheduler.RunCron(ctx, cfg.Broker.SweepCron, func(ctx context.Context, now time.Time) {
			b.Sweep(ctx, now)
		})
		if err != nil {
			logger.ErrorCF("main", "Sweep loop stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx, mb) }()

	logger.InfoCF("main", "Bazaar is running", map[string]interface{}{
		"channels":  manager.Names(),
		"storage":   cfg.Storage.Backend,
		"scheduler": cfg.Scheduler.Backend,
		"sweep":     cfg.Broker.SweepCron,
	})

	select {
	case <-ctx.Done():
	case <-consoleDone:
		logger.InfoC("main", "Console closed")
	case err := <-runErr:
		if err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

func openBackend(ctx context.Context, cfg config.StorageConfig, dir string) (store.Backend, error) {
	switch cfg.Backend {
	case "", "file":
		return store.NewFileBackend(dir)
	case "redis":
		return store.NewRedisBackend(ctx, store.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
	case "memory":
		logger.WarnC("main", "Memory storage selected; nothing survives a restart")
		return store.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newScheduler(cfg config.SchedulerConfig) scheduler.Scheduler {
	if cfg.Backend == "asynq" {
		return scheduler.NewAsynqScheduler(scheduler.AsynqOptions{
			Addr:        cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			Queue:       cfg.Queue,
			Concurrency: cfg.Concurrency,
		})
	}
	return scheduler.NewTimerScheduler()
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
