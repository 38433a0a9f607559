// Package goals parses goals command flags and starts the engine runtime.
package goals

import (
	"context"
	"flag"
	"log"

	entrypoint "github.com/louisbranch/attain.works/internal/platform/cmd"
	"github.com/louisbranch/attain.works/internal/services/goals/app"
	storagesqlite "github.com/louisbranch/attain.works/internal/services/goals/storage/sqlite"
	"github.com/louisbranch/attain.works/internal/services/goals/tasklink"
)

// Config holds goals command configuration.
type Config struct {
	DBPath       string `env:"ATTAIN_WORKS_GOALS_DB_PATH" envDefault:"goals.db"`
	RedisAddr    string `env:"ATTAIN_WORKS_GOALS_REDIS_ADDR"`
	RedisChannel string `env:"ATTAIN_WORKS_GOALS_REDIS_CHANNEL"`
	TrackerURL   string `env:"ATTAIN_WORKS_GOALS_TRACKER_URL"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the goals SQLite database")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for lifecycle notifications (optional)")
	fs.StringVar(&cfg.RedisChannel, "redis-channel", cfg.RedisChannel, "Redis channel for lifecycle notifications")
	fs.StringVar(&cfg.TrackerURL, "tracker-url", cfg.TrackerURL, "External task tracker base URL (optional)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the goals engine and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGoals, func(ctx context.Context) error {
		store, err := storagesqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Printf("close store: %v", err)
			}
		}()

		opts := []app.Option{}
		if cfg.TrackerURL != "" {
			tasks, err := tasklink.NewClient(cfg.TrackerURL, nil)
			if err != nil {
				return err
			}
			opts = append(opts, app.WithTaskChecker(tasks))
		}

		var notifier *app.Notifier
		if cfg.RedisAddr != "" {
			notifier, err = app.NewNotifier(cfg.RedisAddr, cfg.RedisChannel)
			if err != nil {
				return err
			}
			defer func() {
				if err := notifier.Close(); err != nil {
					log.Printf("close notifier: %v", err)
				}
			}()
			opts = append(opts, app.WithLifecyclePublisher(notifier))
		}

		service, err := app.NewService(store, opts...)
		if err != nil {
			return err
		}

		if notifier != nil {
			err := notifier.Listen(ctx, func(notification app.GoalStatusNotification) {
				if err := service.HandleLifecycleNotification(ctx, notification); err != nil {
					log.Printf("apply lifecycle event goal=%s: %v", notification.GoalID, err)
				}
			})
			if err != nil {
				return err
			}
		}

		log.Printf("goals engine ready db=%s redis=%q", cfg.DBPath, cfg.RedisAddr)
		<-ctx.Done()
		return nil
	})
}
