// Command accounts-devserver wires the account lifecycle service for local
// and single-node deployments: document store, change feed, identity
// provider, SMS sender, HTTP API and the daily reconcile sweep.
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

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	accountshttp "github.com/kehilla-app/accounts/adapters/http"
	"github.com/kehilla-app/accounts/changefeed"
	"github.com/kehilla-app/accounts/config"
	"github.com/kehilla-app/accounts/core"
	"github.com/kehilla-app/accounts/docstore"
	memorystore "github.com/kehilla-app/accounts/docstore/memory"
	mongostore "github.com/kehilla-app/accounts/docstore/mongo"
	pgstore "github.com/kehilla-app/accounts/docstore/postgres"
	redisstore "github.com/kehilla-app/accounts/docstore/redis"
	memoryidentity "github.com/kehilla-app/accounts/identity/memory"
	"github.com/kehilla-app/accounts/logging"
	"github.com/kehilla-app/accounts/riverjobs"
	"github.com/kehilla-app/accounts/sms"
	"github.com/kehilla-app/accounts/sms/gateway"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "accounts-devserver:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logging.Init(cfg.App.LogPath, cfg.App.Debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	base, pool, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	feed, consume, err := buildFeed(cfg)
	if err != nil {
		return err
	}
	store := docstore.NewPublished(base, feed, "users")

	var sender sms.Sender
	if cfg.SMS.GatewayURL != "" {
		sender = gateway.New(cfg.SMS.GatewayURL, cfg.SMS.Token, cfg.SMS.Sender)
	} else {
		log.Warn("no SMS gateway configured, codes are logged instead of sent")
		sender = sms.LogSender{Log: log}
	}

	svc := core.NewService(store, core.Options{
		CountryCode: cfg.OTP.CountryCode,
		OTPWindow:   cfg.OTP.OTPWindow(),
		OTPQuota:    cfg.OTP.Quota,
		OTPTTL:      cfg.OTP.OTPTTL(),
	}).
		WithIdentity(memoryidentity.New()).
		WithSMSSender(sender).
		WithLogger(log)

	go func() {
		if err := consume(ctx, svc, log); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("change consumer stopped", zap.Error(err))
		}
	}()

	stopSweep, err := startSweep(ctx, cfg, svc, pool, log)
	if err != nil {
		return err
	}
	defer stopSweep()

	api := accountshttp.NewService(svc).
		WithJWTSecret([]byte(cfg.Auth.JWTSecret)).
		WithLogger(log)

	root := chi.NewRouter()
	root.Mount("/", api.Router())
	srv := &http.Server{
		Addr:              cfg.App.ListenAddr,
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.App.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (docstore.Store, *pgxpool.Pool, error) {
	switch cfg.Store.Backend {
	case "memory", "":
		log.Warn("using in-memory document store, data does not survive restarts")
		return memorystore.New(), nil, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
		return redisstore.New(rdb), nil, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		st := pgstore.New(pool)
		if err := st.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return st, pool, nil
	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Store.MongoURL))
		if err != nil {
			return nil, nil, err
		}
		return mongostore.New(client.Database(cfg.Store.MongoDB)), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

type consumeFunc func(ctx context.Context, h changefeed.Handler, log *zap.Logger) error

func buildFeed(cfg *config.Config) (changefeed.Publisher, consumeFunc, error) {
	switch cfg.Feed.Backend {
	case "memory", "":
		feed := changefeed.NewMemoryFeed(0)
		return feed, feed.Consume, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Feed.RedisAddr})
		feed := changefeed.NewRedisFeed(rdb, cfg.Feed.Stream, cfg.Feed.Group)
		consume := func(ctx context.Context, h changefeed.Handler, log *zap.Logger) error {
			return feed.Consume(ctx, cfg.Feed.Consumer, h, log)
		}
		return feed, consume, nil
	default:
		return nil, nil, fmt.Errorf("unknown feed backend %q", cfg.Feed.Backend)
	}
}

// startSweep schedules the daily reconcile sweep. With Postgres available it
// runs as a River periodic job; otherwise a plain in-process cron entry calls
// the same entry point.
func startSweep(ctx context.Context, cfg *config.Config, svc *core.Service, pool *pgxpool.Pool, log *zap.Logger) (func(), error) {
	if pool != nil {
		workers := river.NewWorkers()
		riverjobs.RegisterReconcileAllWorker(workers, svc)
		rc, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
			Queues:  map[string]river.QueueConfig{river.QueueDefault: {MaxWorkers: 4}},
			Workers: workers,
		})
		if err != nil {
			return nil, err
		}
		if err := riverjobs.AddReconcileAllPeriodicJob(rc, cfg.Sweep.CronSpec, cfg.Sweep.RunOnStart); err != nil {
			return nil, err
		}
		if err := rc.Start(ctx); err != nil {
			return nil, err
		}
		return func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = rc.Stop(stopCtx)
		}, nil
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Sweep.CronSpec, func() {
		if _, err := svc.ReconcileAll(context.Background()); err != nil {
			log.Error("reconcile sweep failed", zap.Error(err))
		}
	}); err != nil {
		return nil, err
	}
	c.Start()
	if cfg.Sweep.RunOnStart {
		go func() {
			if _, err := svc.ReconcileAll(ctx); err != nil {
				log.Error("reconcile sweep failed", zap.Error(err))
			}
		}()
	}
	return func() { c.Stop() }, nil
}
