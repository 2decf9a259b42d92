// Package app wires the process dependencies for the fern commands.
package app

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/elastic"
	"github.com/Ramsey-B/fern/pkg/extractor"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	fernredis "github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/syncer"
	"github.com/Ramsey-B/fern/pkg/watermark"
)

const (
	depPostgres = "postgres"
	depRedis    = "redis"
	depElastic  = "elasticsearch"
	depKafka    = "kafka"
	depSyncer   = "syncer"
)

// App holds the started handles. Fields are nil until Start succeeds.
type App struct {
	Config *config.Config
	Logger ectologger.Logger

	DB         *database.Pool
	Redis      *fernredis.Client
	Elastic    *elastic.Client
	Producer   *kafka.Producer
	Watermarks *watermark.RedisStore
	Syncer     *syncer.Orchestrator

	startup *startup.Startup
}

// New registers every dependency a sync needs.
func New(cfg *config.Config, logger ectologger.Logger) *App {
	a := newApp(cfg, logger)
	a.startup.AddDependency(dependency{name: depPostgres, start: a.startPostgres, stop: a.stopPostgres})
	a.startup.AddDependency(dependency{name: depElastic, start: a.startElastic})
	deps := []string{depPostgres, depRedis, depElastic}
	if cfg.KafkaEnabled {
		a.startup.AddDependency(dependency{name: depKafka, start: a.startKafka, stop: a.stopKafka})
		deps = append(deps, depKafka)
	}
	a.startup.AddDependency(dependency{name: depSyncer, dependsOn: deps, start: a.startSyncer})
	return a
}

// NewWatermarks registers only what the watermark commands need.
func NewWatermarks(cfg *config.Config, logger ectologger.Logger) *App {
	return newApp(cfg, logger)
}

func newApp(cfg *config.Config, logger ectologger.Logger) *App {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	a.startup.AddDependency(dependency{name: depRedis, start: a.startRedis, stop: a.stopRedis})
	return a
}

func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

// HealthChecker reports on the started handles.
func (a *App) HealthChecker(version string) *health.Checker {
	checker := health.NewChecker(version).
		AddCheck(depPostgres, pinger(a.DB)).
		AddCheck(depRedis, pinger(a.Redis)).
		AddCheck(depElastic, pinger(a.Elastic))
	return checker
}

// pinger avoids handing the checker a typed nil.
func pinger[P interface {
	comparable
	health.Pinger
}](p P) health.Pinger {
	var zero P
	if p == zero {
		return nil
	}
	return p
}

func (a *App) startPostgres(ctx context.Context) error {
	pool, err := database.Open(a.Config.Database(), a.Logger)
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		_ = pool.Close()
		return err
	}
	a.DB = pool
	a.Logger.WithContext(ctx).Infof("Connected to PostgreSQL at %s:%s", a.Config.DatabaseHost, a.Config.DatabasePort)
	return nil
}

func (a *App) stopPostgres(context.Context) error {
	return a.DB.Close()
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := fernredis.NewClient(ctx, a.Config.Redis(), a.Logger)
	if err != nil {
		return err
	}
	a.Redis = client
	a.Watermarks = watermark.NewRedisStore(client, a.Config.WatermarkKeyPrefix)
	return nil
}

func (a *App) stopRedis(context.Context) error {
	return a.Redis.Close()
}

// startElastic fails when the cluster is unreachable. Missing indices are
// only reported here: the first bulk write to one fails the run.
func (a *App) startElastic(ctx context.Context) error {
	client, err := elastic.NewClient(a.Config.Elastic(), a.Logger)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return err
	}
	for _, index := range []string{a.Config.ElasticMoviesIndex, a.Config.ElasticPersonsIndex, a.Config.ElasticGenresIndex} {
		exists, err := client.IndexExists(ctx, index)
		if err != nil {
			return err
		}
		if !exists {
			a.Logger.WithContext(ctx).WithField("index", index).Warn("Index does not exist")
		}
	}
	a.Elastic = client
	return nil
}

func (a *App) startKafka(context.Context) error {
	a.Producer = kafka.NewProducer(a.Config.Kafka(), a.Logger)
	return nil
}

func (a *App) stopKafka(context.Context) error {
	return a.Producer.Close()
}

func (a *App) startSyncer(context.Context) error {
	runner := pipeline.NewRunner(a.Elastic, pipeline.Config{
		BatchSize:   a.Config.BatchSize,
		Retry:       a.Config.SinkRetry(),
		IsRetryable: elastic.IsRetryable,
	}, a.Logger)

	opts := syncer.Options{
		Indices: syncer.Indices{
			Movies:  a.Config.ElasticMoviesIndex,
			Persons: a.Config.ElasticPersonsIndex,
			Genres:  a.Config.ElasticGenresIndex,
		},
		Locker:  syncer.NewRedisLocker(fernredis.NewLocker(a.Redis, a.Config.LockKeyPrefix)),
		LockTTL: a.Config.SyncLockTTL,
	}
	if a.Producer != nil {
		opts.Notifier = a.Producer
	}

	a.Syncer = syncer.New(extractor.New(a.DB, a.Logger, a.Config.Extractor()), a.Watermarks, runner, a.Logger, opts)
	return nil
}

type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d dependency) GetName() string     { return d.name }
func (d dependency) DependsOn() []string { return d.dependsOn }

func (d dependency) Start(ctx context.Context) error { return d.start(ctx) }

func (d dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}
