package cmd

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"example.com/backstage/services/saga/api"
	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/database"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/handlers"
	"example.com/backstage/services/saga/messaging"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/projections"
	"example.com/backstage/services/saga/replay"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/search"
	"example.com/backstage/services/saga/tracing"
	"example.com/backstage/services/saga/tracking"
)

const eventSource = "saga-service"

// application holds everything the server, worker and replay commands share
type application struct {
	cfg      config.Config
	db       *gorm.DB
	readDB   *gorm.DB
	bus      *bus.InProcessBus
	cache    *cache.RedisCache
	tracer   tracing.Tracer
	gatherer prometheus.Gatherer
	azure    *messaging.AzureClient
	sender   *azservicebus.Sender
	services api.Services
}

func newApplication(cfg config.Config, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*application, error) {
	db, readDB, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, err
	}
	app := &application{cfg: cfg, db: db, readDB: readDB, gatherer: gatherer}

	if cfg.DB.EnableMigrations {
		if err := database.AutoMigrate(db); err != nil {
			app.close(context.Background())
			return nil, errors.Wrap(err, "failed to migrate database")
		}
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = cache.Disabled()
	}
	app.cache = redisCache

	app.tracer, err = tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		app.tracer = tracing.Noop()
	}

	indexer, err := search.NewIndexer(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch, continuing without search functionality")
		indexer = search.NoopIndexer{}
	}
	elastic, _ := indexer.(*search.ElasticClient)

	m := metrics.New(reg)
	app.bus = bus.NewInProcessBus()

	events := eventstore.NewGormEventRepository(db)
	eventViews := eventstore.NewGormEventViewRepository(db, readDB)
	instances := repositories.NewGormSagaInstanceRepository(db)
	instanceViews := repositories.NewGormSagaInstanceViewRepository(db, readDB)
	steps := repositories.NewGormSagaStepRepository(db)
	stepViews := repositories.NewGormSagaStepViewRepository(db, readDB)
	logs := repositories.NewGormSagaLogRepository(db)
	logViews := repositories.NewGormSagaLogViewRepository(db, readDB)

	projections.Register(app.bus,
		projections.NewEventProjector(eventViews, indexer),
		projections.NewSagaInstanceProjector(instanceViews, redisCache, indexer),
		projections.NewSagaStepProjector(stepViews, redisCache),
		projections.NewSagaLogProjector(logViews),
	)
	tracking.NewService(events, app.bus, m).Register(app.bus)

	if cfg.Azure.Enabled {
		if err := app.connectAzure(); err != nil {
			app.close(context.Background())
			return nil, err
		}
		messaging.NewEventForwarder(app.sender, eventSource).Register(app.bus)
	}

	instanceHandler := handlers.NewSagaInstanceHandler(instances, steps, app.bus, m, app.tracer)
	stepHandler := handlers.NewSagaStepHandler(steps, instances, app.bus, m, app.tracer)
	logHandler := handlers.NewSagaLogHandler(logs, instances, steps, app.bus, m, app.tracer)

	app.services = api.Services{
		Instances:       instanceHandler,
		Steps:           stepHandler,
		Logs:            logHandler,
		EventQueries:    handlers.NewEventQueries(eventViews),
		InstanceQueries: handlers.NewSagaInstanceQueries(instanceViews, redisCache),
		StepQueries:     handlers.NewSagaStepQueries(stepViews, redisCache),
		LogQueries:      handlers.NewSagaLogQueries(logViews),
		Processor:       messaging.NewProcessor(instanceHandler, stepHandler, logHandler),
		Replay:          replay.NewService(events, eventViews, app.bus, cfg.Replay, m, app.tracer),
		Search:          elastic,
	}
	return app, nil
}

func (a *application) connectAzure() error {
	client, err := messaging.NewAzureClient(a.cfg.Azure)
	if err != nil {
		return errors.Wrap(err, "failed to initialize Azure Service Bus")
	}
	a.azure = client

	a.sender, err = client.NewSender(a.cfg.Azure.EventsQueueName)
	if err != nil {
		return errors.Wrapf(err, "failed to create sender for %s", a.cfg.Azure.EventsQueueName)
	}
	return nil
}

// close releases every connection opened by newApplication
func (a *application) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	if a.sender != nil {
		err = multierr.Append(err, a.sender.Close(ctx))
	}
	if a.azure != nil {
		err = multierr.Append(err, a.azure.Close(ctx))
	}
	if a.cache != nil {
		err = multierr.Append(err, a.cache.Close())
	}
	if a.tracer != nil {
		a.tracer.Close()
	}
	if a.readDB != nil && a.readDB != a.db {
		err = multierr.Append(err, database.Close(a.readDB))
	}
	if a.db != nil {
		err = multierr.Append(err, database.Close(a.db))
	}
	if err != nil {
		log.Error().Err(err).Msg("Failed to release resources")
	}
	return err
}
