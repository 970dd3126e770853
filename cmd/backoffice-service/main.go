// cmd/backoffice-service/main.go
package main

import (
	"context"

	"backoffice/internal/pkg/bootstrap"
	"backoffice/internal/pkg/database"
	"backoffice/internal/pkg/logger"
	"backoffice/internal/pkg/mq"
	"backoffice/internal/pkg/redis"
	"backoffice/internal/pkg/retry"
	"backoffice/internal/service/order/application"
	"backoffice/internal/service/order/application/ledger"
	"backoffice/internal/service/order/domain"
	"backoffice/internal/service/order/domain/port"
	"backoffice/internal/service/order/infrastructure"
	"backoffice/internal/service/order/infrastructure/adapter"
	"backoffice/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = "backoffice-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Init()
	if err != nil {
		logger.Init("info", serviceName)
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Log.Level, serviceName)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             cfg.App.Port,
		RegisterHandlers: registerHandlers,
	})
}

// registerHandlers 在 tracer 初始化之后组装依赖，可选组件未配置时保持为 nil 接口。
func registerHandlers(appCtx bootstrap.AppCtx) error {
	cfg := appCtx.Config
	log := logger.Ctx(context.Background())
	tracer := otel.Tracer(serviceName)

	// 1. 存储：一个工作单元就是一个数据库事务
	uow, err := openStore(appCtx)
	if err != nil {
		return err
	}

	// 2. 实时订单推送，Run 随服务关停结束
	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := adapter.NewOrderFeedHub()
	go hub.Run(hubCtx)
	appCtx.OnShutdown("order feed hub", func(context.Context) error {
		stopHub()
		return nil
	})

	// 3. 通知：配置了 Kafka 时经主题发布并由消费者转发给 hub，否则直接推送
	var notifier port.NotificationProducer = hub
	if brokers := cfg.Infra.Kafka.Brokers; len(brokers) > 0 {
		writer := mq.NewKafkaWriter(brokers, cfg.Infra.Kafka.OrderEventsTopic)
		appCtx.OnShutdown("kafka writer", func(context.Context) error { return writer.Close() })
		notifier = adapter.NewNotificationKafkaAdapter(writer)

		reader := mq.NewKafkaReader(brokers, cfg.Infra.Kafka.OrderEventsTopic, cfg.Infra.Kafka.FeedGroupID)
		consumer := infrastructure.NewOrderFeedConsumer(reader, hub)
		consumerCtx, stopConsumer := context.WithCancel(context.Background())
		consumer.Start(consumerCtx)
		appCtx.OnShutdown("order feed consumer", func(context.Context) error {
			stopConsumer()
			return consumer.Stop()
		})
		log.Info().Strs("brokers", brokers).Str("topic", cfg.Infra.Kafka.OrderEventsTopic).Msg("order events published to kafka")
	}

	// 4. 幂等键存储是可选的
	var idempotency port.IdempotencyStore
	if addrs := cfg.Infra.Redis.Addrs; len(addrs) > 0 {
		redisClient, err := redis.NewClientWithOptions(addrs, cfg.Infra.Redis.Password)
		if err != nil {
			return err
		}
		appCtx.OnShutdown("redis", func(context.Context) error { return redisClient.Close() })
		store, err := adapter.NewIdempotencyRedisAdapter(redisClient, cfg.Order.PendingClaimTTL(), cfg.Order.IdempotencyTTL)
		if err != nil {
			return err
		}
		idempotency = store
	}

	// 5. 服务端税费/折扣规则是可选的
	var adjuster port.LineAdjuster
	celAdjuster, err := adapter.NewCELLineAdjuster(cfg.Pricing.TaxExpr, cfg.Pricing.DiscountExpr)
	if err != nil {
		return err
	}
	if celAdjuster != nil {
		adjuster = celAdjuster
		log.Info().Msg("server-side line pricing rules enabled")
	}

	// 6. 应用服务与 HTTP 路由
	policy := retry.Policy{
		MaxAttempts:     cfg.Order.MaxAttempts,
		InitialInterval: cfg.Order.RetryInitialInterval,
		MaxInterval:     cfg.Order.RetryMaxInterval,
	}
	l := ledger.NewLedger(tracer)
	customers := application.NewCustomerResolver(uow, tracer)
	orders := application.NewOrderApplicationService(uow, l, customers, cfg.Order.ProcessingTimeout, policy, tracer, idempotency, adjuster, notifier)
	inventory := application.NewInventoryApplicationService(uow, l, policy, tracer)

	interfaces.NewOrderHandler(orders, inventory, hub).RegisterRoutes(appCtx.Mux)
	return nil
}

func openStore(appCtx bootstrap.AppCtx) (domain.UnitOfWork, error) {
	cfg := appCtx.Config.Database
	if cfg.Driver != "mysql" {
		logger.Ctx(context.Background()).Warn().Msg("using in-memory store, data is lost on restart")
		return infrastructure.NewMemoryStore(), nil
	}

	db, err := database.OpenMySQL(cfg)
	if err != nil {
		return nil, err
	}
	appCtx.OnShutdown("mysql", func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if cfg.AutoMigrate {
		if err := infrastructure.Migrate(db); err != nil {
			return nil, err
		}
	}
	return infrastructure.NewGormUnitOfWork(db), nil
}
