// OrderService 主程序
// 功能：动态定价与下单服务，包括定价规则、商品、购物车、地址与订单
// 架构：基于 DDD + gin + gRPC 健康检查 + Kafka outbox
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	addressapp "github.com/wyfcoding/ecommerce/internal/address/application"
	addressmysql "github.com/wyfcoding/ecommerce/internal/address/infrastructure/persistence/mysql"
	addresshttp "github.com/wyfcoding/ecommerce/internal/address/interfaces/http"
	cartapp "github.com/wyfcoding/ecommerce/internal/cart/application"
	cartmysql "github.com/wyfcoding/ecommerce/internal/cart/infrastructure/persistence/mysql"
	carthttp "github.com/wyfcoding/ecommerce/internal/cart/interfaces/http"
	catalogapp "github.com/wyfcoding/ecommerce/internal/catalog/application"
	catalogmysql "github.com/wyfcoding/ecommerce/internal/catalog/infrastructure/persistence/mysql"
	cataloghttp "github.com/wyfcoding/ecommerce/internal/catalog/interfaces/http"
	orderapp "github.com/wyfcoding/ecommerce/internal/order/application"
	orderdomain "github.com/wyfcoding/ecommerce/internal/order/domain"
	"github.com/wyfcoding/ecommerce/internal/order/infrastructure/messaging"
	ordermysql "github.com/wyfcoding/ecommerce/internal/order/infrastructure/persistence/mysql"
	orderhttp "github.com/wyfcoding/ecommerce/internal/order/interfaces/http"
	"github.com/wyfcoding/ecommerce/internal/payment/infrastructure/gateway"
	pricingapp "github.com/wyfcoding/ecommerce/internal/pricing/application"
	pricingdomain "github.com/wyfcoding/ecommerce/internal/pricing/domain"
	pricingmysql "github.com/wyfcoding/ecommerce/internal/pricing/infrastructure/persistence/mysql"
	pricingredis "github.com/wyfcoding/ecommerce/internal/pricing/infrastructure/persistence/redis"
	pricinghttp "github.com/wyfcoding/ecommerce/internal/pricing/interfaces/http"
	"github.com/wyfcoding/ecommerce/pkg/cache"
	"github.com/wyfcoding/ecommerce/pkg/config"
	"github.com/wyfcoding/ecommerce/pkg/db"
	"github.com/wyfcoding/ecommerce/pkg/logger"
	"github.com/wyfcoding/ecommerce/pkg/metrics"
	"github.com/wyfcoding/ecommerce/pkg/middleware"
	"github.com/wyfcoding/ecommerce/pkg/money"
	"github.com/wyfcoding/ecommerce/pkg/mq"
	"github.com/wyfcoding/ecommerce/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"gorm.io/gorm"
)

// handlers 所有 HTTP 处理器
type handlers struct {
	pricing *pricinghttp.PricingHandler
	catalog *cataloghttp.CatalogHandler
	cart    *carthttp.CartHandler
	address *addresshttp.AddressHandler
	order   *orderhttp.OrderHandler
}

func main() {
	// 1. 加载配置
	configPath := "configs/order/config.toml"
	if p := os.Getenv("APP_CONFIG"); p != "" {
		configPath = p
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	logger.Info(ctx, "Starting OrderService",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	})
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		if err := migrate(database.DB); err != nil {
			logger.Fatal(ctx, "Failed to migrate schema", "error", err)
		}
	}

	// 4. 初始化 Redis（可选）
	var (
		redisCache  *cache.RedisCache
		rateLimiter ratelimit.RateLimiter
	)
	if cfg.Redis.Host != "" {
		redisCache, err = cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
		}
		defer redisCache.Close()
		rateLimiter = ratelimit.NewRedisRateLimiter(redisCache.GetClient(), cfg.RateLimit.Prefix)
	}

	// 5. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		if err := metricsInstance.Register(nil); err != nil {
			logger.Fatal(ctx, "Failed to register metrics", "error", err)
		}
		metricsServer = metrics.NewHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path)
		metrics.Serve(metricsServer)
	}

	// 6. 组装仓储与应用服务
	gdb := database.DB
	var rules pricingdomain.RuleRepository = pricingmysql.NewRuleRepository(gdb)
	if redisCache != nil && cfg.Pricing.RuleCacheTTL > 0 {
		rules = pricingredis.NewCachedRuleRepository(rules, redisCache, time.Duration(cfg.Pricing.RuleCacheTTL)*time.Second)
	}
	pricingSvc := pricingapp.NewPricingService(rules, pricingmysql.NewTemplateRepository(gdb), metricsInstance)

	products := catalogmysql.NewProductRepository(gdb)
	carts := cartmysql.NewCartRepository(gdb)
	addresses := addressmysql.NewAddressRepository(gdb)
	orders := ordermysql.NewOrderRepository(gdb)

	policy, err := orderPolicy(cfg.Order)
	if err != nil {
		logger.Fatal(ctx, "Invalid order policy", "error", err)
	}
	orderCmd := orderapp.NewOrderCommandService(orderapp.Dependencies{
		Orders:    orders,
		Products:  products,
		Carts:     carts,
		Addresses: addresses,
		Verifier:  gateway.NewClient(cfg.Payment),
		Publisher: messaging.NewOutboxEventPublisher(gdb),
		Tx:        db.NewTransactionManager(gdb),
		Metrics:   metricsInstance,
	}, orderapp.Options{
		Policy:           policy,
		ReturnWindowDays: cfg.Order.ReturnWindowDays,
		PaymentTimeout:   time.Duration(cfg.Payment.Timeout) * time.Millisecond,
		CartClearTimeout: time.Duration(cfg.Order.CartClearTimeout) * time.Second,
	})

	h := handlers{
		pricing: pricinghttp.NewPricingHandler(pricingSvc),
		catalog: cataloghttp.NewCatalogHandler(catalogapp.NewCatalogService(products, pricingSvc)),
		cart:    carthttp.NewCartHandler(cartapp.NewCartService(carts, products)),
		address: addresshttp.NewAddressHandler(addressapp.NewAddressService(addresses)),
		order:   orderhttp.NewOrderHandler(orderCmd, orderapp.NewOrderQueryService(orders)),
	}

	// 7. outbox 投递
	var producer *mq.KafkaProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = mq.NewProducer(mq.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			MaxRetries:   cfg.Kafka.MaxRetries,
			RetryBackoff: cfg.Kafka.RetryBackoff,
		})
		if err != nil {
			logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
		}
		defer producer.Close()

		relay := messaging.NewRelay(gdb, producer, messaging.RelayConfig{
			Interval:    time.Duration(cfg.Outbox.Interval) * time.Millisecond,
			BatchSize:   cfg.Outbox.BatchSize,
			TopicPrefix: cfg.Outbox.TopicPrefix,
			MaxAttempts: cfg.Outbox.MaxAttempts,
		}, metricsInstance)
		go relay.Run(ctx)
		go cleanupOutbox(ctx, relay)
	} else {
		logger.Warn(ctx, "Kafka brokers not configured, outbox messages stay pending")
	}

	// 8. 创建 HTTP 与 gRPC 服务器
	httpServer := createHTTPServer(cfg, h, rateLimiter, metricsInstance)
	grpcServer, healthServer := createGRPCServer(cfg)

	go func() {
		logger.Info(ctx, "Starting HTTP server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal(ctx, "Failed to listen on gRPC address", "error", err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "gRPC server error", "error", err)
		}
	}()

	// 9. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down OrderService")
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	orderCmd.Wait()
	stop()
	logger.Info(ctx, "OrderService stopped")
}

func migrate(gdb *gorm.DB) error {
	for _, m := range []func(*gorm.DB) error{
		pricingmysql.AutoMigrate,
		catalogmysql.AutoMigrate,
		cartmysql.AutoMigrate,
		addressmysql.AutoMigrate,
		ordermysql.AutoMigrate,
		messaging.AutoMigrate,
	} {
		if err := m(gdb); err != nil {
			return err
		}
	}
	return nil
}

// orderPolicy 由配置构造订单金额策略，未配置的项保留默认值
func orderPolicy(c config.OrderConfig) (orderdomain.OrderPolicy, error) {
	p := orderdomain.DefaultPolicy()
	if c.DiscountRate != "" {
		rate, err := decimal.NewFromString(c.DiscountRate)
		if err != nil {
			return p, fmt.Errorf("invalid discount_rate: %w", err)
		}
		p.DiscountRate = rate
	}
	if c.TaxRate != "" {
		rate, err := decimal.NewFromString(c.TaxRate)
		if err != nil {
			return p, fmt.Errorf("invalid tax_rate: %w", err)
		}
		p.TaxRate = rate
	}
	if c.FreeShippingThreshold > 0 {
		p.FreeShippingThreshold = money.Amount(c.FreeShippingThreshold)
	}
	if c.ShippingFee > 0 {
		p.ShippingFee = money.Amount(c.ShippingFee)
	}
	return p, nil
}

// cleanupOutbox 定期清理一天前已投递的 outbox 消息
func cleanupOutbox(ctx context.Context, relay *messaging.Relay) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := relay.Cleanup(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				logger.Warn(ctx, "outbox cleanup failed", "error", err)
				continue
			}
			logger.Debug(ctx, "outbox cleanup finished", "removed", n)
		}
	}
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(cfg *config.Config, h handlers, rateLimiter ratelimit.RateLimiter, m *metrics.Metrics) *http.Server {
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(m.GinMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	root := router.Group("")
	h.pricing.RegisterRoutes(root)
	h.catalog.RegisterRoutes(root)
	h.cart.RegisterRoutes(root)
	h.address.RegisterRoutes(root)
	h.order.RegisterRoutes(root)

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建只暴露健康检查与反射的 gRPC 服务器
func createGRPCServer(cfg *config.Config) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
	}
	server := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server, healthServer
}
