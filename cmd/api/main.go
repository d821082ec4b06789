package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/theru/fleet-ads/internal/auth"
	"github.com/theru/fleet-ads/internal/config"
	"github.com/theru/fleet-ads/internal/handlers"
	"github.com/theru/fleet-ads/internal/queue"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/internal/services"
	"github.com/theru/fleet-ads/internal/storage"
	xhttp "github.com/theru/fleet-ads/pkg/http"
	"github.com/theru/fleet-ads/pkg/logger"
	"github.com/theru/fleet-ads/pkg/pg"
	"github.com/theru/fleet-ads/pkg/prom"
	"github.com/theru/fleet-ads/pkg/redis"
	"github.com/valyala/fasthttp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Server.MaxRequestBodySize = config.Get().HttpMaxRequestBodySize
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(adminAPIGuard([]byte(config.Get().JWTSecret)))
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	heartbeatQ, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
	}

	store, err := storage.NewMinioStore(storage.Config{
		Endpoint:  config.Get().StorageEndpoint,
		AccessKey: config.Get().StorageAccessKey,
		SecretKey: config.Get().StorageSecretKey,
		Bucket:    config.Get().StorageBucket,
		UseSSL:    config.Get().StorageUseSSL,
	})
	if err != nil {
		logger.Error("failed connecting to object storage", "error", err)
		return
	}
	bucketCtx, cancelBucket := context.WithTimeout(context.Background(), time.Second*10)
	if err := store.EnsureBucket(bucketCtx); err != nil {
		cancelBucket()
		logger.Error("failed ensuring storage bucket", "error", err)
		return
	}
	cancelBucket()

	driverRepo := repository.NewDriverRepository(db)
	clientRepo := repository.NewClientRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	adRepo := repository.NewAdRepository(db)
	impressionRepo := repository.NewImpressionRepository(db)

	// services
	deviceService := services.NewDeviceService(deviceRepo, redisAdap, heartbeatQ, config.Get().DeviceOfflineThreshold)
	driverService := services.NewDriverService(driverRepo, deviceRepo)
	clientService := services.NewClientService(clientRepo)
	campaignService := services.NewCampaignService(campaignRepo, clientRepo)
	adService := services.NewAdService(adRepo, campaignService, store)
	analyticsService := services.NewAnalyticsService(impressionRepo, deviceRepo, campaignRepo, clientRepo, adRepo)
	healthService := services.NewHealthService(redisAdap)

	// v1 handlers
	driverHandler := handlers.NewDriverHandler(driverService)
	clientHandler := handlers.NewClientHandler(clientService)
	deviceHandler := handlers.NewDeviceHandler(deviceService)
	campaignHandler := handlers.NewCampaignHandler(campaignService)
	adHandler := handlers.NewAdHandler(adService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)
	adminHandler := handlers.NewAdminHandler(deviceService)
	deviceAPIHandler := handlers.NewDeviceAPIHandler(deviceService, adService, analyticsService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterDriverRoutes(g, driverHandler)
	handlers.RegisterClientRoutes(g, clientHandler)
	handlers.RegisterDeviceRoutes(g, deviceHandler)
	handlers.RegisterCampaignRoutes(g, campaignHandler)
	handlers.RegisterAdRoutes(g, adHandler)
	handlers.RegisterAnalyticsRoutes(g, analyticsHandler)
	handlers.RegisterAdminRoutes(g, adminHandler)

	d := s.Router.Group("/api")
	handlers.RegisterDeviceAPIRoutes(d, deviceAPIHandler)
	handlers.RegisterHealthRoutes(d, healthHandler)

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	// Create new server
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

// adminAPIGuard protects /api/v1 with bearer JWT. Reads need the customer
// role, everything else needs admin. The device-facing /api/device routes
// authenticate with the device code/secret headers instead.
func adminAPIGuard(secret []byte) xhttp.MiddlewareFunc {
	bearer := auth.BearerAuth(secret)
	requireAdmin := auth.RequireRole(auth.RoleAdmin)
	requireCustomer := auth.RequireRole(auth.RoleCustomer)

	return func(next xhttp.RequestHandler) xhttp.RequestHandler {
		adminNext := bearer(requireAdmin(next))
		customerNext := bearer(requireCustomer(next))
		return func(ctx *fasthttp.RequestCtx) {
			if !bytes.HasPrefix(ctx.Path(), []byte("/api/v1")) {
				next(ctx)
				return
			}
			if ctx.IsGet() {
				customerNext(ctx)
				return
			}
			adminNext(ctx)
		}
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
