package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/theru/fleet-ads/internal/config"
	"github.com/theru/fleet-ads/internal/repository"
	"github.com/theru/fleet-ads/internal/sweeper"
	"github.com/theru/fleet-ads/pkg/logger"
	"github.com/theru/fleet-ads/pkg/pg"
	"github.com/theru/fleet-ads/pkg/prom"
	"github.com/theru/fleet-ads/pkg/redis"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	deviceRepo := repository.NewDeviceRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	heartbeatRepo := repository.NewHeartbeatRepository(db)

	// Initialize idempotency service
	idempotencyConfig := sweeper.DefaultIdempotencyConfig()
	idempotencyService := sweeper.NewIdempotencyService(redisAdap, idempotencyConfig)

	service, err := sweeper.NewSweeperService(redisAdap, deviceRepo, campaignRepo)
	if err != nil {
		logger.Error("failed to create the sweeper", "error", err)
		return
	}
	service.RegisterProcessor(sweeper.NewHeartbeatProcessor(heartbeatRepo, idempotencyService))

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

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start sweeper", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
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
