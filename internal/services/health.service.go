package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/theru/fleet-ads/pkg/redis"
)

type HealthService struct {
	cache redis.RedisAdapter
}

func NewHealthService(cache redis.RedisAdapter) *HealthService {
	return &HealthService{
		cache: cache,
	}
}

func (s *HealthService) Get() error {
	if s.cache != nil {
		if err := s.cache.Client().Ping(context.Background()).Err(); err != nil {
			return errors.Wrap(err, "health: redis")
		}
	}
	return nil
}
