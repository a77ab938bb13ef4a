package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/mealplan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides a Locker backed by Redis when REDIS_ADDR is set and a nil
// Locker otherwise; the scheduler then relies on its in-process guard only.
var Module = fx.Module("lock",
	fx.Provide(NewLocker),
)

type Params struct {
	fx.In

	Lc  fx.Lifecycle
	Cfg config.Config
	Log *zap.Logger
}

func NewLocker(p Params) Locker {
	if !p.Cfg.Redis.Enabled() {
		p.Log.Info("redis not configured, scheduler lease disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Cfg.Redis.Addr,
		Password: p.Cfg.Redis.Password,
		DB:       p.Cfg.Redis.DB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedisLocker(client)
}
