package scheduler

import (
	"context"

	"go.uber.org/fx"

	"github.com/janmager/myfreelance-backend/internal/config"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(StartScheduler),
)

func ProvideConfig(cfg config.Config) Config {
	return Config{
		DriftCheckInterval: cfg.DriftCheckInterval,
		KeepAliveInterval:  cfg.KeepAliveInterval,
		APIURL:             cfg.APIURL,
	}.withDefaults()
}

func StartScheduler(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
