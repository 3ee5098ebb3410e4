// Package server exposes the REST API: limit checks, usage overview,
// subscription management and the payment provider webhooks.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/janmager/myfreelance-backend/internal/config"
	entitlementdomain "github.com/janmager/myfreelance-backend/internal/entitlement/domain"
	"github.com/janmager/myfreelance-backend/internal/observability"
	obslogger "github.com/janmager/myfreelance-backend/internal/observability/logger"
	obsmetrics "github.com/janmager/myfreelance-backend/internal/observability/metrics"
	subscriptiondomain "github.com/janmager/myfreelance-backend/internal/subscription/domain"
	usagedomain "github.com/janmager/myfreelance-backend/internal/usage/domain"
	userdomain "github.com/janmager/myfreelance-backend/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log,
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	r.GET("/health", healthHandler)
	r.GET("/api/health", healthHandler)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, obsCfg, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	catalog         *config.ProductCatalog
	entitlementSvc  entitlementdomain.Service
	usageSvc        usagedomain.Service
	subscriptionSvc subscriptiondomain.Service
	reconciler      subscriptiondomain.Reconciler
	userRepo        userdomain.Repository
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	Catalog         *config.ProductCatalog
	EntitlementSvc  entitlementdomain.Service
	UsageSvc        usagedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Reconciler      subscriptiondomain.Reconciler
	UserRepo        userdomain.Repository
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		catalog:         p.Catalog,
		entitlementSvc:  p.EntitlementSvc,
		usageSvc:        p.UsageSvc,
		subscriptionSvc: p.SubscriptionSvc,
		reconciler:      p.Reconciler,
		userRepo:        p.UserRepo,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	limits := api.Group("/limits")
	for _, kind := range entitlementdomain.ResourceKinds {
		if kind == entitlementdomain.ResourceFilesMB {
			continue
		}
		limits.POST("/check-"+string(kind), s.CheckResourceLimit(kind))
	}
	limits.POST("/check-file-size", s.CheckFileSize)
	limits.GET("", s.ListLimits)

	api.POST("/usage", s.UsageOverview)

	sub := api.Group("/subscription")
	sub.POST("/checkout", s.Checkout)
	sub.POST("/cancel", s.CancelSubscription)
	sub.POST("/resume", s.ResumeSubscription)
	sub.POST("/get-subscription", s.GetSubscription)
	sub.POST("/premium-status", s.PremiumStatus)
	sub.POST("/management-info", s.ManagementInfo)
	sub.POST("/webhook", s.HandleWebhook)
	sub.POST("/webhook/:provider", s.HandleProviderWebhook)

	api.GET("/products", s.ListProducts)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.RequireAdmin())
	admin.GET("/limits", s.ListLimits)
	admin.PUT("/limits", s.UpdateLimits)
	admin.GET("/limits/stats", s.AdminLimitsStats)
}
