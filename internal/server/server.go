package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/fanvault/internal/config"
	membershipdomain "github.com/smallbiznis/fanvault/internal/membership/domain"
	messagedomain "github.com/smallbiznis/fanvault/internal/message/domain"
	paymentdomain "github.com/smallbiznis/fanvault/internal/payment/domain"
	plandomain "github.com/smallbiznis/fanvault/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	planSvc       plandomain.Service
	membershipSvc membershipdomain.Service
	messageSvc    messagedomain.Service
	paymentSvc    paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	PlanSvc       plandomain.Service
	MembershipSvc membershipdomain.Service
	MessageSvc    messagedomain.Service
	PaymentSvc    paymentdomain.Service
}

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		planSvc:       p.PlanSvc,
		membershipSvc: p.MembershipSvc,
		messageSvc:    p.MessageSvc,
		paymentSvc:    p.PaymentSvc,
	}
}

func (s *Server) RegisterRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/plans", s.CreatePlan)
	v1.GET("/plans/:id", s.GetPlan)
	v1.POST("/plans/:id/activate", s.ActivatePlan)
	v1.POST("/plans/:id/deactivate", s.DeactivatePlan)
	v1.GET("/creators/:id/plans", s.ListCreatorPlans)

	v1.POST("/subscriptions", s.Subscribe)
	v1.GET("/subscriptions/:id", s.GetSubscription)
	v1.POST("/subscriptions/:id/renew", s.RenewSubscription)
	v1.POST("/subscriptions/:id/pause", s.PauseSubscription)
	v1.POST("/subscriptions/:id/resume", s.ResumeSubscription)
	v1.POST("/subscriptions/:id/cancel", s.CancelSubscription)
	v1.POST("/subscriptions/:id/upgrade", s.UpgradeSubscription)
	v1.POST("/subscriptions/:id/reactivate", s.ReactivateSubscription)
	v1.GET("/accounts/:id/subscriptions", s.ListAccountSubscriptions)

	v1.POST("/messages", s.SendMessage)
	v1.GET("/messages/thread", s.GetThread)
	v1.POST("/messages/:id/unlock", s.UnlockMessage)
	v1.POST("/messages/:id/read", s.MarkMessageRead)

	v1.GET("/accounts/:id/payment-attempts", s.ListPaymentAttempts)
	v1.GET("/subscriptions/:id/payment-attempts", s.ListSubscriptionPaymentAttempts)
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// RunHTTP starts the HTTP listener under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
