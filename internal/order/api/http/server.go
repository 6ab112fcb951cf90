package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	carthandle "orderhub/internal/cart/api/http/handle"
	cartservices "orderhub/internal/cart/app/services"
	"orderhub/internal/hub"
	"orderhub/internal/order/api/http/handle"
	"orderhub/internal/order/app/core"
	"orderhub/internal/order/app/services"
	"orderhub/internal/order/domain/lifecycle"
	"orderhub/internal/xpkg/auth"
	"orderhub/internal/xpkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Deps are the collaborators the HTTP layer serves.
type Deps struct {
	Orders     *services.OrderService
	Carts      *cartservices.CartService
	Hub        *hub.Hub
	SendBuffer int
	JWTSecret  string
	Probes     map[string]handle.Probe
}

type Server struct {
	engine      *gin.Engine
	srv         *http.Server
	orderParams *core.OrderParams
	deps        Deps
	mylog       logger.Logger
}

func NewServer(orderParams *core.OrderParams, deps Deps, mylog logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		engine:      gin.New(),
		orderParams: orderParams,
		deps:        deps,
		mylog:       mylog,
	}
	s.Configure()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.orderParams.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	s.mylog.Action("server_started").WithGroup("details").With("port", s.orderParams.Port).Info("server is running")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.mylog.Action("graceful_shutdown_started").Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), core.WaitTime*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.mylog.Action("graceful_shutdown_failed").Error("Failed to shut down HTTP server gracefully", err)
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.mylog.Action("graceful_shutdown_completed").Info("HTTP server shut down gracefully")
	return nil
}

// Configure registers middleware and routes.
func (s *Server) Configure() {
	s.engine.Use(gin.Recovery(), s.requestLogger(), auth.Middleware(s.deps.JWTSecret))

	health := handle.NewHealthHandler(s.deps.Probes)
	s.engine.GET("/health", health.Health)

	if s.deps.Orders != nil {
		oh := handle.NewOrderHandler(s.deps.Orders, s.mylog)
		staff := auth.RequireRoles(lifecycle.RoleStaff, lifecycle.RoleOwner, lifecycle.RoleSystem)

		orders := s.engine.Group("/orders")
		orders.POST("", oh.Create)
		orders.GET("/:id", oh.Get)
		orders.GET("/:id/history", oh.History)
		orders.POST("/:id/status", oh.Transition)
		orders.POST("/:id/items", staff, oh.AddItems)
		orders.POST("/:id/kot", staff, oh.GenerateTicket)

		s.engine.POST("/payments/confirm", auth.RequireRoles(lifecycle.RoleSystem), oh.ConfirmPayment)
		s.engine.GET("/outlets/:id/orders", staff, oh.ListByOutlet)
		s.engine.GET("/users/me/orders", auth.RequireUser(), oh.ListMine)
	}

	if s.deps.Carts != nil {
		ch := carthandle.NewCartHandler(s.deps.Carts, s.mylog)
		cart := s.engine.Group("/cart", auth.RequireUser())
		cart.GET("", ch.Get)
		cart.PUT("", ch.Put)
		cart.POST("/merge", ch.Merge)
	}

	if s.deps.Hub != nil {
		wh := handle.NewWSHandler(s.deps.Hub, s.deps.SendBuffer, s.mylog)
		s.engine.GET("/ws", wh.Serve)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		s.mylog.Action("http_request").With("request_id", requestID).Debug("Request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
