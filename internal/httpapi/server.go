// Package httpapi exposes the land registry over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/danmuck/landctl/internal/auth"
	"github.com/danmuck/landctl/internal/observability"
	"github.com/danmuck/landctl/internal/registry"
	"github.com/danmuck/landctl/internal/snapshot"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	Version = "0.1.0"

	// PrincipalHeader carries a pre-verified caller when TrustPrincipalHeader
	// is enabled.
	PrincipalHeader = "X-Principal"
)

// Snapshotter persists the registry on demand.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context) (snapshot.Meta, error)
}

type Options struct {
	CorsOrigins          []string
	Resolver             auth.Resolver
	TrustPrincipalHeader bool
	Feed                 http.Handler
	Snapshotter          Snapshotter
}

type Server struct {
	ID       string
	Addr     string
	Appeared time.Time

	engine *registry.Engine
	opts   Options
	router *gin.Engine
}

func Appear(id, addr string, engine *registry.Engine, opts Options) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization", PrincipalHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	return &Server{
		ID:       id,
		Addr:     addr,
		Appeared: time.Now(),
		engine:   engine,
		opts:     opts,
		router:   r,
	}
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *Server) RegisterRoutes() {
	r := s.router

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ready", func(c *gin.Context) {
		if err := s.engine.CheckInvariants(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":   true,
			"uptime":  time.Since(s.Appeared).String(),
			"service": s.ID,
			"version": Version,
		})
	})

	api := r.Group("/", s.identify())
	signed := r.Group("/", s.identify(), requireCaller())

	api.GET("/lands", s.listLands)
	api.GET("/lands/near", s.landsNear)
	api.GET("/lands/area", s.totalArea)
	api.POST("/lands/search", s.searchLands)
	api.GET("/lands/:id", s.getLand)
	api.GET("/lands/:id/owner", s.landOwner)
	api.GET("/lands/:id/verify", s.verifyOwnership)
	api.GET("/lands/:id/history", s.landHistory)
	api.GET("/lands/:id/prices", s.priceHistory)
	signed.POST("/lands", s.registerLand)
	signed.PUT("/lands/:id/metadata", s.updateMetadata)
	signed.POST("/lands/:id/transfer", s.transferLand)
	signed.DELETE("/lands/:id", s.removeLand)

	api.GET("/owners/:owner/lands", s.ownerLands)
	api.GET("/owners/:owner/count", s.ownerCount)
	api.GET("/owners/:owner/transactions", s.ownerTransactions)

	api.GET("/market", s.listMarket)
	api.POST("/market/search", s.searchMarket)
	api.GET("/market/:id", s.getListing)
	signed.POST("/market/:id", s.listForSale)
	signed.DELETE("/market/:id", s.removeFromSale)
	signed.POST("/market/:id/buy", s.buyLand)

	api.GET("/transactions", s.transactions)
	api.GET("/transactions/recent", s.recentTransactions)
	if s.opts.Feed != nil {
		api.GET("/transactions/stream", gin.WrapH(s.opts.Feed))
	}

	api.GET("/stats", s.statistics)
	api.GET("/stats/supply", s.totalSupply)
	api.GET("/stats/next-id", s.nextID)

	api.GET("/admins/:principal", s.isAdmin)
	signed.POST("/admins", s.addAdmin)
	signed.GET("/admin/backup", s.backup)
	signed.POST("/admin/restore", s.restore)
	signed.POST("/admin/snapshot", s.saveSnapshot)
}

// Serve registers routes and blocks serving on Addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.RegisterRoutes()
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("service", s.ID).Str("addr", s.Addr).Msg("landctl http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
