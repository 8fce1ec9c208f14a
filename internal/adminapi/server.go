// Package adminapi exposes a read-only HTTP surface over the trade
// engine's live state, plus one JWT-guarded force-sell action. It
// never mutates state on its own initiative; every write it performs
// goes through engine.Engine exactly the way the scheduler's own hooks
// do.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"copytrader/internal/auth"
	"copytrader/internal/engine"
	"copytrader/internal/logger"
	"copytrader/internal/model"
)

// Server wraps the gin engine serving the dashboard.
type Server struct {
	router *gin.Engine
	eng    *engine.Engine
	log    *logger.Logger
}

// New builds the router and registers every route. jwtSecret comes
// from config.AdminConfig (the port is passed to Run); an empty
// jwtSecret still serves the read-only routes but force-sell will
// always 401.
func New(eng *engine.Engine, jwtSecret string) *Server {
	auth.InitJWT(jwtSecret)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))

	s := &Server{router: r, eng: eng, log: logger.New("ADMIN")}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/positions", s.handlePositions)
	s.router.GET("/positions/:mint", s.handlePosition)
	s.router.GET("/metrics", s.handleMetrics)

	admin := s.router.Group("/admin")
	admin.Use(auth.AdminMiddleware())
	admin.POST("/buying/:mint/force-sell", s.handleForceSell)
}

// Run starts the HTTP server and blocks until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Printf("shutting down admin API")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	open := 0
	for _, p := range s.eng.Store.Snapshot() {
		if p.Status == model.StatusBought {
			open++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"buying_enabled": s.eng.Gate.Enabled(),
		"open_positions": open,
	})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"positions": s.eng.Store.Snapshot()})
}

func (s *Server) handlePosition(c *gin.Context) {
	mint := c.Param("mint")
	pos := s.eng.Store.Find(mint)
	if pos == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no position for mint"})
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) handleMetrics(c *gin.Context) {
	positions := s.eng.Store.Snapshot()
	var bought, sold, failed int
	for _, p := range positions {
		switch p.Status {
		case model.StatusBought:
			bought++
		case model.StatusSold:
			sold++
		case model.StatusFailure:
			failed++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"buying_enabled":   s.eng.Gate.Enabled(),
		"positions_bought": bought,
		"positions_sold":   sold,
		"positions_failed": failed,
		"tracked_total":    len(positions),
	})
}

func (s *Server) handleForceSell(c *gin.Context) {
	mint := c.Param("mint")
	pos := s.eng.Store.Find(mint)
	if pos == nil || pos.Status != model.StatusBought {
		c.JSON(http.StatusNotFound, gin.H{"error": "no open position for mint"})
		return
	}

	s.eng.DispatchSell(c.Request.Context(), mint, model.FullSellDecision("admin_force_sell"))
	c.JSON(http.StatusAccepted, gin.H{"mint": mint, "status": "force-sell dispatched"})
}
