// Package api exposes a local HTTP surface for inspecting the bridge:
// health, cached contracts, the current tool projection, dispatcher stats,
// and a WebSocket stream of bridge events. It is a debugging aid, not part
// of the RPC protocol, and binds to loopback by default.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shyam-habarakada/agent-md/internal/bus"
	"github.com/shyam-habarakada/agent-md/internal/config"
	"github.com/shyam-habarakada/agent-md/internal/manifest"
	"github.com/shyam-habarakada/agent-md/internal/mcp"
)

// RelayStatus reports the inner channel's health.
type RelayStatus interface {
	Connected() bool
	Pending() int
}

// OriginController switches the bridge's fallback origin at runtime.
type OriginController interface {
	SetOrigin(origin string)
}

// Server is the debug/status HTTP server.
type Server struct {
	config     *config.HTTPConfig
	dispatcher *mcp.Dispatcher
	cache      *manifest.Cache
	relay      RelayStatus
	origin     OriginController
	hub        *eventHub
	router     *gin.Engine
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer creates the API server and subscribes its event hub to the bus.
func NewServer(cfg *config.HTTPConfig, dispatcher *mcp.Dispatcher, cache *manifest.Cache, relay RelayStatus, origin OriginController, eventBus *bus.EventBus, logger *logrus.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Content-Type"},
	}))

	server := &Server{
		config:     cfg,
		dispatcher: dispatcher,
		cache:      cache,
		relay:      relay,
		origin:     origin,
		hub:        newEventHub(logger),
		router:     router,
		logger:     logger,
	}

	if eventBus != nil {
		eventBus.SubscribeAll(server.hub.broadcastEvent)
	}

	server.registerRoutes()

	return server
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.getHealth)
	s.router.GET("/contracts", s.getContracts)
	s.router.GET("/tools", s.getTools)
	s.router.GET("/stats", s.getStats)
	s.router.POST("/invalidate", s.postInvalidate)
	s.router.POST("/origin", s.postOrigin)
	s.router.GET("/ws/events", s.hub.handleWebSocket)
}

// Start begins serving in the background. Disabled config is a no-op.
func (s *Server) Start() error {
	if !s.config.Enabled {
		s.logger.Info("HTTP API is disabled")
		return nil
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler: s.router,
	}

	s.logger.Infof("Starting HTTP API on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("HTTP API error: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the API server.
func (s *Server) Shutdown() error {
	s.hub.close()

	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) getHealth(c *gin.Context) {
	relayConnected := false
	pending := 0
	if s.relay != nil {
		relayConnected = s.relay.Connected()
		pending = s.relay.Pending()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"session_id":      s.dispatcher.SessionID(),
		"relay_connected": relayConnected,
		"relay_pending":   pending,
	})
}

func (s *Server) getContracts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"contracts": s.cache.Snapshot(),
	})
}

// getTools shows the current tool projection, i.e. what an RPC client would
// get from tools/list right now.
func (s *Server) getTools(c *gin.Context) {
	tools, origin := s.dispatcher.ListTools(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"origin": origin,
		"tools":  tools,
	})
}

func (s *Server) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.dispatcher.Stats())
}

func (s *Server) postInvalidate(c *gin.Context) {
	s.dispatcher.Invalidate()
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// postOrigin switches the fallback origin. Cached contracts are discarded
// wholesale; the next tools/list resolves against the new origin.
func (s *Server) postOrigin(c *gin.Context) {
	var body struct {
		Origin string `json:"origin"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Origin == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "origin is required"})
		return
	}

	if s.origin != nil {
		s.origin.SetOrigin(body.Origin)
	}
	s.dispatcher.Invalidate()

	s.logger.Infof("Fallback origin switched to %s", body.Origin)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "origin": body.Origin})
}
