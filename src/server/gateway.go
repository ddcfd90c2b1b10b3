package server

import (
	"fmt"
	"net/http"
	"strings"

	"iot-observer/src/helpers"
	"iot-observer/src/interfaces"
	"iot-observer/src/logger"
	"iot-observer/src/models"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// Gateway
//
// Local HTTP surface over the sync core: read accessors for each cache and
// the connection action functions. Display components consume this instead
// of touching the session directly.
// -----------------------------------------------------------------------------

type Gateway struct {
	Config *models.MConfig
	Logger *logger.Logger
	Core   interfaces.ISyncCore
	engine *gin.Engine
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewGateway(cfg *models.MConfig, core interfaces.ISyncCore, log *logger.Logger) *Gateway {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	g := &Gateway{
		Config: cfg,
		Logger: log,
		Core:   core,
		engine: gin.Default(),
	}

	// Add CORS Middleware
	g.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	g.setupRoutes()
	return g
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (g *Gateway) setupRoutes() {
	// Read accessors
	g.engine.GET("/api/health", g.getHealth)
	g.engine.GET("/api/snapshot", g.getSnapshot)
	g.engine.GET("/api/series/:device/:metric", g.getSeries)
	g.engine.GET("/api/series/:device/:metric/summary", g.getSeriesSummary)
	g.engine.GET("/api/live/:device/:metric", g.getLiveTail)
	g.engine.GET("/api/interruptions/:device", g.getInterruptions)

	// Actions
	g.engine.POST("/api/connect", g.postConnect)
	g.engine.POST("/api/retry", g.postRetry)
	g.engine.POST("/api/disconnect", g.postDisconnect)
	g.engine.POST("/api/logout", g.postLogout)
	g.engine.POST("/api/subscribe", g.postSubscribe)
	g.engine.POST("/api/series/:device/:metric", g.postSeriesRequest)
	g.engine.POST("/api/interruptions/:device", g.postInterruptionRequest)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (g *Gateway) Start() error {
	addr := fmt.Sprintf("%s:%d", g.Config.Host, g.Config.Port)
	g.Logger.Info("Starting gateway on %s", addr)
	return g.engine.Run(addr)
}

// -----------------------------------------------------------------------------
// Read Handlers
// -----------------------------------------------------------------------------

func (g *Gateway) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":  g.Config.Name,
		"state": g.Core.State().String(),
	})
}

// -----------------------------------------------------------------------------

func (g *Gateway) getSnapshot(c *gin.Context) {
	snap := g.Core.Snapshot()
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// -----------------------------------------------------------------------------

func (g *Gateway) getSeries(c *gin.Context) {
	c.JSON(http.StatusOK, g.Core.Series(c.Param("device"), c.Param("metric")))
}

// -----------------------------------------------------------------------------

func (g *Gateway) getSeriesSummary(c *gin.Context) {
	summary, ok := g.Core.SeriesSummary(c.Param("device"), c.Param("metric"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached data"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// -----------------------------------------------------------------------------

func (g *Gateway) getLiveTail(c *gin.Context) {
	c.JSON(http.StatusOK, g.Core.LiveTail(c.Param("device"), c.Param("metric")))
}

// -----------------------------------------------------------------------------

func (g *Gateway) getInterruptions(c *gin.Context) {
	var query struct {
		Days int `form:"days"`
	}
	if err := c.ShouldBindQuery(&query); err != nil || query.Days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days query parameter required"})
		return
	}

	count, ok := g.Core.TransitionCount(c.Param("device"), query.Days)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no count cached for window"})
		return
	}
	c.JSON(http.StatusOK, count)
}

// -----------------------------------------------------------------------------
// Action Handlers
// -----------------------------------------------------------------------------

func (g *Gateway) postConnect(c *gin.Context) {
	g.respondConnect(c, g.Core.Connect())
}

// -----------------------------------------------------------------------------

func (g *Gateway) postRetry(c *gin.Context) {
	g.respondConnect(c, g.Core.Retry())
}

// -----------------------------------------------------------------------------

// respondConnect maps the error taxonomy onto HTTP: auth failures are
// surfaced distinctly so the UI can show "could not establish connection"
// instead of offering a silent retry.
func (g *Gateway) respondConnect(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"state": g.Core.State().String()})
	case helpers.IsAuthError(err):
		g.Logger.Error("Authentication failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not establish connection: authentication failed"})
	default:
		g.Logger.Error("Connect failed: %v", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

// -----------------------------------------------------------------------------

func (g *Gateway) postDisconnect(c *gin.Context) {
	g.Core.Disconnect()
	c.JSON(http.StatusOK, gin.H{"state": g.Core.State().String()})
}

// -----------------------------------------------------------------------------

func (g *Gateway) postLogout(c *gin.Context) {
	g.Core.Logout()
	c.JSON(http.StatusOK, gin.H{"state": g.Core.State().String()})
}

// -----------------------------------------------------------------------------

func (g *Gateway) postSubscribe(c *gin.Context) {
	var sub models.MSubscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscription body"})
		return
	}

	if err := g.Core.Subscribe(sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": sub.GroupType})
}

// -----------------------------------------------------------------------------

type windowRequest struct {
	Days int `json:"days"`
}

func (g *Gateway) postSeriesRequest(c *gin.Context) {
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry a positive 'days'"})
		return
	}

	if err := g.Core.RequestHistoricalWindow(c.Param("device"), c.Param("metric"), req.Days); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requested": req.Days})
}

// -----------------------------------------------------------------------------

func (g *Gateway) postInterruptionRequest(c *gin.Context) {
	var req windowRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must carry a positive 'days'"})
		return
	}

	if err := g.Core.RequestTransitionCount(c.Param("device"), req.Days); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"requested": req.Days})
}
