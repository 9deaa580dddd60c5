// Package web provides the HTTP server and browse/edit interface for the
// papers catalog.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"github.com/paperdex/paperdex/internal/config"
	"github.com/paperdex/paperdex/internal/database"
	"github.com/paperdex/paperdex/internal/llm"
)

//go:embed templates/*.html
var templatesFS embed.FS

// WebServer represents the web server
type WebServer struct {
	DB        *database.Database
	Router    *gin.Engine
	Config    *config.MainConfig
	LLM       *llm.Client
	Runner    *BatchRunner
	StartTime time.Time
}

// NewServer creates a new web server instance
func NewServer(db *database.Database, cfg *config.MainConfig, client *llm.Client) (*WebServer, error) {
	// Set Gin to release mode for production
	gin.SetMode(gin.ReleaseMode)

	router := gin.Default()
	router.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})

	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if cfg.Web.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}
	router.Use(secure.New(secureConfig))

	templates, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	router.SetHTMLTemplate(templates)

	server := &WebServer{
		DB:        db,
		Router:    router,
		Config:    cfg,
		LLM:       client,
		Runner:    NewBatchRunner(db, client, cfg),
		StartTime: time.Now(),
	}
	server.setupRoutes()
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	// Pages
	s.Router.GET("/", s.papersPage)
	s.Router.GET("/stats", s.statsPage)

	// JSON API
	api := s.Router.Group("/api/v1")
	{
		api.GET("/papers", s.listPapers)
		api.GET("/papers/:id", s.getPaper)
		api.POST("/papers/:id", s.updatePaper)
		api.GET("/stats", s.getStats)

		// batch embedding: Cooperative cancellation only, a request
		// handler must never kill the process
		api.POST("/batch/classify", s.startClassify)
		api.POST("/batch/verify", s.startVerify)
		api.POST("/batch/cancel", s.cancelBatch)
		api.GET("/batch/status", s.batchStatus)
	}
}

// Start runs the server until the process exits.
func (s *WebServer) Start() error {
	addr := fmt.Sprintf(":%d", s.Config.Web.ListenPort)
	log.Printf("[WEB] listening on %s (ssl=%t)", addr, s.Config.Web.SSL)
	if s.Config.Web.SSL {
		return s.Router.RunTLS(addr, s.Config.Web.CertFile, s.Config.Web.KeyFile)
	}
	return s.Router.Run(addr)
}
