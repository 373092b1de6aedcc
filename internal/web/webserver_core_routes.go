// Package web provides the HTTP server and web interface for go-moodtracker
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/go-while/go-moodtracker/internal/config"
	"github.com/go-while/go-moodtracker/internal/database"
	"github.com/go-while/go-moodtracker/internal/insights"
)

// WebServer represents the web server
type WebServer struct {
	DB        *database.Database
	Router    *gin.Engine
	Config    *config.MainConfig
	StartTime time.Time // logged as uptime on Shutdown

	log            *logrus.Entry
	accessLog      io.WriteCloser
	httpServer     *http.Server
	cron           *cron.Cron
	limiter        *visitorLimiter // writes per visitor
	sessionLimiter *visitorLimiter // new sessions per client IP

	loc       *time.Location
	cookieKey []byte
	insights  insights.Options
	now       func() time.Time
	rnd       *rand.Rand // nil uses the global source
}

// NewServer creates a new web server instance
func NewServer(db *database.Database, cfg *config.MainConfig, logger *logrus.Logger) (*WebServer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Web.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	cookieKey, err := deriveCookieKey(cfg.Web.Secret)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Configure Gin to trust reverse proxy headers
	// Set trusted proxies for common reverse proxy setups (nginx, etc.)
	if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}

	server := &WebServer{
		DB:             db,
		Router:         router,
		Config:         cfg,
		StartTime:      time.Now(),
		log:            logger.WithField("type", "web"),
		accessLog:      logger.WriterLevel(logrus.InfoLevel),
		cron:           cron.New(),
		limiter:        newVisitorLimiter(WriteRatePerSecond, WriteRateBurst),
		sessionLimiter: newVisitorLimiter(SessionCreateRate, SessionCreateBurst),
		loc:            loc,
		cookieKey:      cookieKey,
		insights: insights.Options{
			MinUniqueDays:         cfg.Insights.MinUniqueDays,
			BroadenBuildThreshold: cfg.Insights.BroadenBuildThreshold,
		},
		now: time.Now,
	}

	router.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: ApacheLogFormat,
		Output:    server.accessLog,
	}))
	router.Use(gin.Recovery())

	// Apply security middleware
	router.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		IsDevelopment:      cfg.Web.Debug,
	}))

	if err := server.loadTemplates(); err != nil {
		server.accessLog.Close()
		return nil, err
	}

	server.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.setupRoutes()
	return server, nil
}

// loadTemplates uses the embedded templates unless a template directory is configured.
// In debug mode gin re-reads a template directory on every render.
func (s *WebServer) loadTemplates() error {
	if dir := s.Config.Web.TemplateDir; dir != "" {
		pattern := filepath.Join(dir, "*.html")
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			return fmt.Errorf("no templates found at %s", pattern)
		}
		s.Router.LoadHTMLGlob(pattern)
		s.log.Infof("Loaded %d templates from %s", len(matches), dir)
		return nil
	}
	tmpl, err := template.ParseFS(EmbeddedFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse embedded templates: %w", err)
	}
	s.Router.SetHTMLTemplate(tmpl)
	return nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() {
	s.Router.GET("/static/*filepath", EmbeddedStaticHandler("/static"))
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	s.Router.GET("/", s.homePage)

	api := s.Router.Group("/api/v1")
	api.GET("/moods/scale", s.getMoodScale)

	visitor := api.Group("")
	visitor.Use(s.VisitorSessionRequired())
	{
		visitor.GET("/moods", s.listMoods)
		visitor.POST("/moods", s.WriteRateLimit(), s.createMood)
		visitor.DELETE("/moods", s.WriteRateLimit(), s.clearMoods)
		visitor.GET("/moods/chart", s.moodChart)
		visitor.GET("/insights", s.getInsights)
		visitor.GET("/export.csv", s.exportMoods)
		visitor.GET("/export.json", s.exportMoods)
	}
}

// Start binds the configured address and serves until Shutdown.
// A port that is already in use is returned as an error; there is no retry.
func (s *WebServer) Start() error {
	addr := s.Config.Web.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.log.Infof("Starting HTTP server on %s", addr)
	return s.Serve(ln)
}

// Serve serves HTTP on an existing listener. It returns http.ErrServerClosed after Shutdown.
func (s *WebServer) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown stops background jobs and gracefully stops the HTTP server
func (s *WebServer) Shutdown(ctx context.Context) error {
	<-s.cron.Stop().Done()
	err := s.httpServer.Shutdown(ctx)
	s.log.Infof("HTTP server stopped, uptime %s", time.Since(s.StartTime).Round(time.Second))
	if cerr := s.accessLog.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ApacheLogFormat renders access log lines in Apache combined log format
func ApacheLogFormat(param gin.LogFormatterParams) string {
	return fmt.Sprintf(`%s - - [%s] "%s %s %s" %d %d "%s" "%s"`+"\n",
		param.ClientIP,
		param.TimeStamp.Format("02/Jan/2006:15:04:05 -0700"),
		param.Method,
		param.Path,
		param.Request.Proto,
		param.StatusCode,
		param.BodySize,
		param.Request.Referer(),
		param.Request.UserAgent(),
	)
}
