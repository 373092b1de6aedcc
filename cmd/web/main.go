// Web server for go-moodtracker
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/go-while/go-moodtracker/internal/config"
	"github.com/go-while/go-moodtracker/internal/database"
	"github.com/go-while/go-moodtracker/internal/logging"
	"github.com/go-while/go-moodtracker/internal/web"
)

var (
	// command-line flags
	webport     int
	webhost     string
	dataDir     string
	release     bool
	templateDir string
	timeZone    string
	pprofAddr   string
	logLevel    string
	updateFile  string
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion

	flag.IntVar(&webport, "webport", 0, "Web server port (default: 5000)")
	flag.StringVar(&webhost, "webhost", "", "Web server listen address (default: 0.0.0.0)")
	flag.StringVar(&dataDir, "data", "", "Directory for the mood database (default: ./data)")
	flag.BoolVar(&release, "release", false, "Run in release mode: no debug output, requires SESSION_SECRET")
	flag.StringVar(&templateDir, "templates", "", "Load page templates from this directory instead of the embedded copies")
	flag.StringVar(&timeZone, "timezone", "", "Time zone for entry dates and weekdays (default: Local)")
	flag.StringVar(&pprofAddr, "pprof", "", "Serve pprof and memory profiles on this address, e.g. :51111 (default: off)")
	flag.StringVar(&logLevel, "loglevel", "debug", "Log level: trace, debug, info, warn, error")
	flag.StringVar(&updateFile, "update-file", "", "Shut down gracefully when this file appears, e.g. .update (empty disables)")
	flag.Parse()

	logger := logging.Setup(logging.ParseLevel(logLevel), os.Stdout)
	logger.Infof("Starting go-moodtracker: Web Server (version: %s)", appVersion)

	mainConfig, err := config.Load()
	if err != nil {
		logger.Fatalf("[WEB]: Failed to load configuration: %v", err)
	}
	applyFlags(mainConfig)
	logger.Debugf("[WEB]: Using WEB configuration: host=%s port=%d debug=%t templates=%q timezone=%s",
		mainConfig.Web.ListenHost, mainConfig.Web.ListenPort, mainConfig.Web.Debug, mainConfig.Web.TemplateDir, mainConfig.Web.TimeZone)

	if err := mainConfig.Validate(); err != nil {
		logger.Fatalf("[WEB]: Invalid configuration: %v", err)
	}
	if mainConfig.UsesDefaultSecret() {
		warnDefaultSecret(logger)
	}

	if pprofAddr != "" {
		startProfiler(logger, pprofAddr)
	}

	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = mainConfig.Database.DataDir
	dbConfig.SessionTimeout = mainConfig.Database.SessionTimeout
	db, err := database.OpenDatabase(dbConfig, logger)
	if err != nil {
		logger.Fatalf("[WEB]: Failed to initialize database: %v", err)
	}

	server, err := web.NewServer(db, mainConfig, logger)
	if err != nil {
		logger.Fatalf("[WEB]: Failed to create web server: %v", err)
	}
	if err := server.StartSessionCleanup(); err != nil {
		logger.Fatalf("[WEB]: Failed to schedule session cleanup: %v", err)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Infof("[WEB]: Starting go-moodtracker web server on http://%s", mainConfig.Web.ListenAddr())

	// Start web server in goroutine to make it non-blocking
	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webServerErrChan <- err
		}
	}()

	updateFileChan := make(chan bool, 1)
	if updateFile != "" {
		go monitorUpdateFile(logger, updateFile, updateFileChan)
	}

	// Wait for either shutdown signal, server error, or update file
	select {
	case sig := <-sigChan:
		logger.Infof("[WEB]: Received %s, initiating graceful shutdown...", sig)
	case err := <-webServerErrChan:
		db.Shutdown()
		logger.Fatalf("[WEB]: Failed to start web server: %v", err)
	case <-updateFileChan:
		logger.Infof("[WEB]: Update file detected, initiating graceful shutdown for update...")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("[WEB]: Error stopping web server: %v", err)
	}

	if err := db.Shutdown(); err != nil {
		logger.Fatalf("[WEB]: Failed to shutdown database: %v", err)
	}
	logger.Infof("[WEB]: Graceful shutdown completed")
} // end main

// applyFlags overrides the loaded configuration with command-line flags if provided
func applyFlags(cfg *config.MainConfig) {
	log := logrus.StandardLogger()
	if webport > 0 {
		cfg.Web.ListenPort = webport
		log.Debugf("[WEB]: Overriding listen port with command-line flag: %d", webport)
	}
	if webhost != "" {
		cfg.Web.ListenHost = webhost
	}
	if dataDir != "" {
		cfg.Database.DataDir = dataDir
	}
	if release {
		cfg.Web.Debug = false
	}
	if templateDir != "" {
		cfg.Web.TemplateDir = templateDir
	}
	if timeZone != "" {
		cfg.Web.TimeZone = timeZone
	}
}
