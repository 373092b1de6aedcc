package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/go-while/go-moodtracker/internal/config"
)

var Prof *prof.Profiler

// startProfiler serves pprof on addr and writes periodic memory profiles
func startProfiler(logger *logrus.Logger, addr string) {
	Prof = prof.NewProf()
	go Prof.PprofWeb(addr)
	Prof.StartMemProfile(5*time.Minute, 30*time.Second)
	logger.Infof("[WEB]: pprof listening on %s", addr)
}

// warnDefaultSecret complains about the public fallback secret. A terminal gets a banner.
func warnDefaultSecret(logger *logrus.Logger) {
	logger.Warnf("[WEB]: %s is not set, using the built-in development secret. Session cookies can be forged!", config.SecretEnv)
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	line := strings.Repeat("!", 72)
	fmt.Fprintf(os.Stderr, "\n%s\n  DEVELOPMENT MODE: session secret is %q\n  export %s=<random string> before exposing this server\n%s\n\n",
		line, config.DefaultSecret, config.SecretEnv, line)
}

// monitorUpdateFile checks for the existence of an update file every 60 seconds
// and signals for shutdown when found, then renames the file
func monitorUpdateFile(logger *logrus.Logger, updateFilePath string, shutdownChan chan<- bool) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	logger.Debugf("[WEB]: Update file monitor started, checking for '%s' every 60 seconds", updateFilePath)

	for range ticker.C {
		if _, err := os.Stat(updateFilePath); err != nil {
			continue
		}
		logger.Infof("[WEB]: Update file '%s' detected, triggering graceful shutdown", updateFilePath)

		if err := os.Rename(updateFilePath, updateFilePath+".todo"); err != nil {
			logger.Warnf("[WEB]: Failed to rename update file '%s': %v", updateFilePath, err)
			continue
		}

		select {
		case shutdownChan <- true:
		default:
			logger.Debugf("[WEB]: Shutdown channel already signaled")
		}
		return
	}
}
