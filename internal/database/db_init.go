// Package database provides sqlite storage for go-moodtracker
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/sirupsen/logrus"
)

// MainDBFile is the file name of the main database inside DataDir
const MainDBFile = "mood.sq3"

// Database wraps the main sqlite connection
type Database struct {
	mainDB   *sql.DB
	dbconfig *DBConfig
	log      *logrus.Entry

	closeOnce sync.Once
	StopChan  chan struct{} // closed on Shutdown
}

// DBConfig represents database configuration
type DBConfig struct {
	// Directory to store database files
	DataDir string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// Performance settings
	WALMode   bool   // Write-Ahead Logging
	SyncMode  string // OFF, NORMAL, FULL
	CacheSize int    // KB
	TempStore string // MEMORY, FILE

	// Visitor sessions
	SessionTimeout time.Duration
}

// DefaultDBConfig returns default database configuration
func DefaultDBConfig() *DBConfig {
	return &DBConfig{
		DataDir:         "./data",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 0, // Unlimited for SQLite - connections don't need to be recycled
		WALMode:         true,
		SyncMode:        "NORMAL",
		CacheSize:       -16384, // -16384 == 1024 KB * 16384 = 16MB cache
		TempStore:       "MEMORY",
		SessionTimeout:  DefaultSessionTimeout,
	}
}

// OpenDatabase opens the main database and applies migrations.
// A nil dbconfig uses DefaultDBConfig; a nil logger uses the logrus standard logger.
func OpenDatabase(dbconfig *DBConfig, logger *logrus.Logger) (*Database, error) {
	if dbconfig == nil {
		dbconfig = DefaultDBConfig()
	}
	if dbconfig.SessionTimeout <= 0 {
		dbconfig.SessionTimeout = DefaultSessionTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	db := &Database{
		dbconfig: dbconfig,
		log:      logger.WithField("type", "database"),
		StopChan: make(chan struct{}),
	}

	if err := db.initMainDB(); err != nil {
		return nil, fmt.Errorf("failed to initialize main database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.mainDB.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	db.log.Debugf("Database initialized: %+v", *dbconfig)
	return db, nil
}

// initMainDB initializes the main database connection
func (db *Database) initMainDB() error {
	dbPath := filepath.Join(db.dbconfig.DataDir, MainDBFile)
	db.log.Infof("Initializing main database at: %s", dbPath)

	// Create data directory if it doesn't exist
	if err := createDirIfNotExists(db.dbconfig.DataDir); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	// busy_timeout and foreign_keys are per connection, so they go into the DSN as well
	mainDB, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=30000&_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open main database: %w", err)
	}

	mainDB.SetMaxOpenConns(db.dbconfig.MaxOpenConns)
	mainDB.SetMaxIdleConns(db.dbconfig.MaxIdleConns)
	mainDB.SetConnMaxLifetime(db.dbconfig.ConnMaxLifetime)

	if err := mainDB.Ping(); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to ping main database: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to ping main database: %w", err)
	}

	if err := db.applySQLitePragmas(mainDB); err != nil {
		if cerr := mainDB.Close(); cerr != nil {
			return fmt.Errorf("failed to apply SQLite pragmas: %w; also failed to close mainDB: %v", err, cerr)
		}
		return fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}

	db.mainDB = mainDB
	return nil
}

// applySQLitePragmas applies performance and configuration pragmas to SQLite connection
func (db *Database) applySQLitePragmas(conn *sql.DB) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d", db.dbconfig.CacheSize),
		fmt.Sprintf("PRAGMA synchronous = %s", db.dbconfig.SyncMode),
		fmt.Sprintf("PRAGMA temp_store = %s", db.dbconfig.TempStore),
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 30000", // 30 seconds
	}
	if db.dbconfig.WALMode {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// IsDBshutdown reports whether Shutdown has been called
func (db *Database) IsDBshutdown() bool {
	if db == nil {
		return true
	}
	select {
	case <-db.StopChan:
		return true
	default:
		return false
	}
}

// Shutdown closes the main database. It is safe to call more than once.
func (db *Database) Shutdown() error {
	var err error
	db.closeOnce.Do(func() {
		close(db.StopChan)
		if db.dbconfig.WALMode {
			if _, cerr := db.mainDB.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); cerr != nil {
				db.log.WithError(cerr).Warn("wal checkpoint failed")
			}
		}
		err = db.mainDB.Close()
		db.log.Info("Database shutdown completed")
	})
	return err
}

func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(dir, 0755)
	} else if err != nil {
		return err
	}
	return nil
}
