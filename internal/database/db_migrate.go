package database

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var EmbeddedMigrationsFS embed.FS

// MigrationType represents the type of database that migrations apply to
type MigrationType string

const (
	MigrationTypeMain MigrationType = "main"
)

// MigrationFile represents a migration file with its metadata
type MigrationFile struct {
	FileName    string
	Version     int
	Type        MigrationType
	Description string
	FilePath    string
}

// Migrate applies pending main database migrations
func (db *Database) Migrate() error {
	if err := db.migrateMainDB(); err != nil {
		return fmt.Errorf("failed to migrate main database: %w", err)
	}
	return nil
}

// parseMigrationFileName parses a migration file name to extract metadata
func parseMigrationFileName(fileName string) (*MigrationFile, error) {
	if !strings.HasSuffix(fileName, ".sql") {
		return nil, fmt.Errorf("migration file must have .sql extension: %s", fileName)
	}
	name := strings.TrimSuffix(fileName, ".sql")
	parts := strings.SplitN(name, "_", 3)

	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid migration file name format: %s (expected format: 0001_type_description.sql)", fileName)
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid version number in migration file: %s", fileName)
	}

	if MigrationType(parts[1]) != MigrationTypeMain {
		return nil, fmt.Errorf("unknown migration type in filename %s: %s", fileName, parts[1])
	}

	return &MigrationFile{
		FileName:    fileName,
		Version:     version,
		Type:        MigrationTypeMain,
		Description: parts[2],
		FilePath:    path.Join("migrations", fileName),
	}, nil
}

// getMigrationFiles reads and parses all embedded migration files, sorted by version
func getMigrationFiles() ([]*MigrationFile, error) {
	files, err := fs.ReadDir(EmbeddedMigrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations directory: %w", err)
	}
	var migrations []*MigrationFile
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		migration, err := parseMigrationFileName(f.Name())
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL UNIQUE,
		db_type TEXT NOT NULL DEFAULT '',
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}
	return nil
}

// getAppliedMigrations returns a set of applied migration filenames
func getAppliedMigrations(db *sql.DB, dbType MigrationType) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := db.Query(`SELECT filename FROM schema_migrations WHERE db_type = ? OR db_type = ''`, string(dbType))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations for %s: %w", dbType, err)
	}
	defer rows.Close()

	for rows.Next() {
		var fname string
		if err := rows.Scan(&fname); err != nil {
			return nil, fmt.Errorf("failed to scan migration filename for %s: %w", dbType, err)
		}
		applied[fname] = true
	}
	return applied, rows.Err()
}

// applyMigration runs one migration and records it in a single transaction
func applyMigration(db *sql.DB, migration *MigrationFile) error {
	content, err := fs.ReadFile(EmbeddedMigrationsFS, migration.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read migration file %s: %w", migration.FilePath, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to execute migration %s: %w", migration.FileName, err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_migrations (filename, db_type) VALUES (?, ?)`, migration.FileName, string(migration.Type)); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to record migration %s: %w", migration.FileName, err)
	}
	return tx.Commit()
}

// migrateMainDB applies migrations to the main database
func (db *Database) migrateMainDB() error {
	if err := ensureMigrationsTable(db.mainDB); err != nil {
		return err
	}

	migrations, err := getMigrationFiles()
	if err != nil {
		return err
	}

	applied, err := getAppliedMigrations(db.mainDB, MigrationTypeMain)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if applied[migration.FileName] {
			continue
		}
		if err := applyMigration(db.mainDB, migration); err != nil {
			return err
		}
		db.log.Infof("Applied migration %s to main database", migration.FileName)
	}
	return nil
}
