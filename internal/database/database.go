package database

import (
	"fmt"
	"os"
	"path/filepath"

	"nback-go/internal/config"
	logging "nback-go/internal/logging"
	"nback-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database and runs migrations.
func Open(dbConf config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(dbConf)
	if err != nil {
		return nil, err
	}

	// Create our custom GORM logger
	gormLogger := logging.NewGormZapLogger(log)
	gormLogger.LogLevel = logger.Warn

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s database: %w", dbConf.Driver, err)
	}

	log.Info("Database connection established successfully.", zap.String("driver", dbConf.Driver))
	if err := runMigrations(db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func dialectorFor(dbConf config.DatabaseConfig) (gorm.Dialector, error) {
	switch dbConf.Driver {
	case "", "sqlite":
		if dbConf.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dbConf.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		return sqlite.Open(dbConf.Path), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			dbConf.Host, dbConf.User, dbConf.Password, dbConf.DBName, dbConf.Port)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", dbConf.Driver)
	}
}

func runMigrations(db *gorm.DB, log *zap.Logger) error {
	// GORM's AutoMigrate will create tables, columns, and foreign keys.
	// It will NOT create custom indexes, so we handle that separately.
	err := db.AutoMigrate(
		&models.User{},
		&models.SessionResult{},
		&models.TrialEvent{},
	)
	if err != nil {
		return fmt.Errorf("run database migrations: %w", err)
	}
	log.Info("Database migrations completed successfully.")

	historyIndex := `CREATE INDEX IF NOT EXISTS idx_history_replay ON session_results (user_name, mode_id, played_at);`
	if err := db.Exec(historyIndex).Error; err != nil {
		return fmt.Errorf("create history index: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
