package repository

import (
	"context"
	"fmt"

	"nback-go/internal/config"
	"nback-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultUser is the profile used when no user has been selected.
const DefaultUser = "default"

// HistoryStore persists completed session summaries per user.
type HistoryStore interface {
	// Load returns the user's records in the order they were saved.
	Load(ctx context.Context, user string) ([]models.HistoryRecord, error)
	// Save appends one completed session. sess may be nil when only the
	// summary is known.
	Save(ctx context.Context, user string, rec models.HistoryRecord, sess *models.Session) error
	// Users lists every user with stored history.
	Users(ctx context.Context) ([]string, error)
}

// NewHistoryStore builds the backend selected by conf.Backend. db is only
// consulted for the "db" backend.
func NewHistoryStore(conf config.StorageConfig, db *gorm.DB, log *zap.Logger) (HistoryStore, error) {
	switch conf.Backend {
	case "", "file":
		return NewFileStore(conf.DataDir, conf.StatsFile, log), nil
	case "db":
		if db == nil {
			return nil, fmt.Errorf("storage backend %q needs a database connection", conf.Backend)
		}
		return NewDBStore(db, log), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", conf.Backend)
	}
}
