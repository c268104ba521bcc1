package database

import (
	"context"
	"fmt"

	"mihac/internal/config"
	"mihac/internal/models"
	"mihac/internal/services/database/sqlite"
	"mihac/internal/utils"
)

// DefaultListLimit caps ListRecent when the caller passes no limit.
const DefaultListLimit = 50

// EvaluationStore persists evaluation records.
type EvaluationStore interface {
	Save(ctx context.Context, rec *models.EvaluationRecord) error
	SaveBatch(ctx context.Context, recs []*models.EvaluationRecord) error
	Get(ctx context.Context, id string) (*models.EvaluationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.EvaluationRecord, error)
	Dashboard(ctx context.Context) (*models.DashboardSummary, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// OpenStore opens the store selected by cfg.StoreDriver and applies its
// schema. It returns nil, nil when persistence is disabled.
func OpenStore(ctx context.Context, cfg *config.Config) (EvaluationStore, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := New(cfg)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		utils.GetLogger().Info("Using PostgreSQL evaluation store", utils.String("host", cfg.DBHost))
		return NewEvaluationRepository(db), nil

	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		utils.GetLogger().Info("Using sqlite evaluation store", utils.String("path", cfg.SQLitePath))
		return store, nil

	case config.StoreNone, "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
