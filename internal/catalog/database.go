package catalog

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/stitts-dev/multi-builder/internal/models"
	"github.com/stitts-dev/multi-builder/pkg/logger"
)

// DatabaseSource reads games and selections from the games and selections
// tables.
type DatabaseSource struct {
	db     *gorm.DB
	logger *logrus.Entry
}

func NewDatabaseSource(db *gorm.DB) *DatabaseSource {
	return &DatabaseSource{
		db:     db,
		logger: logger.WithCatalogContext("database"),
	}
}

func (s *DatabaseSource) Name() string {
	return "database"
}

// Migrate creates or updates the catalog tables.
func (s *DatabaseSource) Migrate() error {
	if err := s.db.AutoMigrate(&models.Game{}, &models.Selection{}); err != nil {
		return fmt.Errorf("failed to migrate catalog tables: %w", err)
	}
	return nil
}

func (s *DatabaseSource) Load(ctx context.Context) (*models.Catalog, error) {
	var games []models.Game
	err := s.db.WithContext(ctx).
		Preload("Selections", func(db *gorm.DB) *gorm.DB {
			return db.Order("id")
		}).
		Order("id").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query games: %w", err)
	}

	cat, err := newCatalog(s.Name(), games)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"games":      len(cat.Games),
		"selections": cat.SelectionCount(),
	}).Info("Loaded catalog from database")

	return cat, nil
}

// Replace swaps the stored round for the games in catalog inside one
// transaction.
func (s *DatabaseSource) Replace(ctx context.Context, catalog *models.Catalog) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Selection{}).Error; err != nil {
			return fmt.Errorf("failed to clear selections: %w", err)
		}
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.Game{}).Error; err != nil {
			return fmt.Errorf("failed to clear games: %w", err)
		}
		if catalog == nil || len(catalog.Games) == 0 {
			return nil
		}
		if err := tx.Create(&catalog.Games).Error; err != nil {
			return fmt.Errorf("failed to store games: %w", err)
		}
		return nil
	})
}
