// Package store keeps shops in a gorm database and serves the active ones as
// marker descriptors.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/salonbook/mapsync/internal/geo"
	"github.com/salonbook/mapsync/pkg/core"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrNotFound      = errors.New("shop not found")
)

// Shop is a bookable location shown on the map.
type Shop struct {
	ID        string  `gorm:"primaryKey;size:64" json:"id"`
	Name      string  `gorm:"size:255;not null;index" json:"name"`
	Longitude float64 `gorm:"not null" json:"longitude"`
	Latitude  float64 `gorm:"not null" json:"latitude"`
	Active    bool    `gorm:"not null;index" json:"active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName fixes the table name regardless of naming strategy.
func (Shop) TableName() string {
	return "shops"
}

// Descriptor converts the shop to a marker descriptor.
func (s Shop) Descriptor() core.MarkerDescriptor {
	return core.MarkerDescriptor{
		ID:          s.ID,
		DisplayName: s.Name,
		Position:    core.Position{Longitude: s.Longitude, Latitude: s.Latitude},
	}
}

// Config selects the database.
type Config struct {
	Driver string // sqlite | postgres
	Path   string // sqlite file; empty means in-memory
	DSN    string // postgres connection string
}

// Store is a gorm-backed shop table.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "file::memory:"
		}
		db, err = gorm.Open(sqlite.Open(path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
		}
		if cfg.Path == "" {
			// each connection would otherwise see its own empty database
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("failed to access sql interface: %w", err)
			}
			sqlDB.SetMaxOpenConns(1)
			log.Info("Using local SQLite DB in memory")
		} else {
			log.Info("Using local SQLite DB", "path", cfg.Path)
		}
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		log.Info("Connected to database")
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	if err := db.AutoMigrate(&Shop{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// Upsert inserts the shops or overwrites existing rows with the same id.
func (s *Store) Upsert(ctx context.Context, shops ...Shop) error {
	if len(shops) == 0 {
		return nil
	}
	for _, shop := range shops {
		if shop.ID == "" {
			return fmt.Errorf("shop %q: empty id", shop.Name)
		}
		pos := core.Position{Longitude: shop.Longitude, Latitude: shop.Latitude}
		if err := geo.Validate(pos); err != nil {
			return fmt.Errorf("shop %s: %w", shop.ID, err)
		}
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "longitude", "latitude", "active", "updated_at"}),
	}).Create(&shops).Error
	if err != nil {
		return fmt.Errorf("upserting shops: %w", err)
	}
	s.logger.Debug("shops upserted", "count", len(shops))
	return nil
}

// Deactivate hides the shop from the map without deleting it.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&Shop{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivating shop %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Get returns one shop by id.
func (s *Store) Get(ctx context.Context, id string) (Shop, error) {
	var shop Shop
	err := s.db.WithContext(ctx).First(&shop, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Shop{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Shop{}, fmt.Errorf("loading shop %s: %w", id, err)
	}
	return shop, nil
}

// Descriptors returns the active shops ordered by name, then id.
func (s *Store) Descriptors(ctx context.Context) ([]core.MarkerDescriptor, error) {
	var shops []Shop
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("name").Order("id").
		Find(&shops).Error
	if err != nil {
		return nil, fmt.Errorf("listing shops: %w", err)
	}

	out := make([]core.MarkerDescriptor, 0, len(shops))
	for _, shop := range shops {
		out = append(out, shop.Descriptor())
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to access sql interface: %w", err)
	}
	return sqlDB.Close()
}
