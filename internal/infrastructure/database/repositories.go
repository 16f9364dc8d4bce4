package database

import (
	"context"
	"fmt"

	"github.com/wekeepgrowing/billing-identity/internal/adapter/repository"
	"github.com/wekeepgrowing/billing-identity/internal/config"
	domainRepo "github.com/wekeepgrowing/billing-identity/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	CustomerMapping domainRepo.CustomerMappingRepository

	db *gorm.DB
}

// NewRepositories builds the mapping store for the configured backend. The postgres
// backend connects and migrates; the supabase backend needs no connection.
func NewRepositories(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Repositories, error) {
	switch cfg.Mapping.Backend {
	case config.MappingBackendSupabase:
		logger.Info("Using Supabase mapping store",
			zap.String("project_url", cfg.Service.Supabase.ProjectURL),
			zap.String("table", cfg.Service.Supabase.MappingTable))
		return &Repositories{
			CustomerMapping: repository.NewSupabaseCustomerMappingRepository(
				cfg.Service.Supabase.ProjectURL,
				cfg.Service.Supabase.APIKey,
				cfg.Service.Supabase.MappingTable,
				logger,
			),
		}, nil

	case config.MappingBackendPostgres, "":
		db, err := NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := Migrate(db, logger); err != nil {
			_ = Close(db, logger)
			return nil, err
		}
		return NewGormRepositories(db), nil

	default:
		return nil, fmt.Errorf("unsupported mapping backend: %s", cfg.Mapping.Backend)
	}
}

// NewGormRepositories creates repositories on an open gorm connection.
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		CustomerMapping: repository.NewCustomerMappingRepository(db),
		db:              db,
	}
}

// Close releases the database connection, if any.
func (r *Repositories) Close(logger *zap.Logger) error {
	if r.db == nil {
		return nil
	}
	return Close(r.db, logger)
}
