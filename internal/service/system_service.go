package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/fund-ledger/internal/apperrors"
	"github.com/ndewijer/fund-ledger/internal/database"
	"github.com/ndewijer/fund-ledger/internal/version"
)

// VersionInfo describes the running build and database schema.
type VersionInfo struct {
	AppVersion        string `json:"appVersion"`
	DbVersion         int64  `json:"dbVersion"`
	MigrationsPending bool   `json:"migrationsPending"`
}

// SystemService handles system-related operations
type SystemService struct {
	db *sql.DB
}

// NewSystemService creates a new SystemService
func NewSystemService(db *sql.DB) *SystemService {
	return &SystemService{
		db: db,
	}
}

// CheckHealth checks the health of the system
func (s *SystemService) CheckHealth() error {
	return database.HealthCheck(s.db)
}

// CheckVersion reports the application version and the applied migration version.
func (s *SystemService) CheckVersion(ctx context.Context) (VersionInfo, error) {
	dbVersion, pending, err := database.SchemaVersion(ctx, s.db)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("%w: %w", apperrors.ErrFailedToGetVersionInfo, err)
	}
	return VersionInfo{
		AppVersion:        version.Version,
		DbVersion:         dbVersion,
		MigrationsPending: pending,
	}, nil
}
