// Package stores picks the saved-poster backend from the configuration.
package stores

import (
	"fmt"
	"log/slog"

	"poster-studio/internal/documents"
	"poster-studio/internal/stores/memory"
	"poster-studio/internal/stores/sqlite"
)

const (
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
)

const DefaultDataSourceName = "posters.db"

// Open returns the store for storageType. Anything but "sqlite" is in-memory.
func Open(storageType, dataSourceName string, logger *slog.Logger) (documents.Store, error) {
	switch storageType {
	case TypeSQLite:
		if dataSourceName == "" {
			dataSourceName = DefaultDataSourceName
		}
		store, err := sqlite.NewStore(dataSourceName)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		logger.Info("use storage", "storageType", TypeSQLite, "dataSourceName", dataSourceName)
		return store, nil
	default:
		logger.Info("use storage", "storageType", "in-memory")
		return memory.NewStore(), nil
	}
}
