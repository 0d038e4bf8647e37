package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"beltway.ai/internal/persistence/indexdb"
)

// openRuntimeIndex opens the read-model index. It never affects sim determinism; a nil index
// simply disables the query endpoints.
func openRuntimeIndex(dbPath string, disableDB bool, logger zerolog.Logger) (*indexdb.SQLiteIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("BW_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		logger.Info().Msg("index backend disabled")
		return nil, nil
	case "sqlite":
		if strings.TrimSpace(dbPath) == "" {
			return nil, fmt.Errorf("sqlite index enabled but no db path configured")
		}
		logger.Info().Str("path", filepath.Clean(dbPath)).Msg("index backend sqlite")
		return indexdb.OpenSQLite(dbPath)
	default:
		return nil, fmt.Errorf("unsupported BW_INDEX_BACKEND: %s", backend)
	}
}
