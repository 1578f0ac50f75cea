package storage

import (
	"chainbridgex/internal/models"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var ErrBlockExists = errors.New("block already stored")

// Store persists the ledger: sealed blocks one at a time and the pending
// transaction pool as a whole.
type Store interface {
	SaveBlock(block models.Block) error
	Blocks() ([]models.Block, error)
	SavePending(txs []models.Transaction) error
	Pending() ([]models.Transaction, error)
	Close() error
}

// Open returns the store for backend at path.
func Open(backend, path string, logger zerolog.Logger) (Store, error) {
	logger = logger.With().Str("backend", backend).Logger()

	var (
		store Store
		err   error
	)
	switch strings.ToLower(backend) {
	case "badger":
		store, err = OpenBadger(badger.DefaultOptions(path), logger)
	case "sqlite":
		store, err = OpenSQLite(path, logger)
	case "file":
		store, err = OpenFile(path, logger)
	case "memory":
		store = NewMemory()
	default:
		err = fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("Storage opened")
	return store, nil
}
