package storage

import (
	"chainbridgex/internal/models"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

var (
	blockPrefix = []byte("block:")
	pendingKey  = []byte("pending")
)

type BadgerStore struct {
	db     *badger.DB
	logger zerolog.Logger
}

func OpenBadger(opts badger.Options, logger zerolog.Logger) (*BadgerStore, error) {
	db, err := badger.Open(opts.WithLogger(badgerLogger{logger}))
	if err != nil {
		logger.Error().Err(err).Str("dir", opts.Dir).Msg("Failed to open BadgerDB")
		return nil, err
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// blockKey sorts blocks by index under the badger iterator.
func blockKey(index uint64) []byte {
	key := make([]byte, len(blockPrefix)+8)
	copy(key, blockPrefix)
	binary.BigEndian.PutUint64(key[len(blockPrefix):], index)
	return key
}

func (s *BadgerStore) SaveBlock(block models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	key := blockKey(block.Index)
	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: index %d", ErrBlockExists, block.Index)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		s.logger.Error().Err(err).Uint64("index", block.Index).Msg("Failed to save block")
		return err
	}

	s.logger.Debug().Uint64("index", block.Index).Str("hash", block.Hash).Msg("Block saved")
	return nil
}

func (s *BadgerStore) Blocks() ([]models.Block, error) {
	var blocks []models.Block

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(blockPrefix); iter.ValidForPrefix(blockPrefix); iter.Next() {
			var block models.Block
			err := iter.Item().Value(func(val []byte) error {
				var err error
				block, err = models.BlockFromJSON(val)
				return err
			})
			if err != nil {
				return err
			}
			blocks = append(blocks, block)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load blocks")
		return nil, err
	}

	s.logger.Debug().Int("count", len(blocks)).Msg("Blocks loaded")
	return blocks, nil
}

func (s *BadgerStore) SavePending(txs []models.Transaction) error {
	if txs == nil {
		txs = []models.Transaction{}
	}
	data, err := json.Marshal(txs)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey, data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to save pending transactions")
		return err
	}
	return nil
}

func (s *BadgerStore) Pending() ([]models.Transaction, error) {
	var txs []models.Transaction

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &txs)
		})
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load pending transactions")
		return nil, err
	}
	return txs, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// badgerLogger routes badger's own logging through zerolog.
type badgerLogger struct {
	zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.Error().Msgf(format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.Warn().Msgf(format, args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.Debug().Msgf(format, args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.Trace().Msgf(format, args...)
}
