package storage

import (
	"chainbridgex/internal/models"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS blocks (
	idx  INTEGER PRIMARY KEY,
	hash TEXT UNIQUE NOT NULL,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS pending (
	seq  INTEGER PRIMARY KEY,
	data BLOB NOT NULL
);`

type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		logger.Error().Err(err).Str("path", path).Msg("Failed to create schema")
		return nil, err
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) SaveBlock(block models.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}

	_, err = s.db.Exec("INSERT INTO blocks (idx, hash, data) VALUES (?, ?, ?)", block.Index, block.Hash, data)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		err = fmt.Errorf("%w: index %d", ErrBlockExists, block.Index)
	}
	if err != nil {
		s.logger.Error().Err(err).Uint64("index", block.Index).Msg("Failed to save block")
		return err
	}

	s.logger.Debug().Uint64("index", block.Index).Str("hash", block.Hash).Msg("Block saved")
	return nil
}

func (s *SQLiteStore) Blocks() ([]models.Block, error) {
	rows, err := s.db.Query("SELECT data FROM blocks ORDER BY idx")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		block, err := models.BlockFromJSON(data)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to load blocks")
		return nil, err
	}
	return blocks, nil
}

func (s *SQLiteStore) SavePending(txs []models.Transaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM pending"); err != nil {
		return err
	}
	for i, t := range txs {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("INSERT INTO pending (seq, data) VALUES (?, ?)", i, data); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to save pending transactions")
		return err
	}
	return nil
}

func (s *SQLiteStore) Pending() ([]models.Transaction, error) {
	rows, err := s.db.Query("SELECT data FROM pending ORDER BY seq")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t models.Transaction
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
