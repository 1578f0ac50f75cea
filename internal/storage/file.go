package storage

import (
	"chainbridgex/internal/config"
	"chainbridgex/internal/models"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

type fileState struct {
	Blocks  []models.Block       `json:"blocks"`
	Pending []models.Transaction `json:"pending"`
}

// FileStore keeps the whole ledger in one JSON document that is rewritten on
// every change.
type FileStore struct {
	mu     sync.Mutex
	path   string
	state  fileState
	logger zerolog.Logger
}

func OpenFile(path string, logger zerolog.Logger) (*FileStore, error) {
	s := &FileStore{path: path, logger: logger}

	data, err := config.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return nil, &config.Error{Message: fmt.Sprintf("failed to parse state file %s: %v", path, err), Err: err}
	}
	return s, nil
}

func (s *FileStore) SaveBlock(block models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range s.state.Blocks {
		if b.Index == block.Index {
			return fmt.Errorf("%w: index %d", ErrBlockExists, block.Index)
		}
	}

	next := s.state
	next.Blocks = append(append([]models.Block(nil), s.state.Blocks...), block)
	if err := s.writeLocked(next); err != nil {
		s.logger.Error().Err(err).Uint64("index", block.Index).Msg("Failed to save block")
		return err
	}
	return nil
}

func (s *FileStore) Blocks() ([]models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Block(nil), s.state.Blocks...), nil
}

func (s *FileStore) SavePending(txs []models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	next.Pending = append([]models.Transaction(nil), txs...)
	return s.writeLocked(next)
}

func (s *FileStore) Pending() ([]models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Transaction(nil), s.state.Pending...), nil
}

func (s *FileStore) Close() error { return nil }

// writeLocked commits next to disk and only then makes it the current state.
func (s *FileStore) writeLocked(next fileState) error {
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := config.WriteFile(s.path, data); err != nil {
		return err
	}
	s.state = next
	return nil
}
