package storage

import (
	"chainbridgex/internal/models"
	"fmt"
	"sync"
)

type MemoryStore struct {
	mu      sync.RWMutex
	blocks  map[uint64]models.Block
	order   []uint64
	pending []models.Transaction
}

func NewMemory() *MemoryStore {
	return &MemoryStore{blocks: make(map[uint64]models.Block)}
}

func (s *MemoryStore) SaveBlock(block models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blocks[block.Index]; ok {
		return fmt.Errorf("%w: index %d", ErrBlockExists, block.Index)
	}
	s.blocks[block.Index] = block
	s.order = append(s.order, block.Index)
	return nil
}

func (s *MemoryStore) Blocks() ([]models.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Block, 0, len(s.order))
	for _, idx := range s.order {
		out = append(out, s.blocks[idx])
	}
	return out, nil
}

func (s *MemoryStore) SavePending(txs []models.Transaction) error {
	s.mu.Lock()
	s.pending = append([]models.Transaction(nil), txs...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Pending() ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Transaction(nil), s.pending...), nil
}

func (s *MemoryStore) Close() error { return nil }
