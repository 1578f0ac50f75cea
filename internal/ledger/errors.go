package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrEmptyMempool       = errors.New("no pending transactions to mine")
	ErrBlockNotFound      = errors.New("block not found")
	ErrInvalidProof       = errors.New("proof of work validation failed")
	ErrMiningCancelled    = errors.New("mining cancelled")
)

// IntegrityError names the first block at which chain validation failed.
type IntegrityError struct {
	Index  uint64
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violated at block %d: %s", e.Index, e.Reason)
}
