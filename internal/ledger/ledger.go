package ledger

import (
	"chainbridgex/internal/models"
	"chainbridgex/internal/pow"
	"chainbridgex/internal/storage"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Blockchain owns the block sequence and the mempool. All access goes through
// its methods; readers receive copies.
type Blockchain struct {
	mu      sync.RWMutex
	blocks  []models.Block
	pending []models.Transaction

	// serializes miners so a candidate's tip and mempool prefix stay current
	mineMu sync.Mutex

	pow     *pow.ProofOfWork
	workers int
	store   storage.Store
	logger  zerolog.Logger
	now     func() time.Time
}

type Option func(*Blockchain)

// WithStore persists every sealed block to s before it is appended.
func WithStore(s storage.Store) Option {
	return func(bc *Blockchain) { bc.store = s }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(bc *Blockchain) { bc.logger = logger }
}

// WithWorkers sets the number of parallel nonce search workers.
func WithWorkers(n int) Option {
	return func(bc *Blockchain) { bc.workers = n }
}

func WithClock(now func() time.Time) Option {
	return func(bc *Blockchain) { bc.now = now }
}

func newBlockchain(difficulty uint32, opts []Option) *Blockchain {
	bc := &Blockchain{
		pending: []models.Transaction{},
		workers: 1,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(bc)
	}
	bc.pow = pow.New(difficulty, bc.workers)
	return bc
}

// New returns a chain holding only a fresh genesis block. A store passed via
// WithStore receives later blocks but not the genesis; use Open for a
// persistent chain.
func New(difficulty uint32, opts ...Option) *Blockchain {
	bc := newBlockchain(difficulty, opts)
	bc.blocks = []models.Block{NewGenesis(bc.now())}
	return bc
}

// Open restores the chain and mempool from store, creating and persisting a
// genesis block when the store is empty. A restored chain that fails
// validation is rejected.
func Open(store storage.Store, difficulty uint32, opts ...Option) (*Blockchain, error) {
	bc := newBlockchain(difficulty, append(opts, WithStore(store)))

	blocks, err := store.Blocks()
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}

	if len(blocks) == 0 {
		genesis := NewGenesis(bc.now())
		if err := store.SaveBlock(genesis); err != nil {
			return nil, fmt.Errorf("save genesis: %w", err)
		}
		bc.logger.Info().Str("hash", genesis.Hash).Msg("Genesis block created")
		blocks = []models.Block{genesis}
	}
	bc.blocks = blocks

	if err := bc.Verify(); err != nil {
		return nil, err
	}

	pending, err := store.Pending()
	if err != nil {
		return nil, fmt.Errorf("load pending transactions: %w", err)
	}
	for _, tx := range pending {
		if !tx.IsValid() {
			bc.logger.Warn().Str("tx", tx.String()).Msg("Dropping invalid pending transaction")
			continue
		}
		bc.pending = append(bc.pending, tx)
	}

	bc.logger.Info().
		Int("blocks", len(bc.blocks)).
		Int("pending", len(bc.pending)).
		Uint32("difficulty", difficulty).
		Msg("Chain loaded")
	return bc, nil
}

// NewGenesis builds the first block. Its previous hash is a random UUID-shaped
// placeholder since it has no predecessor.
func NewGenesis(ts time.Time) models.Block {
	return models.NewBlock(0, ts, nil, newPlaceholder(), 0)
}

func newPlaceholder() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("ledger: reading random bytes: %v", err))
	}
	b[6] = b[6]&0x0f | 0x40
	b[8] = b[8]&0x3f | 0x80
	h := hex.EncodeToString(b[:])
	return h[0:8] + "-" + h[8:12] + "-" + h[12:16] + "-" + h[16:20] + "-" + h[20:]
}

func (bc *Blockchain) Difficulty() uint32 {
	return bc.pow.Difficulty()
}

// ProofOfWork exposes the engine the chain validates against.
func (bc *Blockchain) ProofOfWork() *pow.ProofOfWork {
	return bc.pow
}

// AddTransaction appends tx to the mempool if it is valid and reports whether
// it was accepted.
func (bc *Blockchain) AddTransaction(tx models.Transaction) bool {
	return bc.Submit(tx) == nil
}

func (bc *Blockchain) Submit(tx models.Transaction) error {
	if !tx.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidTransaction, tx)
	}

	bc.mu.Lock()
	bc.pending = append(bc.pending, tx)
	n := len(bc.pending)
	bc.mu.Unlock()

	bc.logger.Debug().Str("tx", tx.String()).Int("pending", n).Msg("Transaction added to mempool")
	return nil
}

// MineBlock seals the current mempool into a new block. The nonce search runs
// without holding the ledger lock and stops when ctx is done; the block is
// then persisted and appended, and the mined transactions leave the mempool,
// in a single critical section. Transactions submitted during the search stay
// pending. ErrEmptyMempool is returned, with no state change, when nothing is
// pending.
func (bc *Blockchain) MineBlock(ctx context.Context) (*models.Block, error) {
	return bc.mine(ctx, "")
}

// MineWithReward is MineBlock with a coinbase paying miner appended to the
// mined transactions, unless the mempool already carries one. The coinbase is
// added to the candidate only, so it never waits in the mempool.
func (bc *Blockchain) MineWithReward(ctx context.Context, miner string) (*models.Block, error) {
	return bc.mine(ctx, miner)
}

func (bc *Blockchain) mine(ctx context.Context, miner string) (*models.Block, error) {
	bc.mineMu.Lock()
	defer bc.mineMu.Unlock()

	for {
		bc.mu.RLock()
		if len(bc.pending) == 0 {
			bc.mu.RUnlock()
			return nil, ErrEmptyMempool
		}
		txs := append([]models.Transaction(nil), bc.pending...)
		tip := bc.blocks[len(bc.blocks)-1]
		bc.mu.RUnlock()

		taken := len(txs)
		if miner != "" && !hasCoinbase(txs) {
			txs = append(txs, models.NewCoinbase(miner))
		}

		candidate := models.NewBlock(tip.Index+1, bc.now(), txs, tip.Hash, 0)

		start := time.Now()
		if err := bc.pow.Seal(ctx, &candidate); err != nil {
			bc.logger.Warn().Err(err).Uint64("index", candidate.Index).Dur("elapsed", time.Since(start)).Msg("Mining stopped")
			return nil, fmt.Errorf("%w: %w", ErrMiningCancelled, err)
		}
		if !bc.CheckProof(candidate) {
			return nil, ErrInvalidProof
		}

		bc.mu.Lock()
		if bc.blocks[len(bc.blocks)-1].Hash != candidate.PreviousHash {
			bc.mu.Unlock()
			bc.logger.Info().Uint64("index", candidate.Index).Msg("Chain tip moved during mining, retrying")
			continue
		}
		if bc.store != nil {
			if err := bc.store.SaveBlock(candidate); err != nil {
				bc.mu.Unlock()
				return nil, fmt.Errorf("persist block %d: %w", candidate.Index, err)
			}
		}
		bc.blocks = append(bc.blocks, candidate)
		bc.pending = append([]models.Transaction{}, bc.pending[taken:]...)
		remaining := append([]models.Transaction(nil), bc.pending...)
		bc.mu.Unlock()

		if bc.store != nil {
			if err := bc.store.SavePending(remaining); err != nil {
				bc.logger.Warn().Err(err).Msg("Failed to persist mempool after mining")
			}
		}

		bc.logger.Info().
			Uint64("index", candidate.Index).
			Str("hash", candidate.Hash).
			Uint64("nonce", candidate.Nonce).
			Int("transactions", len(txs)).
			Dur("elapsed", time.Since(start)).
			Msg("Block mined")

		sealed := cloneBlock(candidate)
		return &sealed, nil
	}
}

// CheckProof reports whether b's hash matches its contents and satisfies the
// chain difficulty.
func (bc *Blockchain) CheckProof(b models.Block) bool {
	return b.VerifyHash() && bc.pow.Validate(b.HeaderData(), b.Nonce)
}

// IsValid walks the chain and reports whether every block is intact.
func (bc *Blockchain) IsValid() bool {
	return bc.Verify() == nil
}

// Verify is IsValid with diagnostics: it returns an *IntegrityError for the
// first failing block.
func (bc *Blockchain) Verify() error {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if len(bc.blocks) == 0 {
		return &IntegrityError{Index: 0, Reason: "chain has no genesis block"}
	}

	for i := range bc.blocks {
		b := &bc.blocks[i]
		if i == 0 {
			if b.Index != 0 {
				return &IntegrityError{Index: b.Index, Reason: "genesis index is not zero"}
			}
			if !b.VerifyHash() {
				return &IntegrityError{Index: 0, Reason: "stored hash does not match block contents"}
			}
			continue
		}

		prev := &bc.blocks[i-1]
		if b.PreviousHash != prev.Hash {
			return &IntegrityError{Index: b.Index, Reason: "previous hash does not match predecessor"}
		}
		if b.Index != prev.Index+1 {
			return &IntegrityError{Index: b.Index, Reason: fmt.Sprintf("index follows %d", prev.Index)}
		}
		if !b.VerifyHash() {
			return &IntegrityError{Index: b.Index, Reason: "stored hash does not match block contents"}
		}
		if !bc.pow.Meets(b.HashBytes()) {
			return &IntegrityError{Index: b.Index, Reason: "hash does not satisfy difficulty"}
		}
		for _, tx := range b.Transactions {
			if !tx.IsValid() {
				return &IntegrityError{Index: b.Index, Reason: "contains invalid transaction " + tx.String()}
			}
		}
	}
	return nil
}

func (bc *Blockchain) Len() int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return len(bc.blocks)
}

func (bc *Blockchain) Tip() models.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return cloneBlock(bc.blocks[len(bc.blocks)-1])
}

func (bc *Blockchain) Blocks() []models.Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	out := make([]models.Block, len(bc.blocks))
	for i := range bc.blocks {
		out[i] = cloneBlock(bc.blocks[i])
	}
	return out
}

func (bc *Blockchain) Block(index uint64) (models.Block, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	if index >= uint64(len(bc.blocks)) {
		return models.Block{}, fmt.Errorf("%w: index %d", ErrBlockNotFound, index)
	}
	return cloneBlock(bc.blocks[index]), nil
}

// Pending returns the mempool in arrival order.
func (bc *Blockchain) Pending() []models.Transaction {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return append([]models.Transaction{}, bc.pending...)
}

func hasCoinbase(txs []models.Transaction) bool {
	for _, tx := range txs {
		if tx.Coinbase {
			return true
		}
	}
	return false
}

// Balance replays every confirmed transaction: credits to address minus
// debits from it. Coinbase rewards have no debit side.
func (bc *Blockchain) Balance(address string) *big.Int {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	balance := new(big.Int)
	amount := new(big.Int)
	for _, b := range bc.blocks {
		for _, tx := range b.Transactions {
			if tx.To == address {
				balance.Add(balance, amount.SetUint64(tx.Amount))
			}
			if tx.From == address && !tx.Coinbase {
				balance.Sub(balance, amount.SetUint64(tx.Amount))
			}
		}
	}
	return balance
}

// FlushPending writes the mempool to the store.
func (bc *Blockchain) FlushPending() error {
	if bc.store == nil {
		return nil
	}
	return bc.store.SavePending(bc.Pending())
}

// Close flushes the mempool. The store itself is owned by the caller.
func (bc *Blockchain) Close() error {
	return bc.FlushPending()
}

type chainJSON struct {
	Blocks     []models.Block       `json:"blocks"`
	Pending    []models.Transaction `json:"unconfirmed_transactions"`
	Difficulty uint32               `json:"difficulty"`
}

func (bc *Blockchain) MarshalJSON() ([]byte, error) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return json.Marshal(chainJSON{
		Blocks:     bc.blocks,
		Pending:    bc.pending,
		Difficulty: bc.pow.Difficulty(),
	})
}

// FromJSON decodes a chain written by MarshalJSON. Stored hashes are kept as
// is, so Verify detects tampering in the document.
func FromJSON(data []byte, opts ...Option) (*Blockchain, error) {
	var doc chainJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Blocks) == 0 {
		return nil, &IntegrityError{Index: 0, Reason: "chain has no genesis block"}
	}

	bc := newBlockchain(doc.Difficulty, opts)
	bc.blocks = doc.Blocks
	for i := range bc.blocks {
		if bc.blocks[i].Transactions == nil {
			bc.blocks[i].Transactions = []models.Transaction{}
		}
	}
	if doc.Pending != nil {
		bc.pending = doc.Pending
	}
	return bc, nil
}

func cloneBlock(b models.Block) models.Block {
	b.Transactions = append([]models.Transaction{}, b.Transactions...)
	return b
}
