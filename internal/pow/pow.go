package pow

import (
	"context"
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/sha3"
)

// MaxDifficulty is the digest size; a higher difficulty can never be met.
const MaxDifficulty = 32

// attempts between context checks
const checkEvery = 1 << 12

// Sealable is a value whose proof of work can be searched for.
type Sealable interface {
	HeaderData() []byte
	SetProof(nonce uint64, digest [32]byte)
}

// ProofOfWork searches for nonces whose digest starts with difficulty zero bytes.
type ProofOfWork struct {
	difficulty int
	workers    int
}

func New(difficulty uint32, workers int) *ProofOfWork {
	if workers < 1 {
		workers = 1
	}
	return &ProofOfWork{difficulty: int(difficulty), workers: workers}
}

func (p *ProofOfWork) Difficulty() uint32 {
	return uint32(p.difficulty)
}

// Digest is SHA3-256 over data followed by the little-endian nonce.
func Digest(data []byte, nonce uint64) [32]byte {
	buf := make([]byte, len(data)+8)
	copy(buf, data)
	binary.LittleEndian.PutUint64(buf[len(data):], nonce)
	return sha3.Sum256(buf)
}

// Meets reports whether digest has at least difficulty leading zero bytes.
func (p *ProofOfWork) Meets(digest []byte) bool {
	if p.difficulty > len(digest) {
		return false
	}
	for i := 0; i < p.difficulty; i++ {
		if digest[i] != 0 {
			return false
		}
	}
	return true
}

func (p *ProofOfWork) Validate(data []byte, nonce uint64) bool {
	digest := Digest(data, nonce)
	return p.Meets(digest[:])
}

// Run searches for a nonce satisfying the difficulty. With a single worker the
// search is linear from zero and returns the smallest such nonce; with more
// workers each one walks its own stride and the first hit wins. Run only
// returns an error when ctx is done first.
func (p *ProofOfWork) Run(ctx context.Context, data []byte) (uint64, [32]byte, error) {
	if p.difficulty > MaxDifficulty {
		<-ctx.Done()
		return 0, [32]byte{}, ctx.Err()
	}
	if p.workers == 1 {
		return p.search(ctx, data, 0, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		nonce  uint64
		digest [32]byte
	}
	found := make(chan result, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(start uint64) {
			defer wg.Done()
			nonce, digest, err := p.search(ctx, data, start, uint64(p.workers))
			if err == nil {
				found <- result{nonce: nonce, digest: digest}
			}
		}(uint64(i))
	}

	go func() {
		wg.Wait()
		close(found)
	}()

	r, ok := <-found
	if !ok {
		return 0, [32]byte{}, ctx.Err()
	}
	cancel()
	return r.nonce, r.digest, nil
}

func (p *ProofOfWork) search(ctx context.Context, data []byte, start, step uint64) (uint64, [32]byte, error) {
	buf := make([]byte, len(data)+8)
	copy(buf, data)
	tail := buf[len(data):]

	for nonce, n := start, 0; ; nonce, n = nonce+step, n+1 {
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, [32]byte{}, err
			}
		}
		binary.LittleEndian.PutUint64(tail, nonce)
		digest := sha3.Sum256(buf)
		if p.Meets(digest[:]) {
			return nonce, digest, nil
		}
	}
}

// Seal searches a proof for s and records nonce and digest together.
func (p *ProofOfWork) Seal(ctx context.Context, s Sealable) error {
	nonce, digest, err := p.Run(ctx, s.HeaderData())
	if err != nil {
		return err
	}
	s.SetProof(nonce, digest)
	return nil
}
