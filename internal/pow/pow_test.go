package pow

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMeets(t *testing.T) {
	tests := []struct {
		name       string
		difficulty uint32
		digest     []byte
		want       bool
	}{
		{"zero difficulty accepts anything", 0, []byte{0xff, 0x00}, true},
		{"one leading zero byte", 1, []byte{0x00, 0xff}, true},
		{"first byte non-zero", 1, []byte{0x01, 0x00}, false},
		{"two required, one present", 2, []byte{0x00, 0x01, 0x00}, false},
		{"two required, three present", 2, []byte{0x00, 0x00, 0x00}, true},
		{"difficulty longer than digest", 4, []byte{0x00, 0x00}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.difficulty, 1)
			if got := p.Meets(tt.digest); got != tt.want {
				t.Errorf("Meets(%x) = %v, want %v", tt.digest, got, tt.want)
			}
		})
	}
}

func TestRunFindsSmallestNonce(t *testing.T) {
	p := New(1, 1)
	data := []byte("block header")

	nonce, digest, err := p.Run(context.Background(), data)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if digest != Digest(data, nonce) {
		t.Fatalf("Run() digest does not match Digest(data, %d)", nonce)
	}
	if !p.Validate(data, nonce) {
		t.Fatalf("Validate(data, %d) = false for a nonce returned by Run()", nonce)
	}
	for n := uint64(0); n < nonce; n++ {
		if p.Validate(data, n) {
			t.Fatalf("nonce %d also satisfies difficulty, Run() returned %d", n, nonce)
		}
	}
}

func TestRunParallelWorkers(t *testing.T) {
	p := New(1, 4)
	data := []byte("parallel search")

	nonce, _, err := p.Run(context.Background(), data)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !p.Validate(data, nonce) {
		t.Errorf("Validate(data, %d) = false", nonce)
	}
}

func TestValidateRejectsOtherData(t *testing.T) {
	p := New(1, 1)
	nonce, _, err := p.Run(context.Background(), []byte("a"))
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	// Not guaranteed to fail for arbitrary data, but the digest must differ.
	if Digest([]byte("a"), nonce) == Digest([]byte("b"), nonce) {
		t.Error("different data produced the same digest")
	}
}

func TestRunCancelled(t *testing.T) {
	for _, workers := range []int{1, 3} {
		p := New(MaxDifficulty, workers)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)

		_, _, err := p.Run(ctx, []byte("never"))
		cancel()
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("workers=%d: Run() error = %v, want %v", workers, err, context.DeadlineExceeded)
		}
	}
}

type header struct {
	data   []byte
	nonce  uint64
	digest [32]byte
}

func (h *header) HeaderData() []byte { return h.data }

func (h *header) SetProof(nonce uint64, digest [32]byte) {
	h.nonce = nonce
	h.digest = digest
}

func TestSeal(t *testing.T) {
	p := New(1, 1)
	h := &header{data: []byte("sealable")}

	if err := p.Seal(context.Background(), h); err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if h.digest != Digest(h.data, h.nonce) {
		t.Error("Seal() stored a digest that does not belong to its nonce")
	}
	if !p.Meets(h.digest[:]) {
		t.Errorf("sealed digest %x does not meet difficulty", h.digest)
	}
}
