package models

import (
	"chainbridgex/internal/pow"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"time"
)

// NewBlock builds a block and computes its hash from the given fields.
func NewBlock(index uint64, timestamp time.Time, txs []Transaction, previousHash string, nonce uint64) Block {
	if txs == nil {
		txs = []Transaction{}
	}
	b := Block{
		Index:        index,
		Timestamp:    timestamp.UTC().Round(0),
		Transactions: txs,
		PreviousHash: previousHash,
		Nonce:        nonce,
	}
	b.Hash = b.ComputeHash()
	return b
}

// HeaderData is the canonical encoding of every field except the nonce and
// the hash. It is the data the proof of work is searched over. Strings carry a
// length prefix and the transaction list a count, so no two distinct blocks
// share an encoding.
func (b *Block) HeaderData() []byte {
	buf := make([]byte, 0, 128+len(b.Transactions)*64)
	buf = binary.BigEndian.AppendUint64(buf, b.Index)
	buf = appendString(buf, b.Timestamp.UTC().Format(time.RFC3339Nano))
	buf = appendString(buf, b.PreviousHash)
	buf = binary.AppendUvarint(buf, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		buf = tx.appendCanonical(buf)
	}
	return buf
}

func appendString(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// ComputeHash recomputes the hex digest of the block from its fields.
func (b *Block) ComputeHash() string {
	digest := pow.Digest(b.HeaderData(), b.Nonce)
	return hex.EncodeToString(digest[:])
}

// VerifyHash reports whether the stored hash matches the block contents.
func (b *Block) VerifyHash() bool {
	return b.Hash == b.ComputeHash()
}

// SetProof records a nonce together with the digest it produced.
func (b *Block) SetProof(nonce uint64, digest [32]byte) {
	b.Nonce = nonce
	b.Hash = hex.EncodeToString(digest[:])
}

// HashBytes decodes the stored hash. Malformed hashes decode to nil.
func (b *Block) HashBytes() []byte {
	raw, err := hex.DecodeString(b.Hash)
	if err != nil || len(raw) != 32 {
		return nil
	}
	return raw
}

func (b *Block) ToJSON() ([]byte, error) {
	return json.Marshal(b)
}

func BlockFromJSON(data []byte) (Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return Block{}, err
	}
	if b.Transactions == nil {
		b.Transactions = []Transaction{}
	}
	return b, nil
}
