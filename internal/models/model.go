package models

import "time"

type Transaction struct {
	From     string `json:"from_address"`
	To       string `json:"to_address"`
	Amount   uint64 `json:"amount"`
	Coinbase bool   `json:"coinbase,omitempty"`
}

type Block struct {
	Index        uint64        `json:"index"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previous_hash"`
	Hash         string        `json:"hash"`
	Nonce        uint64        `json:"nonce"`
}
