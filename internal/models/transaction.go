package models

import (
	"encoding/binary"
	"strconv"
)

// BlockReward is the amount credited by a coinbase transaction.
const BlockReward uint64 = 50

// NewCoinbase returns the mining reward transaction paying BlockReward to miner.
func NewCoinbase(miner string) Transaction {
	return Transaction{
		To:       miner,
		Amount:   BlockReward,
		Coinbase: true,
	}
}

// IsValid reports whether tx may enter the mempool. Coinbase transactions are
// always valid.
func (tx Transaction) IsValid() bool {
	if tx.Coinbase {
		return true
	}
	return tx.From != "" && tx.To != "" && tx.Amount > 0
}

// String is the readable form used in logs and error messages.
func (tx Transaction) String() string {
	s := tx.From + "->" + tx.To + ":" + strconv.FormatUint(tx.Amount, 10)
	if tx.Coinbase {
		return "coinbase:" + s
	}
	return s
}

// appendCanonical is the unambiguous encoding hashed into blocks.
func (tx Transaction) appendCanonical(buf []byte) []byte {
	var flag byte
	if tx.Coinbase {
		flag = 1
	}
	buf = append(buf, flag)
	buf = appendString(buf, tx.From)
	buf = appendString(buf, tx.To)
	return binary.BigEndian.AppendUint64(buf, tx.Amount)
}
