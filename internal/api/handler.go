package api

import (
	"chainbridgex/internal/ledger"
	"chainbridgex/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type API struct {
	chain       *ledger.Blockchain
	miner       string
	mineTimeout time.Duration
	logger      zerolog.Logger
}

type AddTransactionRequest struct {
	From   string `json:"from_address"`
	To     string `json:"to_address"`
	Amount uint64 `json:"amount"`
}

// NewAPI serves chain over HTTP. Mined blocks pay their reward to miner.
func NewAPI(chain *ledger.Blockchain, miner string, mineTimeout time.Duration, logger zerolog.Logger) *API {
	return &API{chain: chain, miner: miner, mineTimeout: mineTimeout, logger: logger}
}

func (api *API) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, msg string) {
	api.writeJSONResponse(w, status, map[string]string{"error": msg})
}

func (api *API) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req AddTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.logger.Error().Err(err).Msg("Failed to decode transaction")
		api.writeError(w, http.StatusBadRequest, "Invalid transaction format")
		return
	}

	tx := models.Transaction{From: req.From, To: req.To, Amount: req.Amount}
	if err := api.chain.Submit(tx); err != nil {
		api.logger.Warn().Err(err).Msg("Transaction rejected")
		api.writeError(w, http.StatusBadRequest, "Invalid transaction -- "+err.Error())
		return
	}

	api.logger.Info().Str("from", tx.From).Str("to", tx.To).Uint64("amount", tx.Amount).Msg("Transaction added")
	api.writeJSONResponse(w, http.StatusCreated, map[string]string{"message": "Transaction added to the mempool"})
}

// GetBalance reports the balance as a decimal string; it can exceed the
// range of any fixed-width integer.
func (api *API) GetBalance(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	balance := api.chain.Balance(address).String()

	api.writeJSONResponse(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Balance for address %s is %s", address, balance),
		"address": address,
		"balance": balance,
	})
}

func (api *API) GetTransactions(w http.ResponseWriter, r *http.Request) {
	api.writeJSONResponse(w, http.StatusOK, api.chain.Pending())
}

func (api *API) GetBlocks(w http.ResponseWriter, r *http.Request) {
	api.writeJSONResponse(w, http.StatusOK, api.chain.Blocks())
}

func (api *API) GetBlock(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["index"]
	index, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "Invalid block index "+strconv.Quote(raw))
		return
	}

	block, err := api.chain.Block(index)
	if err != nil {
		api.logger.Debug().Err(err).Uint64("index", index).Msg("Block lookup failed")
		api.writeError(w, http.StatusNotFound, "Block not found")
		return
	}
	api.writeJSONResponse(w, http.StatusOK, block)
}

// MineBlock seals the mempool, plus the miner's reward, into a block.
func (api *API) MineBlock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), api.mineTimeout)
	defer cancel()

	block, err := api.chain.MineWithReward(ctx, api.miner)
	switch {
	case errors.Is(err, ledger.ErrEmptyMempool):
		api.writeError(w, http.StatusBadRequest, "No pending transactions to mine")
		return
	case errors.Is(err, ledger.ErrInvalidProof):
		api.logger.Error().Err(err).Msg("Mined block failed validation")
		api.writeError(w, http.StatusBadRequest, "Proof of work validation failed")
		return
	case errors.Is(err, ledger.ErrMiningCancelled):
		api.logger.Warn().Err(err).Dur("timeout", api.mineTimeout).Msg("Mining did not finish")
		api.writeError(w, http.StatusServiceUnavailable, "Mining did not finish in time")
		return
	case err != nil:
		api.logger.Error().Err(err).Msg("Failed to mine block")
		api.writeError(w, http.StatusInternalServerError, "Failed to mine block -- "+err.Error())
		return
	}

	if !api.chain.CheckProof(*block) {
		api.logger.Error().Uint64("index", block.Index).Msg("Mined block failed validation")
		api.writeError(w, http.StatusBadRequest, "Proof of work validation failed")
		return
	}

	api.writeJSONResponse(w, http.StatusOK, block)
}

func (api *API) GetChain(w http.ResponseWriter, r *http.Request) {
	tip := api.chain.Tip()
	resp := map[string]interface{}{
		"length":     api.chain.Len(),
		"difficulty": api.chain.Difficulty(),
		"tip":        tip.Hash,
		"pending":    len(api.chain.Pending()),
		"valid":      true,
	}
	if err := api.chain.Verify(); err != nil {
		resp["valid"] = false
		resp["error"] = err.Error()
	}
	api.writeJSONResponse(w, http.StatusOK, resp)
}

func (api *API) Health(w http.ResponseWriter, r *http.Request) {
	api.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"time": time.Now().UTC().Format(time.RFC3339Nano),
	})
}
