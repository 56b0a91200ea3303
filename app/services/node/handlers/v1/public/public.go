// Package public maintains the group of handlers for public node access.
package public

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
	"github.com/kaoiks/crypto-coin/foundation/events"
	"go.uber.org/zap"
)

// Handlers manages the set of public endpoints.
type Handlers struct {
	Log      *zap.SugaredLogger
	State    *state.State
	Evts     *events.Events
	WS       websocket.Upgrader
	Validate *validator.Validate
}

// Info returns a summary of the node.
func (h Handlers) Info(w http.ResponseWriter, r *http.Request) {
	info := chainInfo{
		Height:      len(h.State.RetrieveChain()),
		LatestHash:  h.State.RetrieveLatestBlock().Hash,
		Uncommitted: h.State.QueryMempoolLength(),
		Peers:       len(h.State.RetrieveKnownPeers()),
	}

	respond(w, info, http.StatusOK)
}

// Genesis returns the genesis block.
func (h Handlers) Genesis(w http.ResponseWriter, r *http.Request) {
	respond(w, h.State.RetrieveGenesis(), http.StatusOK)
}

// Chain returns the full block sequence.
func (h Handlers) Chain(w http.ResponseWriter, r *http.Request) {
	respond(w, h.State.RetrieveChain(), http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(w http.ResponseWriter, r *http.Request) {
	respond(w, h.State.RetrieveMempool(), http.StatusOK)
}

// Peers returns the connected full nodes.
func (h Handlers) Peers(w http.ResponseWriter, r *http.Request) {
	respond(w, h.State.RetrieveKnownPeers(), http.StatusOK)
}

// Accounts returns the current balances for all addresses on the chain.
func (h Handlers) Accounts(w http.ResponseWriter, r *http.Request) {
	balances := h.State.QueryBalances()

	rows := make([]balance, 0, len(balances))
	for account, bal := range balances {
		rows = append(rows, balance{
			Account:     account,
			Confirmed:   bal.Confirmed,
			Pending:     bal.Pending,
			LastUpdated: bal.LastUpdated,
		})
	}

	respond(w, rows, http.StatusOK)
}

// SubmitTransaction adds a signed user transaction to the mempool and
// gossips it to the network.
func (h Handlers) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var app submitTx
	if err := json.NewDecoder(r.Body).Decode(&app); err != nil {
		respondError(w, "unable to decode payload", http.StatusBadRequest)
		return
	}

	if err := h.Validate.Struct(app); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := app.toTx()
	if err := h.State.SubmitTransaction(tx); err != nil {
		h.Log.Infow("submit rejected", "tx", tx.ID, "ERROR", err)
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := struct {
		Status string `json:"status"`
		ID     string `json:"id"`
	}{
		Status: "transaction added to mempool",
		ID:     tx.ID,
	}

	respond(w, resp, http.StatusOK)
}

// Events handles a web socket to provide node events to a client.
func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer c.Close()

	clientID := uuid.NewString()

	ch := h.Evts.Acquire(clientID)
	defer h.Evts.Release(clientID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, wd := <-ch:
			if !wd {
				return
			}

			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// =============================================================================

// respond writes the JSON encoding of the data to the client.
func respond(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error payload to the client.
func respondError(w http.ResponseWriter, msg string, statusCode int) {
	respond(w, struct {
		Error string `json:"error"`
	}{Error: msg}, statusCode)
}
