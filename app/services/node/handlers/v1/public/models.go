package public

import (
	"github.com/kaoiks/crypto-coin/foundation/blockchain/database"
)

// submitTx is the payload for submitting a signed transaction over HTTP.
type submitTx struct {
	ID         string  `json:"id" validate:"required,len=64,hexadecimal"`
	Sender     string  `json:"sender" validate:"required"`
	Recipient  string  `json:"recipient" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
	Timestamp  int64   `json:"timestamp" validate:"required,gt=0"`
	Signature  string  `json:"signature" validate:"required,hexadecimal"`
	IsCoinbase bool    `json:"is_coinbase"`
}

// toTx converts the payload into the core transaction type.
func (app submitTx) toTx() database.Tx {
	return database.Tx{
		ID:         app.ID,
		Sender:     app.Sender,
		Recipient:  app.Recipient,
		Amount:     app.Amount,
		Timestamp:  app.Timestamp,
		Signature:  app.Signature,
		IsCoinbase: app.IsCoinbase,
	}
}

// balance is one row of the accounts view.
type balance struct {
	Account     string  `json:"account"`
	Confirmed   float64 `json:"confirmed"`
	Pending     float64 `json:"pending"`
	LastUpdated int64   `json:"last_updated"`
}

// chainInfo summarizes the node for the info route.
type chainInfo struct {
	Height      int    `json:"height"`
	LatestHash  string `json:"latest_hash"`
	Uncommitted int    `json:"uncommitted"`
	Peers       int    `json:"peers"`
}
