package database

// Balance is the derived account state for one address.
type Balance struct {
	Confirmed   float64 `json:"confirmed"`
	Pending     float64 `json:"pending"`
	LastUpdated int64   `json:"last_updated"`
}

// Confirmation is the derived inclusion state for one transaction.
type Confirmation struct {
	BlockHeight   uint64 `json:"block_height"`
	Confirmations uint64 `json:"confirmations"`
	Status        string `json:"status"`
}
