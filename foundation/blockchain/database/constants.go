package database

import "math"

// Monetary and consensus constants for the chain. These are part of the wire
// contract between nodes and must not drift between releases.
const (
	InitialReward           float64 = 50
	HalvingInterval         uint64  = 210_000
	InitialDifficulty       uint    = 4
	TargetBlockTimeSeconds          = 600
	MaxTransactionsPerBlock         = 2000
	RequiredConfirmations   uint64  = 6
	MinTransaction          float64 = 1e-8
	MaxSupply               float64 = 21_000_000
)

// BlockReward returns the coinbase amount for a block at the specified index
// following the halving schedule.
func BlockReward(index uint64) float64 {
	halvings := index / HalvingInterval
	return InitialReward / math.Pow(2, float64(halvings))
}
