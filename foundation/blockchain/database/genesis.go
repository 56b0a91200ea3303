package database

import "strings"

// GenesisTimestamp is the fixed timestamp every chain starts from.
const GenesisTimestamp int64 = 1_700_000_000_000

// GenesisMiner is the sentinel miner value on the genesis block.
const GenesisMiner = "GENESIS"

// Genesis constructs the deterministic block at index 0 for the specified
// difficulty. Every node derives the identical block, which is what lets two
// cold nodes agree a received chain shares their history.
func Genesis(difficulty uint) Block {
	b := Block{
		Index:        0,
		PreviousHash: strings.Repeat("0", int(difficulty)) + "1" + strings.Repeat("0", 63-int(difficulty)),
		Timestamp:    GenesisTimestamp,
		Transactions: []Tx{},
		Nonce:        0,
		Miner:        GenesisMiner,
		Reward:       0,
	}
	b.Hash = b.ComputeHash()

	return b
}
