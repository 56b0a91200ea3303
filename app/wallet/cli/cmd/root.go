// Package cmd contains the wallet app.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/keystore"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/peer"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/state"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/wallet"
	"github.com/spf13/cobra"
)

var (
	keystorePath string
	password     string
	nodeAddress  string
	difficulty   uint
)

// syncTimeout bounds how long a command waits for the node's chain.
const syncTimeout = 10 * time.Second

func init() {
	rootCmd.PersistentFlags().StringVarP(&keystorePath, "keystore", "k", "wallet.dat", "Path to the encrypted keystore.")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Keystore password.")
	rootCmd.PersistentFlags().StringVarP(&nodeAddress, "node", "n", "localhost:9001", "Address of the node to attach to.")
	rootCmd.PersistentFlags().UintVarP(&difficulty, "difficulty", "d", 4, "Difficulty the network runs with.")
}

var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Wallet client for the crypto-coin network",
}

// Execute runs the selected command and exits non zero on any error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// =============================================================================

// loadWallet opens the keystore and wraps its first identity.
func loadWallet() (*wallet.Wallet, error) {
	identities, err := keystore.Load(keystorePath, password)
	if err != nil {
		return nil, err
	}

	return wallet.New(identities[0]), nil
}

// attach connects to the node as a wallet client and waits for the chain to
// sync so balances and history read correctly.
func attach() (*state.State, error) {
	st := state.New(state.Config{
		NodeID:     uuid.NewString(),
		Advertise:  peer.WalletSentinel,
		Difficulty: difficulty,
		KnownPeers: []string{nodeAddress},
		WalletMode: true,
	})

	if err := st.Start(); err != nil {
		return nil, err
	}

	if len(st.RetrieveKnownPeers()) == 0 {
		st.Shutdown()
		return nil, fmt.Errorf("could not reach node at %s", nodeAddress)
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	if err := st.WaitForChainSync(ctx); err != nil {
		st.Shutdown()
		return nil, errors.New("timed out waiting for the node's chain")
	}

	return st, nil
}
