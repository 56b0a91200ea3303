package cmd

import (
	"fmt"

	"github.com/kaoiks/crypto-coin/foundation/blockchain/identity"
	"github.com/kaoiks/crypto-coin/foundation/blockchain/keystore"
	"github.com/spf13/cobra"
)

var walletName string

// createCmd generates a fresh identity into an encrypted keystore.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new wallet keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		idn, err := identity.New(walletName)
		if err != nil {
			return err
		}

		if err := keystore.Save(keystorePath, password, []identity.Identity{idn}); err != nil {
			return err
		}

		fmt.Printf("created wallet %s\n", idn.ID)
		fmt.Printf("keystore written to %s\n", keystorePath)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(createCmd)
	createCmd.Flags().StringVarP(&walletName, "name", "m", "", "Optional name for the identity.")
}
