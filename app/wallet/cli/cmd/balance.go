package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// balanceCmd reads this wallet's balance from the attached node.
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check the wallet balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWallet()
		if err != nil {
			return err
		}

		st, err := attach()
		if err != nil {
			return err
		}
		defer st.Shutdown()

		balance := w.Balance(st)
		fmt.Printf("confirmed: %g\n", balance.Confirmed)
		fmt.Printf("pending:   %g\n", balance.Pending)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}
