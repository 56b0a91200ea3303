package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusTxID string

// statusCmd reports whether a transaction is confirmed, pending or gone.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := attach()
		if err != nil {
			return err
		}
		defer st.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status := st.QueryTransactionStatus(ctx, statusTxID)
		fmt.Printf("transaction %s: %s\n", statusTxID, status)

		if conf, exists := st.QueryTransactionConfirmation(statusTxID); exists {
			fmt.Printf("block height: %d\n", conf.BlockHeight)
			fmt.Printf("confirmations: %d\n", conf.Confirmations)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusTxID, "tx", "x", "", "Transaction id to look up.")
	statusCmd.MarkFlagRequired("tx")
}
