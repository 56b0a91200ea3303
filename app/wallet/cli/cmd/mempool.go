package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// mempoolCmd shows the pending transactions the node knows about.
var mempoolCmd = &cobra.Command{
	Use:   "mempool",
	Short: "View the node's mempool",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := attach()
		if err != nil {
			return err
		}
		defer st.Shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		trans := st.QueryPeerMempools(ctx)
		if len(trans) == 0 {
			fmt.Println("mempool is empty")
			return nil
		}

		for _, tx := range trans {
			fmt.Printf("%s  amount %g  timestamp %d\n", tx.ID, tx.Amount, tx.Timestamp)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(mempoolCmd)
}
