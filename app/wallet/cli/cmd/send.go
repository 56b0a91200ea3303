package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	recipientKeyFile string
	sendAmount       float64
)

// sendCmd signs and gossips a transfer to the network.
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWallet()
		if err != nil {
			return err
		}

		recipient, err := os.ReadFile(recipientKeyFile)
		if err != nil {
			return fmt.Errorf("reading recipient key: %w", err)
		}

		st, err := attach()
		if err != nil {
			return err
		}
		defer st.Shutdown()

		tx, err := w.SubmitTransaction(st, string(recipient), sendAmount)
		if err != nil {
			return err
		}

		fmt.Printf("submitted transaction %s\n", tx.ID)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&recipientKeyFile, "to", "t", "", "File holding the recipient's public key.")
	sendCmd.Flags().Float64VarP(&sendAmount, "amount", "a", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.MarkFlagRequired("amount")
}
