package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// keysCmd shows the identities held in the keystore.
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Show the keys in the keystore",
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := loadWallet()
		if err != nil {
			return err
		}

		idn := w.Identity()
		fmt.Printf("id:         %s\n", idn.ID)
		if idn.Name != "" {
			fmt.Printf("name:       %s\n", idn.Name)
		}
		fmt.Printf("created at: %d\n", idn.CreatedAt)
		fmt.Printf("public key:\n%s\n", idn.PublicKey)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
}
