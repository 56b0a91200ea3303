package main

import "github.com/kaoiks/crypto-coin/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
