package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func check(e error) {
	if e != nil {
		fmt.Printf("%v\n", e.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "keyrelay",
	Short:   "Keyrelay issues custodial wallet credentials and relays alias mail",
	Long:    `Keyrelay mints ed25519 wallet credentials bound to email addresses, discloses the private key to the owner over email, and relays mail sent to public-key-derived aliases.`,
	Version: "0.1.0",
	Run: func(cmd *cobra.Command, args []string) {
		// empty
	},
}

func main() {
	Execute()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
