package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/keyrelay/go-keyrelay-server/util"
	"github.com/spf13/cobra"
)

var outputFile string

func init() {
	keysCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default is stdout)")
	rootCmd.AddCommand(keysCmd)
}

// keysCmd generates a standalone ed25519 keypair, useful for testing wallet
// import flows without going through the mint endpoint
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate an ed25519 wallet keypair",
	Long:  "Generate an ed25519 wallet keypair in the same base58 format the disclosure email uses",
	Run: func(cmd *cobra.Command, args []string) {
		pub, sec := util.GenerateWalletKeypair()
		keysJson := map[string]interface{}{
			"type":            "keyrelay_wallet_keys_ed25519",
			"publicKey":       util.EncodeKey(pub),
			"privateKey":      util.EncodeKey(sec),
			"privateKeyBytes": json.RawMessage(util.KeyByteArray(sec)),
			"created":         time.Now().UnixMilli(),
		}
		fileBytes, err := json.MarshalIndent(keysJson, "", "  ")
		if outputFile != "" {
			// save keys to disk in a file
			// fail if file already exists
			if _, err := os.Stat(outputFile); !errors.Is(err, os.ErrNotExist) {
				fmt.Printf("File already exists: %s\n", outputFile)
				os.Exit(1)
			}
			check(err)
			err = os.WriteFile(outputFile, fileBytes, 0644)
			check(err)
			fmt.Printf("Output file: %s\n", outputFile)
		} else {
			fmt.Printf("\n%s\n", string(fileBytes))
		}
	},
}
