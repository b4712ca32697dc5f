package cmd

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/spf13/cobra"

	"paychan/signing"
)

var keyOutPath string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a secp256k1 sender key",
	Run: func(cmd *cobra.Command, args []string) {
		generateKey(keyOutPath)
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVarP(&keyOutPath, "out", "o", "config/sender.key", "Output path for the hex-encoded private key")
}

func generateKey(path string) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("Failed to generate key: %v", err)
	}
	keyHex := hex.EncodeToString(priv.Serialize())

	addr, err := signing.AddressFromPrivateKey(priv.Serialize())
	if err != nil {
		log.Fatalf("Failed to derive address: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		log.Fatalf("Failed to create key directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(keyHex+"\n"), 0600); err != nil {
		log.Fatalf("Failed to write key file: %v", err)
	}

	fmt.Printf("Wrote private key to %s\n", path)
	fmt.Printf("Sender address: %s\n", addr)
}
