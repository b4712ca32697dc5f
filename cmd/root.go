package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"paychan/logx"
)

var rootCmd = &cobra.Command{
	Use:   "paychan",
	Short: "Payment channel engine CLI",
	Long:  "Command line interface for running and managing a client-side payment channel engine.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}
