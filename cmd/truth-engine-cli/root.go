package main

import (
	"github.com/spf13/cobra"
)

var (
	flagServer string
	flagToken  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "truth-engine-cli",
		Short:        "Client for the truth-engine verification server",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagServer, "server", "http://localhost:5050", "server address")
	root.PersistentFlags().StringVar(&flagToken, "token", "", "bearer token")
	root.AddCommand(newVerifyCmd())
	root.AddCommand(newVersionCmd())
	return root
}
