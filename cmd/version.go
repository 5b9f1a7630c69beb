package cmd

import (
	"fmt"

	"github.com/range-protocol/vault-sidecar/internal/version"
	"github.com/spf13/cobra"
)

var runVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version of the vault sidecar",
	Run: func(cmd *cobra.Command, args []string) {
		initCommandFlags(cmd)

		fmt.Printf("Version: %s\nCommit: %s\n", version.GetVersion(), version.GetCommit())
	},
}
