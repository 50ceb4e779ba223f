package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pyqportal/internal/auth"
)

var tokenCMD = &cobra.Command{
	Use:   "token",
	Short: "Generate a random admin token for the server's admin_tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tok, err := auth.GenerateToken()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCMD.AddCommand(tokenCMD)
}
