package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekey/internal/cw"
)

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the Morse code table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cw.WriteTable(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(tableCmd)
}
