package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/ui"
)

var sequenceCmd = &cobra.Command{
	Use:   "sequence",
	Short: "Manage the ticket number sequence",
}

var sequenceResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Move the ticket number sequence past the highest stored number",
	Long: `Imported tickets keep their source numbers, which the local sequence
does not see. Run this after an import so new tickets are numbered after
the highest imported one.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		reset, err := newImporter(openStore()).ResetTicketSequence(rootCtx)
		if err != nil {
			FatalError("sequence reset failed: %v", err)
		}
		if jsonOutput {
			outputJSON(reset)
			return
		}
		fmt.Println(ui.RenderSequenceReset(reset))
	},
}

func init() {
	sequenceCmd.AddCommand(sequenceResetCmd)
	rootCmd.AddCommand(sequenceCmd)
}
