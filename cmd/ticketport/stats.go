package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ticketport/ticketport/internal/ui"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		stats, err := openStore().GetStatistics(rootCtx)
		if err != nil {
			FatalError("failed to read statistics: %v", err)
		}
		if jsonOutput {
			outputJSON(stats)
			return
		}
		fmt.Println(ui.RenderTitle("Records"))
		fmt.Println(ui.RenderSeparator())
		rows := []struct {
			label string
			n     int
		}{
			{"Users", stats.Users},
			{"  administrators", stats.Admins},
			{"  agents", stats.Agents},
			{"Tickets", stats.Tickets},
			{"Comments", stats.Comments},
			{"Field definitions", stats.FieldDefinitions},
			{"Form responses", stats.FormResponses},
		}
		for _, r := range rows {
			fmt.Printf("%s%d\n", ui.LabelStyle.Render(r.label), r.n)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
