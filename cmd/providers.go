package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/termchat-cli/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported LLM providers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tID\tNAME\tSCHEMA\tDEFAULT MODEL\tENDPOINT")
		for _, d := range provider.Catalog() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				uint8(d.Kind), d.ID, d.Name, d.Schema, d.DefaultModel, d.URL("", d.DefaultModel))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
