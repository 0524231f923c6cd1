package cmd

import (
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"shmorph.dev/pkg/shmorph/internal/domain/rewriters"
)

// rewritersCmd represents the rewriters command.
var rewritersCmd = newRewritersCmd()

func newRewritersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rewriters",
		Short: "List the available feature rewriters",
		Long:  "Lists every rewriter in the catalog with the bash features it handles and the syntax nodes it inspects, in application order.",
		Run: func(cmd *cobra.Command, _ []string) {
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Rewriter", "Features", "Node Kinds"})
			table.SetBorder(false)
			table.SetCenterSeparator("")
			table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT})

			for _, rw := range rewriters.Catalog() {
				features := make([]string, 0, len(rw.Features()))
				for _, feature := range rw.Features() {
					features = append(features, string(feature))
				}

				table.Append([]string{
					rw.Name(),
					strings.Join(features, ", "),
					strings.Join(rw.NodeKinds(), ", "),
				})
			}

			table.Render()
		},
	}
}

func init() {
	rootCmd.AddCommand(rewritersCmd)
}
