package cmd

import (
	"fmt"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shmorph.dev/pkg/shmorph/internal/adapter"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

var failuresAllFlag bool
var failuresDiffFlag string

// failuresCmd represents the failures command.
var failuresCmd = newFailuresCmd()

func newFailuresCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "failures",
		Short: "View recorded failures from previous runs",
		Long: `List the failure records in the results directory, deduplicated by
signature. Recurring failures are shown once with an occurrence count.`,
		Args: cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFailures(cmd)
		},
	}

	cmd.Flags().BoolVarP(&failuresAllFlag, "all", "a", false, "include failures suppressed by noise rules")
	cmd.Flags().StringVarP(&failuresDiffFlag, "diff", "d", "", "print the full record for the given signature prefix")

	return cmd
}

func init() {
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command) error {
	store, err := adapter.NewLocalReportStore(m.Path(viper.GetString(outputConfigKey)))
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	failures, err := store.LoadFailures()
	if err != nil {
		return err
	}

	if failuresDiffFlag != "" {
		return printFailureDetail(cmd, failures, failuresDiffFlag)
	}

	grouped := groupBySignature(failures)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Signature", "Verdict", "Seed", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})

	shown := 0

	for _, group := range grouped {
		if group.first.Filtered && !failuresAllFlag {
			continue
		}

		table.Append([]string{
			group.first.Signature[:12],
			string(group.first.Verdict),
			group.first.Seed,
			fmt.Sprintf("%d", group.count),
		})

		shown++
	}

	if shown == 0 {
		cmd.Println("No failures recorded.")
		return nil
	}

	table.Render()

	return nil
}

type failureGroup struct {
	first m.FailureRecord
	count int
}

func groupBySignature(failures []m.FailureRecord) []failureGroup {
	index := make(map[string]int)

	var groups []failureGroup

	for _, failure := range failures {
		if i, ok := index[failure.Signature]; ok {
			groups[i].count++
			continue
		}

		index[failure.Signature] = len(groups)
		groups = append(groups, failureGroup{first: failure, count: 1})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}

		return groups[i].first.Seed < groups[j].first.Seed
	})

	return groups
}

func printFailureDetail(cmd *cobra.Command, failures []m.FailureRecord, prefix string) error {
	for _, failure := range failures {
		if len(failure.Signature) < len(prefix) || failure.Signature[:len(prefix)] != prefix {
			continue
		}

		cmd.Printf("Seed:      %s (round %d)\n", failure.Seed, failure.Round)
		cmd.Printf("Verdict:   %s\n", failure.Verdict)
		cmd.Printf("Features:  %v\n", failure.Features)
		cmd.Printf("Signature: %s\n", failure.Signature)

		if failure.Filtered {
			cmd.Printf("Filtered:  %s\n", failure.FilterHit)
		}

		cmd.Printf("\n--- original (%s, exit %d) ---\n%s\n", failure.Original.Interpreter, failure.Original.ExitCode, failure.Original.Stdout)
		cmd.Printf("--- rewritten (%s, exit %d) ---\n%s\n", failure.Rewritten.Interpreter, failure.Rewritten.ExitCode, failure.Rewritten.Stdout)

		if failure.Diff != "" {
			cmd.Printf("--- diff ---\n%s\n", failure.Diff)
		}

		cmd.Printf("--- rewritten script ---\n%s\n", failure.RewrittenScript)

		return nil
	}

	return fmt.Errorf("no failure with signature prefix %q", prefix)
}
