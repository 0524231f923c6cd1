// Package cmd provides the root command and CLI setup for shmorph.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"shmorph.dev/pkg/shmorph/internal/adapter"
	"shmorph.dev/pkg/shmorph/internal/controller"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

var seedFS adapter.SeedFSAdapter
var shellRunner adapter.ShellRunnerAdapter
var procScanner adapter.ProcScannerAdapter
var ui controller.UI

// resultsDirFlag is a root-level flag shared by commands that read/write run artifacts.
var resultsDirFlag string

// seedsDirFlag points at the seed corpus.
var seedsDirFlag string

// verboseFlag switches logging to debug level.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	seedFS = adapter.NewLocalSeedFSAdapter()
	shellRunner = adapter.NewLocalShellRunnerAdapter()
	procScanner = adapter.NewLocalProcScannerAdapter()
}

const rootLongDescription = `Shmorph validates automated bash-to-POSIX script rewrites. It transforms
seed scripts feature by feature, runs the original under bash and the
rewritten form under a POSIX shell, and compares everything the two
processes observably do.

A divergence means the rewrite rules changed behavior; every such seed is
recorded with its outputs, diff and a dedup signature for triage.`

const runLongDescription = `Run differential testing over the seed corpus (default: ./seeds).

Each seed is rewritten through the enabled feature rewriters, both shapes
are executed under their interpreters, and the verdicts are appended to
the results directory.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shmorph",
		Short: "Differential tester for bash-to-POSIX rewrites",
		Long:  rootLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&resultsDirFlag, outputFlagName, "o",
			viper.GetString(outputConfigKey),
			"output directory for run reports and failure records",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputConfigKey)

	cmd.PersistentFlags().StringVar(&seedsDirFlag, seedsFlagName, viper.GetString(seedsConfigKey), "directory holding seed scripts")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(seedsFlagName), seedsConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", viper.GetBool(logVerboseKey), "enable debug logging")
	bindFlagToConfig(cmd.PersistentFlags().Lookup("verbose"), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// parseFeatures maps flag values onto the known feature set, rejecting
// anything the catalog does not implement.
func parseFeatures(names []string) ([]m.Feature, error) {
	known := make(map[m.Feature]bool, len(m.AllFeatures()))
	for _, feature := range m.AllFeatures() {
		known[feature] = true
	}

	features := make([]m.Feature, 0, len(names))

	for _, name := range names {
		feature := m.Feature(name)
		if !known[feature] {
			return nil, fmt.Errorf("unknown feature %q", name)
		}

		features = append(features, feature)
	}

	return features, nil
}
