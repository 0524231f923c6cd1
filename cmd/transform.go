package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shmorph.dev/pkg/shmorph/internal/domain"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

var transformFeaturesFlag []string
var transformStdoutFlag bool

// transformCmd represents the transform command.
var transformCmd = newTransformCmd()

func newTransformCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform [scripts...]",
		Short: "Rewrite bash scripts to POSIX form without running them",
		Long: `Apply the feature rewriters to the given scripts (or the whole seed
corpus when none are given) and write each result next to its input as
<name>_posix.sh. Useful for inspecting what the rewrite rules produce.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, args)
		},
	}

	cmd.Flags().StringSliceVarP(&transformFeaturesFlag, featuresFlagName, "f", viper.GetStringSlice(featuresConfigKey), "bash features to rewrite (default: all)")
	bindFlagToConfig(cmd.Flags().Lookup(featuresFlagName), featuresConfigKey)

	cmd.Flags().BoolVar(&transformStdoutFlag, "stdout", false, "print rewritten scripts instead of writing files")

	return cmd
}

func init() {
	rootCmd.AddCommand(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	features, err := parseFeatures(viper.GetStringSlice(featuresConfigKey))
	if err != nil {
		return err
	}

	chain := domain.NewDefaultChain(features)

	scripts := make([]m.Path, 0, len(args))
	for _, arg := range args {
		scripts = append(scripts, m.Path(arg))
	}

	if len(scripts) == 0 {
		scripts, err = seedFS.ListSeeds(m.Path(viper.GetString(seedsConfigKey)))
		if err != nil {
			return err
		}
	}

	for _, script := range scripts {
		src, err := seedFS.ReadSeed(script)
		if err != nil {
			return fmt.Errorf("read %s: %w", script, err)
		}

		result, err := chain.Transform(src)
		if err != nil {
			return fmt.Errorf("transform %s: %w", script, err)
		}

		if transformStdoutFlag {
			cmd.Printf("# %s (features: %v, rounds: %d)\n%s", script, result.TransformedFeatures.Names(), result.Rounds, result.Script)
			continue
		}

		target, err := seedFS.WriteRewritten(script, "", result.Script)
		if err != nil {
			return fmt.Errorf("write rewritten %s: %w", script, err)
		}

		cmd.Printf("%s -> %s (features: %v)\n", script, target, result.TransformedFeatures.Names())
	}

	return nil
}
