package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"shmorph.dev/pkg/shmorph/internal/adapter"
	"shmorph.dev/pkg/shmorph/internal/controller"
	"shmorph.dev/pkg/shmorph/internal/domain"
	m "shmorph.dev/pkg/shmorph/internal/model"
)

var runParallelFlag int
var runRoundsFlag int
var runFeaturesFlag []string

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run differential testing over the seed corpus",
		Long:  runLongDescription,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDifferential(cmd)
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel seed workers")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().IntVarP(&runRoundsFlag, roundsFlagName, "r", viper.GetInt(roundsConfigKey), "number of testing rounds (fresh seeds are generated between rounds)")
	bindFlagToConfig(cmd.Flags().Lookup(roundsFlagName), roundsConfigKey)

	cmd.Flags().StringSliceVarP(&runFeaturesFlag, featuresFlagName, "f", viper.GetStringSlice(featuresConfigKey), "bash features to rewrite (default: all)")
	bindFlagToConfig(cmd.Flags().Lookup(featuresFlagName), featuresConfigKey)
}

func runDifferential(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	features, err := parseFeatures(viper.GetStringSlice(featuresConfigKey))
	if err != nil {
		return err
	}

	store, err := adapter.NewLocalReportStore(m.Path(viper.GetString(outputConfigKey)))
	if err != nil {
		return err
	}

	defer func() { _ = store.Close() }()

	rules, err := adapter.LoadNoiseRules(m.Path(viper.GetString(noiseRulesConfigKey)))
	if err != nil {
		return err
	}

	filter, err := domain.NewNoiseFilter(rules)
	if err != nil {
		return err
	}

	var seedgen adapter.SeedGenAdapter
	if command := viper.GetString(seedgenCmdConfigKey); command != "" {
		seedgen = adapter.NewLocalSeedGenAdapter(command)
	}

	runID := uuid.NewString()
	timeout := configuredDuration(timeoutConfigKey)

	monitor := domain.NewMonitor(
		procScanner,
		runID,
		configuredDuration(monitorIntervalKey),
		domain.GraceFor(configuredDuration(monitorGraceKey), timeout),
	)

	// The monitor outlives the pipeline by one final sweep, so it gets its
	// own cancellation and a done channel to wait on.
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitorDone := make(chan struct{})

	go func() {
		defer close(monitorDone)
		monitor.Run(monitorCtx)
	}()

	pipeline := domain.NewPipeline(
		seedFS,
		shellRunner,
		store,
		seedgen,
		ui,
		domain.NewDefaultChain(features),
		filter,
	)

	if err := ui.Start(ctx, controller.WithRunMode()); err != nil {
		return err
	}

	summary, runErr := pipeline.Run(ctx, domain.RunArgs{
		RunID:         runID,
		Seeds:         m.Path(viper.GetString(seedsConfigKey)),
		BashShell:     viper.GetString(bashShellConfigKey),
		PosixShell:    viper.GetString(posixShellConfigKey),
		Features:      features,
		Workers:       viper.GetInt(runParallelConfigKey),
		Rounds:        viper.GetInt(roundsConfigKey),
		SeedsPerRound: viper.GetInt(seedgenCountKey),
		Timeout:       timeout,
		MaxOutput:     viper.GetInt(maxOutputConfigKey),
		ExcerptLimit:  viper.GetInt(excerptConfigKey),
	})

	stopMonitor()
	<-monitorDone

	// The final sweep may have reaped stragglers, so the count lands in the
	// summary only now.
	summary.ReapedProcs = monitor.Reaped()

	if err := store.WriteSummary(summary); err != nil && runErr == nil {
		runErr = err
	}

	displayCtx := context.WithoutCancel(ctx)

	if err := ui.DisplayRunSummary(displayCtx, summary); err != nil {
		ui.Close(displayCtx)
		return err
	}

	ui.Wait(displayCtx)
	ui.Close(displayCtx)

	return runErr
}
