// Command pipeline drives the school-risk analytical pipeline of §4: ten
// dependent stages over a relational store, run one academic-year batch at
// a time.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"schoolrisk/pkg/core/config"
	"schoolrisk/pkg/core/engine"
	"schoolrisk/pkg/core/logging"
	"schoolrisk/pkg/core/pipeline"
	"schoolrisk/pkg/core/pipelineerr"
	"schoolrisk/pkg/core/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env file not found, assuming environment variables are set")
	}

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(pipelineerr.GetExitCode(err))
	}
}

func newRootCommand() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "school-risk analytical pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(newRunCommand(&cfgFile), newBootstrapCommand(&cfgFile))
	for _, stage := range buildGraph(logging.New()).Order() {
		root.AddCommand(newStageCommand(&cfgFile, stage.Name()))
	}
	return root
}

func newBootstrapCommand(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "create tables and indexes (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			_, st, _, err := setup(ctx, *cfgFile)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.Bootstrap(ctx)
		},
	}
}

func newRunCommand(cfgFile *string) *cobra.Command {
	var from, to, year string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the pipeline for one academic year",
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == "" {
				return fmt.Errorf("--year is required (e.g. 2023-24)")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, st, log, err := setup(ctx, *cfgFile)
			if err != nil {
				return err
			}
			defer st.Close()

			graph := buildGraph(log)
			orch := pipeline.NewOrchestrator(graph, st, cfg, log)
			return orch.Run(ctx, from, to, year)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first stage to run (default: earliest)")
	cmd.Flags().StringVar(&to, "to", "", "last stage to run (default: latest)")
	cmd.Flags().StringVar(&year, "year", "", "academic year to run, e.g. 2023-24")
	return cmd
}

// newStageCommand builds the ad-hoc re-run subcommand for a single stage,
// one per engine.Stage.Name(): "pipeline <stage> --year <year>" is
// equivalent to "pipeline run --from <stage> --to <stage> --year <year>".
func newStageCommand(cfgFile *string, stageName string) *cobra.Command {
	var year string

	cmd := &cobra.Command{
		Use:   stageName,
		Short: fmt.Sprintf("run only the %s stage for one academic year", stageName),
		RunE: func(cmd *cobra.Command, args []string) error {
			if year == "" {
				return fmt.Errorf("--year is required (e.g. 2023-24)")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, st, log, err := setup(ctx, *cfgFile)
			if err != nil {
				return err
			}
			defer st.Close()

			graph := buildGraph(log)
			orch := pipeline.NewOrchestrator(graph, st, cfg, log)
			return orch.Run(ctx, stageName, stageName, year)
		},
	}

	cmd.Flags().StringVar(&year, "year", "", "academic year to run, e.g. 2023-24")
	return cmd
}

func setup(ctx context.Context, cfgFile string) (*config.Config, *store.Store, logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, err
	}
	log := logging.New()

	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, st, log, nil
}

func buildGraph(log logging.Logger) *pipeline.Graph {
	return pipeline.NewGraph(
		engine.NewInfraGapEngine(log),
		engine.NewTeacherAdequacyEngine(log),
		engine.NewComplianceRiskEngine(log),
		engine.NewPrioritisationEngine(log),
		engine.NewRiskTrendEngine(log),
		engine.NewDistrictComplianceEngine(log),
		engine.NewProposalValidationEngine(log),
		engine.NewWMAForecastEngine(log),
		engine.NewMLForecastEngine(log, 42),
		engine.NewBudgetAllocationEngine(log),
	)
}
