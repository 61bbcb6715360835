package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/annealing"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/calibration"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/dataset"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/config"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/pkg/logger"
)

type calibrateOptions struct {
	jobPath       string
	output        string
	seed          int64
	maxIterations int
}

func newCalibrateCmd() *cobra.Command {
	opts := &calibrateOptions{}
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Calibrate a scheme against a CSV dataset as described by a job file",
		Example: `  fuzzycal calibrate --job config/jobs/n2o.yaml
  fuzzycal calibrate --job config/jobs/n2o.yaml --seed 7 --output /tmp/n2o.xml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := config.LoadJob(opts.jobPath)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("output") {
				job.Output = opts.output
			}
			if flags.Changed("seed") {
				job.Annealing.RandomSeed = &opts.seed
			}
			if flags.Changed("max-iterations") {
				job.Annealing.MaxIterations = opts.maxIterations
			}
			_, err = runCalibrate(cmd.Context(), job, cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.jobPath, "job", "j", "", "calibration job file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the calibrated scheme here (overrides job)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "random seed (overrides job)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "iteration cap (overrides job)")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}

// runCalibrate executes one job and writes a summary to out. The calibrated
// scheme is written to job.Output when it is set.
func runCalibrate(ctx context.Context, job *config.Job, out io.Writer) (*annealing.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scheme, err := fuzzy.LoadScheme(job.Scheme)
	if err != nil {
		return nil, err
	}
	ds, err := dataset.LoadFile(job.Dataset, job.Target)
	if err != nil {
		return nil, err
	}
	cal, err := calibration.NewSchemeCalibration(scheme, ds.Samples, calibration.OptionsFromConfig(job.Calibration))
	if err != nil {
		return nil, err
	}
	optimizer, err := annealing.NewOptimizer(annealing.OptionsFromConfig(job.Annealing))
	if err != nil {
		return nil, err
	}

	logger.Info("calibrating",
		"job", job.Name,
		"scheme", scheme.Name(),
		"samples", ds.Len(),
		"factors", strings.Join(ds.Factors, ","),
		"target", job.Target)

	result, err := optimizer.Optimize(ctx, calibration.NewCollection(cal))
	if err != nil {
		return result, fmt.Errorf("calibration failed: %w", err)
	}

	if job.Output != "" {
		if err := cal.Scheme().WriteFile(job.Output); err != nil {
			return result, err
		}
	}
	printSummary(out, job, cal.Scheme(), result)
	return result, nil
}

func printSummary(out io.Writer, job *config.Job, scheme *fuzzy.Scheme, res *annealing.Result) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scheme:\t%s\n", scheme.Name())
	fmt.Fprintf(tw, "initial fitness:\t%.6g\n", res.InitialFitness)
	fmt.Fprintf(tw, "best fitness:\t%.6g\n", res.BestFitness)
	fmt.Fprintf(tw, "iterations:\t%d (accepted %d, rejected %d)\n", res.Iterations, res.Accepted, res.Rejected)
	fmt.Fprintf(tw, "final temperature:\t%.6g\n", res.FinalTemperature)
	fmt.Fprintf(tw, "stop reason:\t%s\n", res.StopReason)
	fmt.Fprintf(tw, "seed:\t%d\n", res.Seed)
	for i, c := range scheme.Consequents() {
		fmt.Fprintf(tw, "consequent[%d]:\t%.6g\n", i, c)
	}
	if job.Output != "" {
		fmt.Fprintf(tw, "written to:\t%s\n", job.Output)
	}
	_ = tw.Flush()
}
