package main

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/dataset"
	"github.com/GoSim-25-26J-441/fuzzy-calibration/internal/fuzzy"
)

type evaluateOptions struct {
	schemePath  string
	datasetPath string
	target      string
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Print scheme responses for every row of a CSV dataset",
		Long: `evaluate reads factor values from a CSV dataset and writes one CSV row per
input with the scheme response. With --target the observed value and the
residual (observed - response) are added.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&opts.schemePath, "scheme", "s", "", "scheme document")
	cmd.Flags().StringVarP(&opts.datasetPath, "dataset", "d", "", "CSV dataset")
	cmd.Flags().StringVarP(&opts.target, "target", "t", "", "observed value column")
	_ = cmd.MarkFlagRequired("scheme")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func runEvaluate(opts *evaluateOptions, out io.Writer) error {
	scheme, err := fuzzy.LoadScheme(opts.schemePath)
	if err != nil {
		return err
	}
	ds, err := dataset.LoadFile(opts.datasetPath, opts.target)
	if err != nil {
		return err
	}

	w := csv.NewWriter(out)
	header := []string{"row", "response"}
	if opts.target != "" {
		header = append(header, "observed", "residual")
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for i, s := range ds.Samples {
		y, err := scheme.ComputeResponse(s.Factors)
		if err != nil {
			return err
		}
		record := []string{ds.Label(i), formatFloat(y)}
		if opts.target != "" {
			record = append(record, formatFloat(s.Observed), formatFloat(s.Observed-y))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
