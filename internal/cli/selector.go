package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"telemetryprep/internal/config"
	"telemetryprep/internal/dataprocessing"
)

// NewSelectorCmd creates the selector command, which reduces the combined
// file to the battery feature columns and previews the result.
func NewSelectorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selector",
		Short: "Select battery feature columns from the combined file",
		Long: `Loads the combined CSV file, keeps the columns ctime, BatSOH, BatTemp,
BatCycleCount, BatVolt, ThrottlePercent, BatCurrent and MotorTemp, drops rows
with a missing value, sorts by ctime and prints the first rows.`,
		Example: `  # Preview the first 5 feature rows of combined_data.csv
  selector

  # Save the features with readable timestamps
  selector --input out/all.csv --output out/features.csv --convert-timestamps`,
		Args: cobra.NoArgs,
		RunE: runSelector,
	}

	cmd.Flags().String("input", config.DefaultCombinedFile, "combined CSV file to read")
	cmd.Flags().String("output", "", "write the feature table to this CSV file")
	cmd.Flags().Int("preview-rows", config.DefaultPreviewRows, "number of rows to print (0 disables the preview)")
	cmd.Flags().Bool("convert-timestamps", false, "render ctime as an RFC 3339 UTC datetime")
	cmd.Flags().String("encoding", config.DefaultEncoding, "input text encoding: utf-8, latin1 or windows-1252")
	addPersistentFlags(cmd)

	return cmd
}

func runSelector(cmd *cobra.Command, _ []string) error {
	ctx, rt, err := setup(cmd, "selector", func(cfg *config.Config) {
		flagString(cmd, "input", &cfg.Select.InputFile)
		flagString(cmd, "output", &cfg.Select.OutputFile)
		flagInt(cmd, "preview-rows", &cfg.Select.PreviewRows)
		flagBool(cmd, "convert-timestamps", &cfg.Select.ConvertTimestamps)
		flagString(cmd, "encoding", &cfg.Select.Encoding)
	})
	if err != nil {
		return err
	}

	opts := rt.cfg.Select

	if err := rt.validator.ValidateCSVFile(opts.InputFile); err != nil {
		return rt.finish(ctx, err)
	}
	if opts.OutputFile != "" {
		if err := rt.validator.ValidateOutputFile(opts.OutputFile); err != nil {
			return rt.finish(ctx, err)
		}
	}

	selector := dataprocessing.NewFeatureSelector(rt.logger, rt.otel.Tracer, rt.metrics, cmd.OutOrStdout())
	_, report, err := selector.Select(ctx, dataprocessing.SelectOptions{
		InputFile:         opts.InputFile,
		OutputFile:        opts.OutputFile,
		PreviewRows:       opts.PreviewRows,
		ConvertTimestamps: opts.ConvertTimestamps,
		Encoding:          opts.Encoding,
	})
	if err != nil {
		return rt.finish(ctx, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Kept %d of %d rows (%d dropped for missing values)\n",
		report.RowsKept, report.RowsRead, report.RowsDropped)
	if report.OutputFile != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Features written to %s\n", report.OutputFile)
	}

	return rt.finish(ctx, nil)
}
