package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"telemetryprep/internal/config"
	"telemetryprep/internal/dataprocessing"
)

// NewCombinerCmd creates the combiner command, which concatenates the session
// CSV files of a directory into one file with a single header.
func NewCombinerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "combiner",
		Short: "Concatenate session CSV files into one combined file",
		Long: `Reads every *.csv file in the input directory in file name order and
writes their rows to the output file in bounded chunks. The header of the
first file is written once; the headers of the other files are skipped.`,
		Example: `  # Combine data/sessions into combined_data.csv
  combiner

  # Smaller chunks, replace the output only when every file was read
  combiner --input-dir exports --output out/all.csv --chunk-size 500 --atomic`,
		Args: cobra.NoArgs,
		RunE: runCombiner,
	}

	cmd.Flags().String("input-dir", config.DefaultInputDir, "directory holding the session CSV files")
	cmd.Flags().String("output", config.DefaultCombinedFile, "combined CSV file to write")
	cmd.Flags().Int("chunk-size", config.DefaultChunkSize, "maximum rows held in memory per write")
	cmd.Flags().Bool("allow-empty", false, "write an empty output instead of failing when no CSV files are found")
	cmd.Flags().Bool("atomic", false, "write to a temporary file and rename it over the output on success")
	cmd.Flags().String("encoding", config.DefaultEncoding, "input text encoding: utf-8, latin1 or windows-1252")
	addPersistentFlags(cmd)

	return cmd
}

func runCombiner(cmd *cobra.Command, _ []string) error {
	ctx, rt, err := setup(cmd, "combiner", func(cfg *config.Config) {
		flagString(cmd, "input-dir", &cfg.Combine.InputDir)
		flagString(cmd, "output", &cfg.Combine.OutputFile)
		flagInt(cmd, "chunk-size", &cfg.Combine.ChunkSize)
		flagBool(cmd, "allow-empty", &cfg.Combine.AllowEmpty)
		flagBool(cmd, "atomic", &cfg.Combine.Atomic)
		flagString(cmd, "encoding", &cfg.Combine.Encoding)
	})
	if err != nil {
		return err
	}

	opts := rt.cfg.Combine

	if err := rt.validator.ValidateInputDirectory(opts.InputDir, "*.csv"); err != nil {
		return rt.finish(ctx, err)
	}
	if err := rt.validator.ValidateOutputFile(opts.OutputFile); err != nil {
		return rt.finish(ctx, err)
	}

	combiner := dataprocessing.NewCombiner(rt.logger, rt.otel.Tracer, rt.metrics)
	report, err := combiner.Combine(ctx, dataprocessing.CombineOptions{
		InputDir:   opts.InputDir,
		OutputFile: opts.OutputFile,
		ChunkSize:  opts.ChunkSize,
		AllowEmpty: opts.AllowEmpty,
		Atomic:     opts.Atomic,
		Encoding:   opts.Encoding,
	})
	if err != nil {
		return rt.finish(ctx, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Combined %d files (%d rows, %d chunks) into %s\n",
		report.FilesProcessed, report.RowsWritten, report.ChunksWritten, report.OutputFile)

	return rt.finish(ctx, nil)
}
