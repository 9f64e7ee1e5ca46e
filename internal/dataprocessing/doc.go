// Package dataprocessing turns per-session e-bike telemetry exports into an
// analysis-ready feature table.
//
// # Architecture
//
// The package has two stages, each run by its own command:
//
// 1. Combiner: concatenates every CSV file of a directory, in file name
// order, into one file with a single header. Files are streamed in chunks so
// memory stays bounded by the chunk size regardless of input size.
//
// 2. FeatureSelector: loads the combined file into a dataframe, keeps the
// eight feature columns, drops rows with missing values and orders the rest
// by timestamp.
//
// # Usage
//
// Combining session files:
//
//	combiner := dataprocessing.NewCombiner(logger, tracer, metrics)
//	report, err := combiner.Combine(ctx, dataprocessing.CombineOptions{
//	    InputDir:   "data/sessions",
//	    OutputFile: "combined_data.csv",
//	    ChunkSize:  10000,
//	})
//
// Selecting features:
//
//	selector := dataprocessing.NewFeatureSelector(logger, tracer, metrics, os.Stdout)
//	table, report, err := selector.Select(ctx, dataprocessing.SelectOptions{
//	    InputFile:   "combined_data.csv",
//	    PreviewRows: 5,
//	})
//
// # Errors
//
// All failures are *errors.AppError values. A required column absent from the
// input is reported with errors.IsColumnNotFound; malformed CSV, non-numeric
// measurements and a ctime column mixing numbers with text are PARSING errors.
package dataprocessing
