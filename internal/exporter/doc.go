// Package exporter writes the CSV outputs and console previews of the
// telemetry preparation tools.
//
// CSVWriter: raw record writing with truncate or append semantics, used by
// the combiner to emit the header once and append every later chunk.
//
// FeatureWriter: encodes cleaned feature records with a header row.
//
// RenderPreview: prints the first rows of a table as a bordered text table.
//
// Example usage:
//
//	writer := exporter.NewCSVWriter(logger)
//	err := writer.WriteCSV("combined_data.csv", exporter.WriteOptions{
//		Headers: header,
//		Records: chunk,
//	})
//	err = writer.WriteCSV("combined_data.csv", exporter.WriteOptions{
//		Records: nextChunk,
//		Append:  true,
//	})
package exporter
