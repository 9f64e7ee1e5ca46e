// Package files provides file system operations and discovery utilities
// for the telemetry preparation tools.
//
// This package contains three components:
//
// Discovery: finds the session CSV files in a directory, sorted by name so
// that combined output is reproducible across platforms.
//
// OpenDecoded: opens a CSV file as UTF-8 text, dropping a byte order mark and
// converting Latin-1 or Windows-1252 exports.
//
// Manager: directory creation, temporary files, moves and deletes used for
// atomic output replacement.
//
// Example usage:
//
//	discovery := files.NewDiscovery("")
//	sessions, err := discovery.FindCSVFiles("data/sessions", "combined_data.csv")
//
//	r, err := files.OpenDecoded(sessions[0].Path, files.EncodingUTF8)
//	defer r.Close()
package files
