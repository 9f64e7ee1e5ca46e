// Package cli builds the cobra commands behind the combiner and selector
// executables.
//
// Every command resolves its options the same way: built-in defaults, then
// the YAML config file, then TELEMETRY_* environment variables (a .env file
// is loaded first), then explicitly set flags. Logs are JSON on stderr so
// standard output carries only command results.
package cli
