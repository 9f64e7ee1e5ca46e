// Package config provides configuration loading and validation for the
// telemetry preparation tools.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command-line flags (applied by the commands after Load)
//	2. Environment variables, including a .env file in the working directory
//	3. A YAML configuration file (telemetryprep.yaml or configs/telemetryprep.yaml)
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern TELEMETRY_<SECTION>_<FIELD>:
//
//	TELEMETRY_COMBINE_INPUT_DIR=data/sessions
//	TELEMETRY_COMBINE_CHUNK_SIZE=10000
//	TELEMETRY_SELECT_INPUT_FILE=combined_data.csv
//	TELEMETRY_LOGGING_LEVEL=debug
//	TELEMETRY_TELEMETRY_METRICS_FILE=/var/lib/node_exporter/telemetryprep.prom
//
// # Example File
//
//	combine:
//	  input_dir: data/sessions
//	  output_file: combined_data.csv
//	  chunk_size: 10000
//	select:
//	  input_file: combined_data.csv
//	  preview_rows: 5
//	  convert_timestamps: true
package config
