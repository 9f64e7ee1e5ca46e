package config

// Application constants
const (
	AppName     = "telemetryprep"
	ServiceName = "telemetryprep"

	// EnvPrefix namespaces environment variables, e.g. TELEMETRY_COMBINE_CHUNK_SIZE
	EnvPrefix = "TELEMETRY"

	DefaultEnvFile = ".env"
	DefaultLogFile = "logs/telemetryprep.log"

	DefaultInputDir     = "data/sessions"
	DefaultCombinedFile = "combined_data.csv"
	DefaultChunkSize    = 10000
	DefaultPreviewRows  = 5
	DefaultEncoding     = "utf-8"
)

var configFileLocations = []string{
	"telemetryprep.yaml",
	"configs/telemetryprep.yaml",
}
