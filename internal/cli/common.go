package cli

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"telemetryprep/internal/config"
	"telemetryprep/internal/errors"
	"telemetryprep/internal/infrastructure"
	"telemetryprep/internal/validation"
	"telemetryprep/pkg/contracts"
)

const shutdownTimeout = 5 * time.Second

// runtime bundles what a command needs for one run
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	otel      *infrastructure.OTelProviders
	metrics   *infrastructure.PrepMetrics
	validator *validation.FileValidator
}

// addPersistentFlags registers the flags shared by every command
func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "YAML configuration file (default: telemetryprep.yaml if present)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().String("metrics-file", "", "write run metrics in Prometheus text format to this file")
	cmd.SilenceUsage = true
	cmd.Version = contracts.GetFullVersionString()
}

// setup loads configuration, lets apply overlay command flags, and starts
// logging and telemetry for the run
func setup(cmd *cobra.Command, component string, apply func(*config.Config)) (context.Context, *runtime, error) {
	configFile, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if cmd.Flags().Changed("metrics-file") {
		cfg.Telemetry.MetricsFile, _ = cmd.Flags().GetString("metrics-file")
	}
	apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	base, err := infrastructure.InitializeLogger(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, errors.NewConfigError("failed to initialize logger", err)
	}
	logger := infrastructure.WithComponent(base, component)

	providers, err := infrastructure.InitializeOTel(cfg.Telemetry, cmd.ErrOrStderr(), logger)
	if err != nil {
		return nil, nil, errors.NewConfigError("failed to initialize telemetry", err)
	}

	metrics, err := infrastructure.CreatePrepMetrics(providers.Meter)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, nil, errors.NewConfigError("failed to create metrics", err)
	}

	ctx := infrastructure.EnsureTraceID(cmd.Context())
	logger.InfoContext(ctx, "Starting run",
		slog.String("version", contracts.Version),
		slog.String("config_file", configFile))

	return ctx, &runtime{
		cfg:       cfg,
		logger:    logger,
		otel:      providers,
		metrics:   metrics,
		validator: validation.NewFileValidator(logger),
	}, nil
}

// finish logs the run outcome, flushes telemetry and closes the log file.
// The run error, if any, is returned unchanged.
func (r *runtime) finish(ctx context.Context, runErr error) error {
	if runErr != nil {
		var appErr *errors.AppError
		if stderrors.As(runErr, &appErr) {
			r.logger.ErrorContext(ctx, "Run failed", appErr.LogAttrs()...)
		} else {
			r.logger.ErrorContext(ctx, "Run failed", slog.String("error", runErr.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := r.otel.Shutdown(shutdownCtx); err != nil {
		r.logger.WarnContext(ctx, "Telemetry shutdown failed", slog.String("error", err.Error()))
	}
	if err := infrastructure.CloseLogFile(); err != nil {
		r.logger.WarnContext(ctx, "Failed to close log file", slog.String("error", err.Error()))
	}

	return runErr
}

// flagString copies a changed string flag into dst
func flagString(cmd *cobra.Command, name string, dst *string) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetString(name)
	}
}

// flagInt copies a changed int flag into dst
func flagInt(cmd *cobra.Command, name string, dst *int) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetInt(name)
	}
}

// flagBool copies a changed bool flag into dst
func flagBool(cmd *cobra.Command, name string, dst *bool) {
	if cmd.Flags().Changed(name) {
		*dst, _ = cmd.Flags().GetBool(name)
	}
}
