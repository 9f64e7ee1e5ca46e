package dataprocessing

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"telemetryprep/internal/errors"
	"telemetryprep/internal/exporter"
	"telemetryprep/internal/files"
	"telemetryprep/internal/infrastructure"
	"telemetryprep/pkg/contracts/domain"
)

// maxChunkPrealloc caps the rows reserved up front for a chunk buffer
const maxChunkPrealloc = 1024

// CombineOptions configures a combine run
type CombineOptions struct {
	InputDir   string
	OutputFile string
	ChunkSize  int
	// AllowEmpty turns "no input files" into an empty output file instead of an error
	AllowEmpty bool
	// Atomic writes to a temporary file renamed over OutputFile on success
	Atomic   bool
	Encoding string
}

// Combiner concatenates session CSV files into one file with a single header
type Combiner struct {
	logger    *slog.Logger
	tracer    trace.Tracer
	metrics   *infrastructure.PrepMetrics
	discovery *files.Discovery
	manager   *files.Manager
	writer    *exporter.CSVWriter
}

// NewCombiner creates a combiner. A nil tracer or metrics disables them.
func NewCombiner(logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.PrepMetrics) *Combiner {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	if metrics == nil {
		metrics, _ = infrastructure.CreatePrepMetrics(nil)
	}
	return &Combiner{
		logger:    logger,
		tracer:    tracer,
		metrics:   metrics,
		discovery: files.NewDiscovery(""),
		manager:   files.NewManager(logger),
		writer:    exporter.NewCSVWriter(logger),
	}
}

// combineState tracks progress across files of one run
type combineState struct {
	target        string
	header        []string
	headerWritten bool
	report        *domain.CombineReport
}

// Combine reads every CSV file in opts.InputDir in file name order and writes
// their rows to opts.OutputFile in chunks of at most opts.ChunkSize rows. The
// first file's header is written once; the headers of later files are
// consumed and never written.
func (c *Combiner) Combine(ctx context.Context, opts CombineOptions) (*domain.CombineReport, error) {
	start := time.Now()

	ctx, span := c.tracer.Start(ctx, "combine.run", trace.WithAttributes(
		attribute.String("input_dir", opts.InputDir),
		attribute.String("output_file", opts.OutputFile),
		attribute.Int("chunk_size", opts.ChunkSize),
	))
	defer span.End()

	report, err := c.combine(ctx, opts)

	elapsed := time.Since(start)
	c.metrics.RunDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("command", "combine")))

	if err != nil {
		infrastructure.RecordError(span, err)
		return nil, err
	}

	report.Duration = elapsed
	span.SetAttributes(
		attribute.Int("files_processed", report.FilesProcessed),
		attribute.Int("rows_written", report.RowsWritten),
		attribute.Int("peak_chunk_rows", report.PeakChunkRows),
	)

	c.logger.InfoContext(ctx, "Combine completed",
		slog.String("output_file", report.OutputFile),
		slog.Int("files_processed", report.FilesProcessed),
		slog.Int("rows_written", report.RowsWritten),
		slog.Int("chunks_written", report.ChunksWritten),
		slog.Int("peak_chunk_rows", report.PeakChunkRows),
		slog.Duration("duration", elapsed))

	return report, nil
}

func (c *Combiner) combine(ctx context.Context, opts CombineOptions) (*domain.CombineReport, error) {
	if err := validateCombineOptions(opts); err != nil {
		return nil, err
	}

	inputs, err := c.discovery.FindCSVFiles(opts.InputDir, opts.OutputFile)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("input directory %s", opts.InputDir), err)
		}
		return nil, errors.NewStorageError("failed to list input directory", err).
			WithContext("input_dir", opts.InputDir)
	}

	report := &domain.CombineReport{
		OutputFile: opts.OutputFile,
		ChunkSize:  opts.ChunkSize,
	}

	if len(inputs) == 0 {
		if !opts.AllowEmpty {
			return nil, errors.NewNotFoundError(fmt.Sprintf("CSV files in %s", opts.InputDir), nil).
				WithContext("input_dir", opts.InputDir)
		}

		c.logger.WarnContext(ctx, "No CSV files found, writing empty output",
			slog.String("input_dir", opts.InputDir),
			slog.String("output_file", opts.OutputFile))
		if err := c.writer.WriteCSV(opts.OutputFile, exporter.WriteOptions{}); err != nil {
			return nil, errors.NewStorageError("failed to create output file", err).
				WithContext("output_file", opts.OutputFile)
		}
		return report, nil
	}

	c.logger.InfoContext(ctx, "Combining CSV files",
		slog.String("input_dir", opts.InputDir),
		slog.Int("file_count", len(inputs)),
		slog.Int64("total_bytes", files.TotalSize(inputs)),
		slog.Int("chunk_size", opts.ChunkSize))

	state := &combineState{target: opts.OutputFile, report: report}

	if opts.Atomic {
		tmp, err := c.manager.CreateTemp(opts.OutputFile)
		if err != nil {
			return nil, errors.NewStorageError("failed to create temporary output", err).
				WithContext("output_file", opts.OutputFile)
		}
		state.target = tmp
	}

	if err := c.combineFiles(ctx, inputs, opts, state); err != nil {
		if opts.Atomic {
			if rmErr := c.manager.DeleteFile(state.target); rmErr != nil {
				c.logger.WarnContext(ctx, "Failed to remove temporary output",
					slog.String("path", state.target),
					slog.String("error", rmErr.Error()))
			}
		}
		return nil, err
	}

	if opts.Atomic {
		if err := c.manager.MoveFile(state.target, opts.OutputFile); err != nil {
			_ = c.manager.DeleteFile(state.target)
			return nil, errors.NewStorageError("failed to replace output file", err).
				WithContext("output_file", opts.OutputFile)
		}
	}

	report.Header = state.header
	return report, nil
}

func (c *Combiner) combineFiles(ctx context.Context, inputs []files.FileInfo, opts CombineOptions, state *combineState) error {
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}

		fileCtx, span := c.tracer.Start(ctx, "combine.file", trace.WithAttributes(
			attribute.String("file", input.Name),
			attribute.Int64("bytes", input.Size),
		))
		fileReport, err := c.combineFile(fileCtx, input, opts, state)
		if err != nil {
			infrastructure.RecordError(span, err)
			span.End()
			return err
		}
		span.SetAttributes(attribute.Int("rows", fileReport.Rows))
		span.End()

		state.report.Files = append(state.report.Files, fileReport)
		state.report.FilesProcessed++
		c.metrics.FilesProcessed.Add(ctx, 1)

		c.logger.InfoContext(ctx, "File combined",
			slog.String("file", input.Name),
			slog.Int("rows", fileReport.Rows),
			slog.Int("chunks", fileReport.Chunks))
	}
	return nil
}

// combineFile streams one input file into the output
func (c *Combiner) combineFile(ctx context.Context, input files.FileInfo, opts CombineOptions, state *combineState) (domain.FileReport, error) {
	fileReport := domain.FileReport{Name: input.Name, Path: input.Path}

	if input.Size == 0 {
		return fileReport, errors.NewParsingError("empty file", nil).
			WithContext("file", input.Path)
	}

	r, err := files.OpenDecoded(input.Path, opts.Encoding)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return fileReport, errors.NewNotFoundError(fmt.Sprintf("file %s", input.Path), err)
		}
		return fileReport, errors.NewStorageError("failed to open input file", err).
			WithContext("file", input.Path)
	}
	defer r.Close()

	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return fileReport, errors.NewParsingError("empty file", nil).
			WithContext("file", input.Path)
	}
	if err != nil {
		return fileReport, parseError(input.Path, err)
	}

	if !state.headerWritten {
		state.header = header
	} else if !slices.Equal(header, state.header) {
		c.logger.WarnContext(ctx, "Header differs from first file; rows appended by position",
			slog.String("file", input.Name),
			slog.Any("header", header),
			slog.Any("expected", state.header))
	}

	chunk := make([][]string, 0, min(opts.ChunkSize, maxChunkPrealloc))
	for {
		if err := ctx.Err(); err != nil {
			return fileReport, err
		}

		chunk = chunk[:0]
		eof := false
		for len(chunk) < opts.ChunkSize {
			record, err := reader.Read()
			if err == io.EOF {
				eof = true
				break
			}
			if err != nil {
				return fileReport, parseError(input.Path, err)
			}
			chunk = append(chunk, record)
		}

		if len(chunk) > 0 || !state.headerWritten {
			if err := c.writeChunk(chunk, state); err != nil {
				return fileReport, err
			}
		}

		if len(chunk) > 0 {
			fileReport.Rows += len(chunk)
			fileReport.Chunks++
			state.report.RowsWritten += len(chunk)
			state.report.ChunksWritten++
			state.report.PeakChunkRows = max(state.report.PeakChunkRows, len(chunk))

			c.metrics.RowsWritten.Add(ctx, int64(len(chunk)))
			c.metrics.ChunksWritten.Add(ctx, 1)

			c.logger.DebugContext(ctx, "Chunk written",
				slog.String("file", input.Name),
				slog.Int("rows", len(chunk)))
		}

		if eof {
			return fileReport, nil
		}
	}
}

// writeChunk truncates the output and writes the header on the first call of
// a run, and appends without a header afterwards
func (c *Combiner) writeChunk(chunk [][]string, state *combineState) error {
	options := exporter.WriteOptions{Records: chunk}
	if state.headerWritten {
		options.Append = true
	} else {
		options.Headers = state.header
	}

	if err := c.writer.WriteCSV(state.target, options); err != nil {
		return errors.NewStorageError("failed to write output file", err).
			WithContext("output_file", state.target)
	}
	state.headerWritten = true
	return nil
}

func validateCombineOptions(opts CombineOptions) error {
	if opts.InputDir == "" {
		return errors.NewAppValidationError("input directory is required")
	}
	if opts.OutputFile == "" {
		return errors.NewAppValidationError("output file is required")
	}
	if opts.ChunkSize <= 0 {
		return errors.NewAppValidationError(fmt.Sprintf("chunk size must be positive, got %d", opts.ChunkSize))
	}
	if err := files.CheckEncoding(opts.Encoding); err != nil {
		return errors.NewAppValidationError(err.Error())
	}
	return nil
}

// parseError wraps a CSV read failure with the file and line it occurred on
func parseError(path string, err error) *errors.AppError {
	appErr := errors.NewParsingError("malformed CSV", err).WithContext("file", path)

	var pe *csv.ParseError
	if stderrors.As(err, &pe) {
		appErr.WithContext("line", pe.Line)
	}
	return appErr
}
