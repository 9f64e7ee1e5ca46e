package dataprocessing

import (
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
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

// MissingValueTokens are the cell values treated as missing. Matching ignores
// case and surrounding whitespace.
var MissingValueTokens = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

var missingValueSet = func() map[string]bool {
	set := make(map[string]bool, len(MissingValueTokens))
	for _, token := range MissingValueTokens {
		set[strings.ToLower(token)] = true
	}
	return set
}()

// isMissingValue reports whether a cell holds one of MissingValueTokens
func isMissingValue(raw string) bool {
	return missingValueSet[strings.ToLower(strings.TrimSpace(raw))]
}

// SelectOptions configures a feature selection run
type SelectOptions struct {
	InputFile string
	// OutputFile receives the feature records as CSV when set
	OutputFile string
	// PreviewRows is the number of leading rows printed; 0 disables the preview
	PreviewRows int
	// ConvertTimestamps renders ctime as an RFC 3339 UTC datetime
	ConvertTimestamps bool
	Encoding          string
}

// FeatureTable is the cleaned, time-ordered feature set
type FeatureTable struct {
	records []domain.FeatureRecord
}

// Columns returns the table's column names in order
func (t *FeatureTable) Columns() []string {
	return slices.Clone(domain.FeatureColumns)
}

// Len returns the number of rows
func (t *FeatureTable) Len() int {
	return len(t.records)
}

// Records returns all rows in ctime order
func (t *FeatureTable) Records() []domain.FeatureRecord {
	return t.records
}

// Head returns the first n rows, or all rows when the table is shorter
func (t *FeatureTable) Head(n int) []domain.FeatureRecord {
	if n < 0 {
		n = 0
	}
	return t.records[:min(n, len(t.records))]
}

// FeatureSelector loads a combined telemetry file and reduces it to the
// analysis feature set
type FeatureSelector struct {
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.PrepMetrics
	writer  *exporter.FeatureWriter
	preview io.Writer
}

// NewFeatureSelector creates a selector printing previews to preview. A nil
// tracer or metrics disables them; a nil preview writer discards previews.
func NewFeatureSelector(logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.PrepMetrics, preview io.Writer) *FeatureSelector {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}
	if metrics == nil {
		metrics, _ = infrastructure.CreatePrepMetrics(nil)
	}
	if preview == nil {
		preview = io.Discard
	}
	return &FeatureSelector{
		logger:  logger,
		tracer:  tracer,
		metrics: metrics,
		writer:  exporter.NewFeatureWriter(logger),
		preview: preview,
	}
}

// Select loads opts.InputFile, keeps the feature columns, drops rows with a
// missing feature value and orders the rest by ctime (ties keep file order).
// The first opts.PreviewRows rows are printed and, when opts.OutputFile is
// set, the table is written there.
func (s *FeatureSelector) Select(ctx context.Context, opts SelectOptions) (*FeatureTable, *domain.SelectReport, error) {
	start := time.Now()

	ctx, span := s.tracer.Start(ctx, "select.run", trace.WithAttributes(
		attribute.String("input_file", opts.InputFile),
		attribute.String("output_file", opts.OutputFile),
	))
	defer span.End()

	table, report, err := s.run(ctx, opts)

	elapsed := time.Since(start)
	s.metrics.RunDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("command", "select")))

	if err != nil {
		infrastructure.RecordError(span, err)
		return nil, nil, err
	}

	report.Duration = elapsed
	span.SetAttributes(
		attribute.Int("rows_read", report.RowsRead),
		attribute.Int("rows_dropped", report.RowsDropped),
		attribute.Int("rows_kept", report.RowsKept),
	)

	s.logger.InfoContext(ctx, "Feature selection completed",
		slog.String("input_file", report.InputFile),
		slog.Int("rows_read", report.RowsRead),
		slog.Int("rows_dropped", report.RowsDropped),
		slog.Int("rows_kept", report.RowsKept),
		slog.Duration("duration", elapsed))

	return table, report, nil
}

func (s *FeatureSelector) run(ctx context.Context, opts SelectOptions) (*FeatureTable, *domain.SelectReport, error) {
	if opts.InputFile == "" {
		return nil, nil, errors.NewAppValidationError("input file is required")
	}
	if opts.PreviewRows < 0 {
		return nil, nil, errors.NewAppValidationError(fmt.Sprintf("preview rows must not be negative, got %d", opts.PreviewRows))
	}
	if err := files.CheckEncoding(opts.Encoding); err != nil {
		return nil, nil, errors.NewAppValidationError(err.Error())
	}

	records, err := s.load(opts)
	if err != nil {
		return nil, nil, err
	}

	header := normalizeHeader(records[0])
	if missing := missingColumns(header); len(missing) > 0 {
		return nil, nil, errors.NewColumnNotFoundError(missing).
			WithContext("file", opts.InputFile)
	}
	records[0] = header

	report := &domain.SelectReport{
		InputFile:  opts.InputFile,
		OutputFile: opts.OutputFile,
		RowsRead:   len(records) - 1,
	}
	s.metrics.RowsRead.Add(ctx, int64(report.RowsRead))

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	featureRecords, err := s.selectFeatures(records, opts.InputFile)
	if err != nil {
		return nil, nil, err
	}

	report.RowsKept = len(featureRecords)
	report.RowsDropped = report.RowsRead - report.RowsKept
	s.metrics.RowsKept.Add(ctx, int64(report.RowsKept))
	s.metrics.RowsDropped.Add(ctx, int64(report.RowsDropped))

	if report.RowsDropped > 0 {
		s.logger.InfoContext(ctx, "Dropped rows with missing values",
			slog.Int("rows_dropped", report.RowsDropped))
	}

	sort.SliceStable(featureRecords, func(i, j int) bool {
		return featureRecords[i].Timestamp.Less(featureRecords[j].Timestamp)
	})

	if opts.ConvertTimestamps {
		if err := convertTimestamps(featureRecords); err != nil {
			return nil, nil, err.WithContext("file", opts.InputFile)
		}
	}

	table := &FeatureTable{records: featureRecords}

	if opts.OutputFile != "" {
		if err := s.writer.WriteFeatures(opts.OutputFile, table.Records()); err != nil {
			return nil, nil, errors.NewStorageError("failed to write feature file", err).
				WithContext("output_file", opts.OutputFile)
		}
	}

	if opts.PreviewRows > 0 {
		if err := s.printPreview(table, opts.PreviewRows); err != nil {
			return nil, nil, errors.NewStorageError("failed to print preview", err)
		}
	}

	return table, report, nil
}

// load reads every record of the input file; the first record is the header
func (s *FeatureSelector) load(opts SelectOptions) ([][]string, error) {
	r, err := files.OpenDecoded(opts.InputFile, opts.Encoding)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("file %s", opts.InputFile), err)
		}
		return nil, errors.NewStorageError("failed to open input file", err).
			WithContext("file", opts.InputFile)
	}
	defer r.Close()

	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, parseError(opts.InputFile, err)
	}
	if len(records) == 0 {
		return nil, errors.NewParsingError("empty file", nil).
			WithContext("file", opts.InputFile)
	}

	s.logger.Debug("Loaded input file",
		slog.String("file", opts.InputFile),
		slog.Int("rows", len(records)-1),
		slog.Int("columns", len(records[0])))
	return records, nil
}

// selectFeatures restricts records to the feature columns, drops rows with a
// missing value and parses the rest. Output keeps input row order.
func (s *FeatureSelector) selectFeatures(records [][]string, path string) ([]domain.FeatureRecord, error) {
	if len(records) == 1 {
		return []domain.FeatureRecord{}, nil
	}

	df := dataframe.LoadRecords(records,
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.HasHeader(true),
		dataframe.NaNValues(MissingValueTokens),
	)
	if df.Err != nil {
		return nil, errors.NewParsingError("failed to load table", df.Err).
			WithContext("file", path)
	}

	features := df.Select(domain.FeatureColumns)
	if features.Err != nil {
		return nil, errors.NewParsingError("failed to select feature columns", features.Err).
			WithContext("file", path)
	}

	keep := completeRows(features)
	if len(keep) == 0 {
		return []domain.FeatureRecord{}, nil
	}

	complete := features.Subset(keep)
	if complete.Err != nil {
		return nil, errors.NewParsingError("failed to drop incomplete rows", complete.Err).
			WithContext("file", path)
	}

	columns := make([][]string, len(domain.FeatureColumns))
	for i, name := range domain.FeatureColumns {
		columns[i] = complete.Col(name).Records()
	}

	out := make([]domain.FeatureRecord, 0, len(keep))
	for row := range keep {
		rec, ok, err := parseFeatureRow(columns, row)
		if err != nil {
			return nil, err.WithContext("file", path).WithContext("row", keep[row]+1)
		}
		if !ok {
			continue
		}
		// numeric and text timestamps have no common order
		if len(out) > 0 && out[0].Timestamp.IsText() != rec.Timestamp.IsText() {
			return nil, errors.NewParsingError("timestamp not comparable",
				fmt.Errorf("column %s mixes numeric and text values", domain.TimestampColumn)).
				WithContext("value", strings.TrimSpace(columns[0][row])).
				WithContext("file", path).
				WithContext("row", keep[row]+1)
		}
		out = append(out, rec)
	}
	return out, nil
}

// completeRows returns the indexes of rows with no missing feature value
func completeRows(df dataframe.DataFrame) []int {
	missing := make([]bool, df.Nrow())
	for _, name := range domain.FeatureColumns {
		for i, nan := range df.Col(name).IsNaN() {
			if nan {
				missing[i] = true
			}
		}
	}

	keep := make([]int, 0, len(missing))
	for i, m := range missing {
		if !m {
			keep = append(keep, i)
		}
	}
	return keep
}

// parseFeatureRow converts one row of the feature columns into a record. It
// reports false when a cell holds a missing value the dataframe load did not
// catch, such as a differently cased NaN.
func parseFeatureRow(columns [][]string, row int) (domain.FeatureRecord, bool, *errors.AppError) {
	raw := strings.TrimSpace(columns[0][row])
	if isMissingValue(raw) {
		return domain.FeatureRecord{}, false, nil
	}

	var ts domain.Timestamp
	if v, err := strconv.ParseFloat(raw, 64); err != nil {
		ts.Text = raw
	} else if math.IsNaN(v) {
		return domain.FeatureRecord{}, false, nil
	} else {
		ts.Seconds = v
	}

	var values [7]float64
	for i, name := range domain.MeasurementColumns() {
		raw := strings.TrimSpace(columns[i+1][row])
		if isMissingValue(raw) {
			return domain.FeatureRecord{}, false, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.FeatureRecord{}, false, errors.NewParsingError(fmt.Sprintf("non-numeric value in column %s", name), err).
				WithContext("column", name).
				WithContext("value", raw)
		}
		if math.IsNaN(v) {
			return domain.FeatureRecord{}, false, nil
		}
		values[i] = v
	}

	return domain.FeatureRecord{
		Timestamp:       ts,
		BatSOH:          values[0],
		BatTemp:         values[1],
		BatCycleCount:   values[2],
		BatVolt:         values[3],
		ThrottlePercent: values[4],
		BatCurrent:      values[5],
		MotorTemp:       values[6],
	}, true, nil
}

// convertTimestamps switches numeric ctime values to RFC 3339 rendering. Text
// values are left as they are; a number outside the representable time range
// is a parsing error.
func convertTimestamps(records []domain.FeatureRecord) *errors.AppError {
	for i := range records {
		ts := &records[i].Timestamp
		if ts.IsText() {
			continue
		}
		if _, ok := ts.Time(); !ok {
			return errors.NewParsingError("timestamp out of range for conversion", nil).
				WithContext("value", ts.String())
		}
		ts.Layout = time.RFC3339
	}
	return nil
}

func (s *FeatureSelector) printPreview(table *FeatureTable, n int) error {
	head := table.Head(n)
	rows := make([][]string, len(head))
	for i, rec := range head {
		rows[i] = rec.Values()
	}
	return exporter.RenderPreview(s.preview, table.Columns(), rows, table.Len())
}

// normalizeHeader strips surrounding whitespace from column names. A name
// that repeats an earlier one gets a ".N" suffix so the first occurrence is
// the one selected.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if seen[name] {
			base := name
			for n := 1; seen[name]; n++ {
				name = fmt.Sprintf("%s.%d", base, n)
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}

// missingColumns lists the feature columns absent from header
func missingColumns(header []string) []string {
	var missing []string
	for _, name := range domain.FeatureColumns {
		if !slices.Contains(header, name) {
			missing = append(missing, name)
		}
	}
	return missing
}
