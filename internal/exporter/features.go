package exporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jszwec/csvutil"

	"telemetryprep/pkg/contracts/domain"
)

// FeatureWriter writes cleaned feature records as CSV
type FeatureWriter struct {
	logger *slog.Logger
}

// NewFeatureWriter creates a feature writer
func NewFeatureWriter(logger *slog.Logger) *FeatureWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeatureWriter{logger: logger}
}

// WriteFeatures writes records to filePath, replacing any existing file. The
// header is always written, even when there are no records.
func (w *FeatureWriter) WriteFeatures(filePath string, records []domain.FeatureRecord) error {
	w.logger.Info("Writing feature file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(records)))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := EncodeFeatures(file, records); err != nil {
		file.Close()
		return err
	}

	return file.Close()
}

// EncodeFeatures encodes records with a header row to out
func EncodeFeatures(out io.Writer, records []domain.FeatureRecord) error {
	writer := csv.NewWriter(out)
	enc := csvutil.NewEncoder(writer)
	enc.Register(func(f float64) ([]byte, error) {
		return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
	})

	if len(records) == 0 {
		if err := enc.EncodeHeader(domain.FeatureRecord{}); err != nil {
			return fmt.Errorf("failed to encode header: %w", err)
		}
	} else if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}

	writer.Flush()
	return writer.Error()
}
