package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetryprep/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func combineOpts(dir, out string, chunkSize int) CombineOptions {
	return CombineOptions{
		InputDir:   dir,
		OutputFile: out,
		ChunkSize:  chunkSize,
		Encoding:   "utf-8",
	}
}

func TestCombineScenarioChunkSizeOne(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,BatVolt\n1,3.7\n3,3.6\n")
	writeFile(t, dir, "b.csv", "ctime,BatVolt\n2,3.65\n")
	out := filepath.Join(t.TempDir(), "combined_data.csv")

	report, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 1))
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"ctime", "BatVolt"},
		{"1", "3.7"},
		{"3", "3.6"},
		{"2", "3.65"},
	}, readRecords(t, out))

	assert.Equal(t, 2, report.FilesProcessed)
	assert.Equal(t, 3, report.RowsWritten)
	assert.Equal(t, 3, report.ChunksWritten)
	assert.Equal(t, 1, report.PeakChunkRows)
	assert.Equal(t, []string{"ctime", "BatVolt"}, report.Header)
	require.Len(t, report.Files, 2)
	assert.Equal(t, "a.csv", report.Files[0].Name)
	assert.Equal(t, 2, report.Files[0].Rows)
	assert.Equal(t, 1, report.Files[1].Rows)
}

func TestCombineCompletenessAndSingleHeader(t *testing.T) {
	dir := t.TempDir()
	rowsPerFile := []int{0, 7, 1, 25}
	total := 0
	for i, n := range rowsPerFile {
		var b strings.Builder
		b.WriteString("ctime,BatSOH\n")
		for r := 0; r < n; r++ {
			fmt.Fprintf(&b, "%d,%d\n", i*100+r, 90+r%10)
		}
		writeFile(t, dir, fmt.Sprintf("session_%02d.csv", i), b.String())
		total += n
	}

	for _, chunkSize := range []int{1, 2, 3, 10, 10000} {
		t.Run(fmt.Sprintf("chunk_%d", chunkSize), func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "combined.csv")
			report, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, chunkSize))
			require.NoError(t, err)

			records := readRecords(t, out)
			require.Len(t, records, total+1)

			headers := 0
			for _, rec := range records {
				if rec[0] == "ctime" {
					headers++
				}
			}
			assert.Equal(t, 1, headers)
			assert.Equal(t, total, report.RowsWritten)
			assert.LessOrEqual(t, report.PeakChunkRows, chunkSize)
			assert.Equal(t, "100", records[1][0], "first row of the first non-empty file")
			assert.Equal(t, "300", records[len(records)-25][0])
		})
	}
}

func TestCombineFirstFileWithoutRowsWritesHeader(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,BatTemp\n")
	out := filepath.Join(dir, "out", "combined.csv")

	report, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 5))
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ctime,BatTemp\n", string(content))
	assert.Equal(t, 0, report.RowsWritten)
	assert.Equal(t, 0, report.ChunksWritten)
}

func TestCombineMismatchedHeaderOnlyWarns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,BatVolt\n1,3.7\n")
	writeFile(t, dir, "b.csv", "ctime,MotorTemp\n2,40\n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	_, err := NewCombiner(logger, nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"ctime", "BatVolt"}, {"1", "3.7"}, {"2", "40"}}, readRecords(t, out))
	assert.Contains(t, logs.String(), `"level":"WARN"`)
	assert.Contains(t, logs.String(), "Header differs")
}

func TestCombineRowsUnchanged(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,note\n1,\"quoted, value\"\n2, padded \n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 1))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"ctime", "note"}, {"1", "quoted, value"}, {"2", " padded "}}, readRecords(t, out))
}

func TestCombineOverwritesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime\n1\n")
	out := writeFile(t, t.TempDir(), "combined.csv", "stale,content\nx,y\nz,w\n")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"ctime"}, {"1"}}, readRecords(t, out))
}

func TestCombineExcludesOutputInInputDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime\n1\n")
	out := writeFile(t, dir, "combined_data.csv", "ctime\n99\n")

	report, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.NoError(t, err)

	assert.Equal(t, 1, report.FilesProcessed)
	assert.Equal(t, [][]string{{"ctime"}, {"1"}}, readRecords(t, out))
}

func TestCombineNoFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "not a csv")
	out := filepath.Join(t.TempDir(), "combined.csv")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.NoFileExists(t, out)

	opts := combineOpts(dir, out, 10)
	opts.AllowEmpty = true
	report, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FilesProcessed)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCombineErrors(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T, dir string) CombineOptions
		wantType errors.ErrorType
	}{
		{
			name: "missing input directory",
			setup: func(t *testing.T, dir string) CombineOptions {
				return combineOpts(filepath.Join(dir, "missing"), filepath.Join(dir, "out.csv"), 10)
			},
			wantType: errors.ErrTypeNotFound,
		},
		{
			name: "zero chunk size",
			setup: func(t *testing.T, dir string) CombineOptions {
				return combineOpts(dir, filepath.Join(dir, "out.csv"), 0)
			},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "unknown encoding",
			setup: func(t *testing.T, dir string) CombineOptions {
				opts := combineOpts(dir, filepath.Join(dir, "out.csv"), 10)
				opts.Encoding = "utf-16"
				return opts
			},
			wantType: errors.ErrTypeValidation,
		},
		{
			name: "zero-byte input file",
			setup: func(t *testing.T, dir string) CombineOptions {
				in := filepath.Join(dir, "in")
				require.NoError(t, os.Mkdir(in, 0755))
				writeFile(t, in, "a.csv", "ctime\n1\n")
				writeFile(t, in, "b.csv", "")
				return combineOpts(in, filepath.Join(dir, "out.csv"), 10)
			},
			wantType: errors.ErrTypeParsing,
		},
		{
			name: "inconsistent field count",
			setup: func(t *testing.T, dir string) CombineOptions {
				in := filepath.Join(dir, "in")
				require.NoError(t, os.Mkdir(in, 0755))
				writeFile(t, in, "a.csv", "ctime,BatVolt\n1,3.7\n2\n")
				return combineOpts(in, filepath.Join(dir, "out.csv"), 10)
			},
			wantType: errors.ErrTypeParsing,
		},
		{
			name: "output path is a directory",
			setup: func(t *testing.T, dir string) CombineOptions {
				in := filepath.Join(dir, "in")
				require.NoError(t, os.Mkdir(in, 0755))
				writeFile(t, in, "a.csv", "ctime\n1\n")
				out := filepath.Join(dir, "out")
				require.NoError(t, os.Mkdir(out, 0755))
				return combineOpts(in, out, 10)
			},
			wantType: errors.ErrTypeStorage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.setup(t, t.TempDir())
			_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), opts)
			require.Error(t, err)
			assert.Equal(t, tt.wantType, errors.TypeOf(err), err.Error())
		})
	}
}

func TestCombineParseErrorCarriesLine(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,BatVolt\n1,3.7\n2,\"unterminated\n")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(),
		combineOpts(dir, filepath.Join(t.TempDir(), "out.csv"), 10))
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrTypeParsing, appErr.Type)
	assert.Contains(t, appErr.Context, "line")
	assert.Equal(t, filepath.Join(dir, "a.csv"), appErr.Context["file"])
}

func TestCombineAtomic(t *testing.T) {
	t.Run("success replaces output", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.csv", "ctime\n1\n2\n")
		outDir := t.TempDir()
		out := writeFile(t, outDir, "combined.csv", "old\n")

		opts := combineOpts(dir, out, 1)
		opts.Atomic = true
		_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), opts)
		require.NoError(t, err)

		assert.Equal(t, [][]string{{"ctime"}, {"1"}, {"2"}}, readRecords(t, out))
		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file removed")
	})

	t.Run("failure keeps previous output", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "a.csv", "ctime\n1\n")
		writeFile(t, dir, "b.csv", "ctime\n2,extra\n")
		outDir := t.TempDir()
		out := writeFile(t, outDir, "combined.csv", "previous\n")

		opts := combineOpts(dir, out, 1)
		opts.Atomic = true
		_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), opts)
		require.Error(t, err)

		content, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "previous\n", string(content))
		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "temporary file removed")
	})
}

func TestCombineNonAtomicFailureLeavesPartialOutput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime\n1\n")
	writeFile(t, dir, "b.csv", "ctime\n2,extra\n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 1))
	require.Error(t, err)

	assert.Equal(t, [][]string{{"ctime"}, {"1"}}, readRecords(t, out))
}

func TestCombineLatin1(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,unit\n1,\xb0C\n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	opts := combineOpts(dir, out, 10)
	opts.Encoding = "latin1"
	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"ctime", "unit"}, {"1", "°C"}}, readRecords(t, out))
}

func TestCombineKeepsInvalidUTF8Bytes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime,note\n1,caf\xe9\n")
	writeFile(t, dir, "b.csv", "\xef\xbb\xbfctime,note\n2,\xff\xfe\n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("ctime,note\n1,caf\xe9\n2,\xff\xfe\n"), content)
}

func TestCombineStripsBOM(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "\xef\xbb\xbfctime\n1\n")
	writeFile(t, dir, "b.csv", "\xef\xbb\xbfctime\n2\n")
	out := filepath.Join(t.TempDir(), "combined.csv")

	_, err := NewCombiner(testLogger(), nil, nil).Combine(context.Background(), combineOpts(dir, out, 10))
	require.NoError(t, err)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ctime\n1\n2\n", string(content))
}

func TestCombineCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "ctime\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCombiner(testLogger(), nil, nil).Combine(ctx, combineOpts(dir, filepath.Join(t.TempDir(), "out.csv"), 10))
	assert.ErrorIs(t, err, context.Canceled)
}
