package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetryprep/internal/errors"
)

const fullHeader = "ctime,BatSOH,BatTemp,BatCycleCount,BatVolt,ThrottlePercent,BatCurrent,MotorTemp"

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeSessions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"),
		[]byte(fullHeader+"\n1,99,25,10,3.7,0,1.5,30\n3,98,26,10,3.6,20,2.5,31\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"),
		[]byte(fullHeader+"\n2,99,25,10,3.65,10,2,30\n"), 0644))
	return dir
}

func TestCombinerCommand(t *testing.T) {
	dir := writeSessions(t)
	out := filepath.Join(t.TempDir(), "combined_data.csv")

	stdout, stderr, err := execute(t, NewCombinerCmd(),
		"--input-dir", dir, "--output", out, "--chunk-size", "1")
	require.NoError(t, err)

	assert.Equal(t, "Combined 2 files (3 rows, 3 chunks) into "+out+"\n", stdout)
	assert.Contains(t, stderr, `"msg":"Combine completed"`)
	assert.Contains(t, stderr, `"component":"combiner"`)
	assert.Contains(t, stderr, `"trace_id"`)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(content), "ctime"))
}

func TestCombinerCommandMetricsFile(t *testing.T) {
	dir := writeSessions(t)
	tmp := t.TempDir()
	metricsFile := filepath.Join(tmp, "telemetryprep.prom")

	_, _, err := execute(t, NewCombinerCmd(),
		"--input-dir", dir,
		"--output", filepath.Join(tmp, "combined.csv"),
		"--metrics-file", metricsFile,
		"--atomic")
	require.NoError(t, err)

	content, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "combine_rows_written")
	assert.Contains(t, string(content), "run_duration")
}

func TestCombinerCommandErrors(t *testing.T) {
	t.Run("missing input directory", func(t *testing.T) {
		_, stderr, err := execute(t, NewCombinerCmd(),
			"--input-dir", filepath.Join(t.TempDir(), "missing"),
			"--output", filepath.Join(t.TempDir(), "out.csv"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
		assert.Contains(t, stderr, `"msg":"Run failed"`)
		assert.Contains(t, stderr, `"error_type":"NOT_FOUND"`)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, _, err := execute(t, NewCombinerCmd(),
			"--input-dir", t.TempDir(),
			"--output", filepath.Join(t.TempDir(), "out.csv"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("invalid chunk size", func(t *testing.T) {
		_, _, err := execute(t, NewCombinerCmd(), "--input-dir", t.TempDir(), "--chunk-size", "0")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})

	t.Run("unexpected argument", func(t *testing.T) {
		_, _, err := execute(t, NewCombinerCmd(), "extra")
		assert.Error(t, err)
	})
}

func TestCombinerCommandAllowEmpty(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.csv")
	stdout, _, err := execute(t, NewCombinerCmd(),
		"--input-dir", t.TempDir(), "--output", out, "--allow-empty")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Combined 0 files")
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestSelectorCommand(t *testing.T) {
	dir := writeSessions(t)
	tmp := t.TempDir()
	combined := filepath.Join(tmp, "combined.csv")
	features := filepath.Join(tmp, "features.csv")

	_, _, err := execute(t, NewCombinerCmd(), "--input-dir", dir, "--output", combined, "--chunk-size", "1")
	require.NoError(t, err)

	stdout, stderr, err := execute(t, NewSelectorCmd(),
		"--input", combined, "--output", features, "--preview-rows", "2")
	require.NoError(t, err)

	assert.Contains(t, stdout, "BatVolt")
	assert.Contains(t, stdout, "2 of 3 rows, 8 columns")
	assert.Contains(t, stdout, "Kept 3 of 3 rows (0 dropped for missing values)")
	assert.Contains(t, stdout, "Features written to "+features)
	assert.Contains(t, stderr, `"component":"selector"`)

	content, err := os.ReadFile(features)
	require.NoError(t, err)
	assert.Equal(t, fullHeader+"\n"+
		"1,99,25,10,3.7,0,1.5,30\n"+
		"2,99,25,10,3.65,10,2,30\n"+
		"3,98,26,10,3.6,20,2.5,31\n",
		string(content))
}

func TestSelectorCommandConvertTimestamps(t *testing.T) {
	input := filepath.Join(t.TempDir(), "combined.csv")
	require.NoError(t, os.WriteFile(input, []byte(fullHeader+"\n1700000000,99,25,10,3.7,0,1.5,30\n"), 0644))

	stdout, _, err := execute(t, NewSelectorCmd(), "--input", input, "--convert-timestamps")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2023-11-14T22:13:20Z")
}

func TestSelectorCommandErrors(t *testing.T) {
	t.Run("missing column", func(t *testing.T) {
		input := filepath.Join(t.TempDir(), "combined.csv")
		require.NoError(t, os.WriteFile(input, []byte("ctime,BatSOH\n1,99\n"), 0644))

		_, stderr, err := execute(t, NewSelectorCmd(), "--input", input)
		require.Error(t, err)
		assert.True(t, errors.IsColumnNotFound(err))
		assert.Contains(t, stderr, `"error_type":"COLUMN_NOT_FOUND"`)
	})

	t.Run("missing input", func(t *testing.T) {
		_, _, err := execute(t, NewSelectorCmd(), "--input", filepath.Join(t.TempDir(), "none.csv"))
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	})

	t.Run("bad encoding", func(t *testing.T) {
		_, _, err := execute(t, NewSelectorCmd(), "--encoding", "ebcdic")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
	})
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	dir := writeSessions(t)
	tmp := t.TempDir()
	fromFile := filepath.Join(tmp, "from_file.csv")
	fromFlag := filepath.Join(tmp, "from_flag.csv")

	configFile := filepath.Join(tmp, "telemetryprep.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(
		"combine:\n  input_dir: "+dir+"\n  output_file: "+fromFile+"\n  chunk_size: 2\n"), 0644))

	stdout, _, err := execute(t, NewCombinerCmd(), "--config", configFile)
	require.NoError(t, err)
	assert.Contains(t, stdout, "(3 rows, 2 chunks) into "+fromFile)

	stdout, _, err = execute(t, NewCombinerCmd(), "--config", configFile, "--output", fromFlag)
	require.NoError(t, err)
	assert.Contains(t, stdout, "into "+fromFlag)
	assert.FileExists(t, fromFlag)
}
