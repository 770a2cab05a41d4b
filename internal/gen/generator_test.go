package gen

import (
	"bufio"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oidbs/oidbs/internal/model"
)

func testModel() model.Model {
	return model.Model{
		Name:      "pstations",
		Completed: true,
		Parameters: map[string]any{
			"num_stations": 3,
			"num_sensors":  2,
		},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestGeneratorCSV(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2021, 1, 1, 0, 0, 1, 0, time.UTC)

	g, err := New(Options{
		OutputDir:         dir,
		Workers:           2,
		Start:             start,
		IntervalPerWorker: 4,
		Step:              1,
		Format:            FormatCSV,
	}, []model.Model{testModel()}, zerolog.Nop())
	require.NoError(t, err)

	totals, err := g.Run()
	require.NoError(t, err)

	// 2 workers * 4 timestamps * 3 stations * 2 sensors
	assert.Equal(t, uint64(48), totals["pstations"])

	lines := readLines(t, filepath.Join(dir, "pstations", "000000.csv"))
	require.Len(t, lines, 24)

	first := strings.Split(lines[0], ",")
	require.Len(t, first, 5)
	assert.Equal(t, "0", first[0])
	assert.Equal(t, "0", first[1])
	assert.Equal(t, "0", first[2])
	assert.Equal(t, "2021-01-01 00:00:01", first[4])

	// Worker 1 starts one interval later.
	lines = readLines(t, filepath.Join(dir, "pstations", "000001.csv"))
	first = strings.Split(lines[0], ",")
	assert.Equal(t, "2021-01-01 00:00:05", first[4])
}

func TestGeneratorJSON(t *testing.T) {
	dir := t.TempDir()

	g, err := New(Options{
		OutputDir:         dir,
		Workers:           1,
		Start:             time.Date(2022, 2, 2, 11, 11, 11, 0, time.UTC),
		IntervalPerWorker: 1,
		Step:              1,
		Format:            FormatJSON,
	}, []model.Model{testModel()}, zerolog.Nop())
	require.NoError(t, err)

	_, err = g.Run()
	require.NoError(t, err)

	lines := readLines(t, filepath.Join(dir, "pstations", "000000.json"))
	require.Len(t, lines, 6)

	var record struct {
		StationID   uint32  `json:"station_id"`
		SensorID    uint8   `json:"sensor_id"`
		SensorKind  uint8   `json:"sensor_kind"`
		SensorValue float32 `json:"sensor_value"`
		Timestamp   string  `json:"ts"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "2022-02-02 11:11:11", record.Timestamp)
	assert.GreaterOrEqual(t, record.SensorValue, float32(10))
	assert.Less(t, record.SensorValue, float32(50))
}

func TestGeneratorDeterministic(t *testing.T) {
	run := func() []string {
		dir := t.TempDir()
		g, err := New(Options{
			OutputDir:         dir,
			Workers:           1,
			Start:             time.Date(2021, 1, 1, 0, 0, 1, 0, time.UTC),
			IntervalPerWorker: 2,
			Step:              1,
			Format:            FormatCSV,
		}, []model.Model{testModel()}, zerolog.Nop())
		require.NoError(t, err)
		_, err = g.Run()
		require.NoError(t, err)
		return readLines(t, filepath.Join(dir, "pstations", "000000.csv"))
	}

	assert.Equal(t, run(), run())
}

func TestGeneratorOutOfOrder(t *testing.T) {
	dir := t.TempDir()

	g, err := New(Options{
		OutputDir:         dir,
		Workers:           1,
		Start:             time.Date(2021, 1, 1, 0, 0, 1, 0, time.UTC),
		IntervalPerWorker: 10,
		Step:              1,
		Format:            FormatCSV,
		OutOfOrder:        true,
	}, []model.Model{testModel()}, zerolog.Nop())
	require.NoError(t, err)

	totals, err := g.Run()
	require.NoError(t, err)
	assert.Equal(t, uint64(60), totals["pstations"])

	// Same record population, different order than a strictly-ordered run.
	lines := readLines(t, filepath.Join(dir, "pstations", "000000.csv"))
	require.Len(t, lines, 60)

	timestamps := make([]string, len(lines))
	for i, line := range lines {
		parts := strings.Split(line, ",")
		timestamps[i] = parts[len(parts)-1]
	}
	assert.False(t, sortedStrings(timestamps), "expected out-of-order timestamps")
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] < s[i-1] {
			return false
		}
	}
	return true
}

func TestGeneratorSkipsIncompleteModels(t *testing.T) {
	dir := t.TempDir()
	incomplete := model.Model{Name: "nyct", Completed: false}

	g, err := New(Options{
		OutputDir:         dir,
		Workers:           1,
		Start:             time.Now(),
		IntervalPerWorker: 1,
		Step:              1,
		Format:            FormatCSV,
	}, []model.Model{incomplete}, zerolog.Nop())
	require.NoError(t, err)

	totals, err := g.Run()
	require.NoError(t, err)
	assert.Empty(t, totals)

	_, statErr := os.Stat(filepath.Join(dir, "nyct"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestGeneratorValidation(t *testing.T) {
	_, err := New(Options{Workers: 0, Format: FormatCSV}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNoWorkers)

	_, err = New(Options{Workers: 1, Format: "parquet"}, nil, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestPstationsLinesParameters(t *testing.T) {
	rng := rand.New(rand.NewSource(DefaultSeed))
	ts := time.Date(2021, 1, 1, 0, 0, 1, 0, time.UTC)

	lines, err := pstationsLines(FormatCSV, ts, rng, map[string]any{
		"num_stations": 2,
		"num_sensors":  3,
	})
	require.NoError(t, err)
	assert.Len(t, lines, 6)

	_, err = pstationsLines(FormatCSV, ts, rng, map[string]any{"num_stations": -1})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}
