package gen

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"
)

// Defaults for the pstations model: a power-station fleet where every
// station reports one value per sensor per timestamp.
const (
	defaultNumStations = 5000
	defaultNumSensors  = 200
)

// pstationsRecord is one sensor reading.
type pstationsRecord struct {
	StationID   uint32  `json:"station_id"`
	SensorID    uint8   `json:"sensor_id"`
	SensorKind  uint8   `json:"sensor_kind"`
	SensorValue float32 `json:"sensor_value"`
	Timestamp   string  `json:"ts"`
}

const timestampLayout = "2006-01-02 15:04:05"

// pstationsLines generates one batch of records for a timestamp, one line
// per station/sensor pair. Sensor kind cycles over 20 kinds; the value range
// doubles per kind.
func pstationsLines(format Format, ts time.Time, rng *rand.Rand, params map[string]any) ([]string, error) {
	numStations := paramInt(params, "num_stations", defaultNumStations)
	numSensors := paramInt(params, "num_sensors", defaultNumSensors)
	if numStations <= 0 || numSensors <= 0 || numSensors > 256 {
		return nil, fmt.Errorf("%w: num_stations=%d num_sensors=%d", ErrInvalidParameters, numStations, numSensors)
	}

	tsText := ts.Format(timestampLayout)
	lines := make([]string, 0, numStations*numSensors)

	for station := 0; station < numStations; station++ {
		for sensor := 0; sensor < numSensors; sensor++ {
			kind := uint8(sensor % 20)
			scale := float32(int32(1) << kind)
			low, high := 10*scale, 50*scale
			value := low + rng.Float32()*(high-low)

			record := pstationsRecord{
				StationID:   uint32(station),
				SensorID:    uint8(sensor),
				SensorKind:  kind,
				SensorValue: value,
				Timestamp:   tsText,
			}

			line, err := record.line(format)
			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}
	}

	return lines, nil
}

func (r pstationsRecord) line(format Format) (string, error) {
	switch format {
	case FormatCSV:
		return fmt.Sprintf("%d,%d,%d,%v,%s",
			r.StationID, r.SensorID, r.SensorKind, r.SensorValue, r.Timestamp), nil
	case FormatJSON:
		data, err := json.Marshal(r)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, format)
	}
}

// paramInt reads an integer parameter, tolerating the numeric types YAML
// manifests and JSON flag values decode to.
func paramInt(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return def
	}
}
