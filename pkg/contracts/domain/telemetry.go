package domain

import (
	"math"
	"strconv"
	"time"
)

// Feature column names as they appear in the combined telemetry CSV
// (after surrounding whitespace is stripped from the header).
const (
	TimestampColumn       = "ctime"
	BatSOHColumn          = "BatSOH"
	BatTempColumn         = "BatTemp"
	BatCycleCountColumn   = "BatCycleCount"
	BatVoltColumn         = "BatVolt"
	ThrottlePercentColumn = "ThrottlePercent"
	BatCurrentColumn      = "BatCurrent"
	MotorTempColumn       = "MotorTemp"
)

// FeatureColumns is the ordered set of columns kept by feature selection.
var FeatureColumns = []string{
	TimestampColumn,
	BatSOHColumn,
	BatTempColumn,
	BatCycleCountColumn,
	BatVoltColumn,
	ThrottlePercentColumn,
	BatCurrentColumn,
	MotorTempColumn,
}

// MeasurementColumns returns the feature columns other than the timestamp.
func MeasurementColumns() []string {
	return FeatureColumns[1:]
}

// epochLimit bounds the seconds Time converts; int64 cannot hold values beyond it
const epochLimit = 1 << 63

// Timestamp is a ctime value. Numeric values are Unix epoch seconds; a value
// that is not a number is kept verbatim in Text. When Layout is set a numeric
// value renders as a UTC datetime in that layout, otherwise as the raw number.
type Timestamp struct {
	Seconds float64
	Text    string
	Layout  string
}

// IsText reports whether the value was kept as text rather than epoch seconds
func (t Timestamp) IsText() bool {
	return t.Text != ""
}

// Less orders numeric timestamps by value and text timestamps lexically
func (t Timestamp) Less(o Timestamp) bool {
	if t.IsText() || o.IsText() {
		return t.Text < o.Text
	}
	return t.Seconds < o.Seconds
}

// Time converts the epoch seconds to a UTC time, keeping sub-second precision.
// It reports false for text values and for seconds outside the int64 range.
func (t Timestamp) Time() (time.Time, bool) {
	if t.IsText() || math.IsNaN(t.Seconds) || t.Seconds < -epochLimit || t.Seconds >= epochLimit {
		return time.Time{}, false
	}
	sec := int64(t.Seconds)
	nsec := int64((t.Seconds - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), true
}

// String implements fmt.Stringer
func (t Timestamp) String() string {
	if t.IsText() {
		return t.Text
	}
	if t.Layout != "" {
		if tm, ok := t.Time(); ok {
			return tm.Format(t.Layout)
		}
	}
	return strconv.FormatFloat(t.Seconds, 'f', -1, 64)
}

// MarshalText implements encoding.TextMarshaler so CSV encoders use String.
func (t Timestamp) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// FeatureRecord is one analysis-ready telemetry row. Every field is present;
// rows with a missing value never become a FeatureRecord.
type FeatureRecord struct {
	Timestamp       Timestamp `csv:"ctime"`
	BatSOH          float64   `csv:"BatSOH"`
	BatTemp         float64   `csv:"BatTemp"`
	BatCycleCount   float64   `csv:"BatCycleCount"`
	BatVolt         float64   `csv:"BatVolt"`
	ThrottlePercent float64   `csv:"ThrottlePercent"`
	BatCurrent      float64   `csv:"BatCurrent"`
	MotorTemp       float64   `csv:"MotorTemp"`
}

// Values returns the record as display strings in FeatureColumns order.
func (r FeatureRecord) Values() []string {
	return []string{
		r.Timestamp.String(),
		formatMeasurement(r.BatSOH),
		formatMeasurement(r.BatTemp),
		formatMeasurement(r.BatCycleCount),
		formatMeasurement(r.BatVolt),
		formatMeasurement(r.ThrottlePercent),
		formatMeasurement(r.BatCurrent),
		formatMeasurement(r.MotorTemp),
	}
}

func formatMeasurement(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
