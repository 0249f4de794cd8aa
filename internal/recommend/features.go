package recommend

import (
	"math"
	"time"

	"github.com/3Health-View/backend/internal/domain"
)

// FeatureNames is the column order the model was trained on.
var FeatureNames = []string{
	"sleep_score",
	"readiness_score",
	"activity_score",
	"efficiency",
	"restfulness",
	"total_sleep",
	"awake",
	"rem_sleep",
	"light_sleep",
	"deep_sleep",
	"latency",
	"bedtime_start",
	"bedtime_end",
	"average_heart_rate",
	"average_hrv",
}

// Features builds the model input row for a display record. Bedtimes become
// signed seconds from midnight UTC of the record's day; unparseable values
// are NaN.
func Features(r domain.DisplayRecord) []float64 {
	return []float64{
		r.SleepScore,
		r.ReadinessScore,
		r.ActivityScore,
		r.Efficiency,
		r.Restfulness,
		r.TotalSleep,
		r.Awake,
		r.RemSleep,
		r.LightSleep,
		r.DeepSleep,
		r.Latency,
		secondsFromDay(r.Day, r.BedtimeStart),
		secondsFromDay(r.Day, r.BedtimeEnd),
		r.AverageHeartRate,
		r.AverageHRV,
	}
}

func secondsFromDay(day, timestamp string) float64 {
	midnight, err := domain.ParseDay(day)
	if err != nil {
		return math.NaN()
	}
	t, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return math.NaN()
	}
	return t.Sub(midnight).Seconds()
}
