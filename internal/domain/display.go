package domain

import (
	"sort"
	"time"
)

// DayLayout is the calendar day format used by the provider and storage.
const DayLayout = "2006-01-02"

// EpochDay is the watermark of a user with no synced days.
const EpochDay = "1970-01-01"

// DisplayRecord is the flattened per-day row served to clients. Missing
// provider values are 0, an empty series or an empty string, never null.
type DisplayRecord struct {
	Day                string     `json:"day"`
	SleepScore         float64    `json:"sleep_score"`
	ReadinessScore     float64    `json:"readiness_score"`
	ActivityScore      float64    `json:"activity_score"`
	Efficiency         float64    `json:"efficiency"`
	Restfulness        float64    `json:"restfulness"`
	TotalSleep         float64    `json:"total_sleep"`
	Awake              float64    `json:"awake"`
	RemSleep           float64    `json:"rem_sleep"`
	LightSleep         float64    `json:"light_sleep"`
	DeepSleep          float64    `json:"deep_sleep"`
	Latency            float64    `json:"latency"`
	BedtimeStart       string     `json:"bedtime_start"`
	BedtimeEnd         string     `json:"bedtime_end"`
	HeartRate          []*float64 `json:"heart_rate"`
	AverageHeartRate   float64    `json:"average_heart_rate"`
	HRV                []*float64 `json:"hrv"`
	AverageHRV         float64    `json:"average_hrv"`
	Type               string     `json:"type"`
	OuraRecommendation string     `json:"oura_recommendation"`
	OuraStatus         string     `json:"oura_status"`
	Recommendation     string     `json:"recommendation"`
	Email              string     `json:"email"`
}

// SortByDayDesc orders records most recent first. Records sharing a day keep
// their relative order.
func SortByDayDesc(records []DisplayRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Day > records[j].Day
	})
}

// ParseDay parses a YYYY-MM-DD day as midnight UTC.
func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DayLayout, day, time.UTC)
}
