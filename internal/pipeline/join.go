package pipeline

import "github.com/3Health-View/backend/internal/domain"

// Sources holds the provider documents of one sync. Main drives the output;
// the other series are joined onto it by day.
type Sources struct {
	Main      []domain.Document
	Sleep     []domain.Document
	Activity  []domain.Document
	SleepTime []domain.Document
}

// longSleep is the main document type of a night's primary sleep period.
const longSleep = "long_sleep"

// Join produces one display record per day present in the main series,
// left-joining the auxiliary series on day. When an auxiliary series has
// several documents for a day the first one wins; see primaryByDay for the
// main series. The result is sorted most recent day first.
func Join(src Sources, email string) []domain.DisplayRecord {
	sleep := indexByDay(src.Sleep)
	activity := indexByDay(src.Activity)
	sleepTime := indexByDay(src.SleepTime)

	mains := primaryByDay(src.Main)
	records := make([]domain.DisplayRecord, 0, len(mains))
	for _, main := range mains {
		day := main.Day()
		rec := Normalize(main, sleep[day], activity[day], sleepTime[day])
		rec.Email = email
		records = append(records, rec)
	}

	domain.SortByDayDesc(records)
	return records
}

// Normalize flattens one main document and its same-day auxiliary documents
// into a display record. Any auxiliary document may be nil.
func Normalize(main, sleep, activity, sleepTime domain.Document) domain.DisplayRecord {
	return domain.DisplayRecord{
		Day:                main.Day(),
		SleepScore:         sleep.Number("score"),
		ReadinessScore:     main.Object("readiness").Number("score"),
		ActivityScore:      activity.Number("score"),
		Efficiency:         main.Number("efficiency"),
		Restfulness:        sleep.Object("contributors").Number("restfulness"),
		TotalSleep:         main.Number("total_sleep_duration"),
		Awake:              main.Number("awake_time"),
		RemSleep:           main.Number("rem_sleep_duration"),
		LightSleep:         main.Number("light_sleep_duration"),
		DeepSleep:          main.Number("deep_sleep_duration"),
		Latency:            main.Number("latency"),
		BedtimeStart:       main.String("bedtime_start"),
		BedtimeEnd:         main.String("bedtime_end"),
		HeartRate:          main.Items("heart_rate"),
		AverageHeartRate:   main.Number("average_heart_rate"),
		HRV:                main.Items("hrv"),
		AverageHRV:         main.Number("average_hrv"),
		Type:               main.String("type"),
		OuraRecommendation: sleepTime.String("recommendation"),
		OuraStatus:         sleepTime.String("status"),
	}
}

// primaryByDay keeps one main document per day, in order of first
// appearance. A long_sleep period beats naps and rests; within the same kind
// the longer total_sleep_duration wins and ties keep the earlier document.
func primaryByDay(docs []domain.Document) []domain.Document {
	pos := make(map[string]int, len(docs))
	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		i, ok := pos[d.Day()]
		if !ok {
			pos[d.Day()] = len(out)
			out = append(out, d)
			continue
		}
		if outranks(d, out[i]) {
			out[i] = d
		}
	}
	return out
}

func outranks(a, b domain.Document) bool {
	aLong, bLong := a.String("type") == longSleep, b.String("type") == longSleep
	if aLong != bLong {
		return aLong
	}
	return a.Number("total_sleep_duration") > b.Number("total_sleep_duration")
}

func indexByDay(docs []domain.Document) map[string]domain.Document {
	idx := make(map[string]domain.Document, len(docs))
	for _, d := range docs {
		if _, ok := idx[d.Day()]; !ok {
			idx[d.Day()] = d
		}
	}
	return idx
}
