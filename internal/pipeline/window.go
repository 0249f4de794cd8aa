package pipeline

import (
	"fmt"
	"net/url"
	"time"

	"github.com/3Health-View/backend/internal/domain"
)

// Window is the range of days requested from the provider on a sync. End
// bounds are one day past today to absorb timezone skew; the activity series
// reaches one day further because the provider keys it a day behind.
type Window struct {
	Start       string
	End         string
	ActivityEnd string
}

// NewWindow computes the fetch window following the latest synced day.
func NewWindow(latest string, now time.Time) (Window, error) {
	last, err := domain.ParseDay(latest)
	if err != nil {
		return Window{}, fmt.Errorf("parse latest day %q: %w", latest, err)
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return Window{
		Start:       last.AddDate(0, 0, 1).Format(domain.DayLayout),
		End:         today.AddDate(0, 0, 1).Format(domain.DayLayout),
		ActivityEnd: today.AddDate(0, 0, 2).Format(domain.DayLayout),
	}, nil
}

// Params returns the start_date/end_date query for the series.
func (w Window) Params(s domain.Series) url.Values {
	end := w.End
	if s == domain.SeriesActivity {
		end = w.ActivityEnd
	}
	return url.Values{
		"start_date": {w.Start},
		"end_date":   {end},
	}
}
