package domain

// Series names a provider collection fetched per sync.
type Series string

const (
	SeriesMain      Series = "main"
	SeriesSleep     Series = "sleep"
	SeriesActivity  Series = "activity"
	SeriesReadiness Series = "readiness"
	SeriesSleepTime Series = "sleep_time"
)

// AllSeries lists every raw series in persistence order.
var AllSeries = []Series{SeriesMain, SeriesSleep, SeriesActivity, SeriesReadiness, SeriesSleepTime}

// Collection names a persisted document collection.
type Collection string

const CollectionDisplay Collection = "display_info"

// Collection returns the raw collection the series is stored in.
func (s Series) Collection() Collection {
	return Collection(string(s) + "_raw")
}

// Collections lists every per-user data collection.
func Collections() []Collection {
	cols := []Collection{CollectionDisplay}
	for _, s := range AllSeries {
		cols = append(cols, s.Collection())
	}
	return cols
}

// Valid reports whether c is a known data collection.
func (c Collection) Valid() bool {
	for _, known := range Collections() {
		if c == known {
			return true
		}
	}
	return false
}

// RawRecord is one provider document stored verbatim for a user.
type RawRecord struct {
	Email    string
	Day      string
	SourceID string // provider document id, part of the key for the main series
	Payload  Document
}

// NewRawRecord builds a RawRecord for email from a provider document.
func NewRawRecord(email string, doc Document) RawRecord {
	return RawRecord{Email: email, Day: doc.Day(), SourceID: doc.ID(), Payload: doc}
}
