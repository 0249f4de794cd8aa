package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeDocument(t *testing.T, raw string) Document {
	t.Helper()
	var doc Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestDocument_Accessors(t *testing.T) {
	doc := decodeDocument(t, `{
		"id": "s-1",
		"day": "2024-03-02",
		"efficiency": 91,
		"type": "long_sleep",
		"readiness": {"score": 78},
		"contributors": "not-an-object",
		"heart_rate": {"interval": 300, "items": [52.5, null, 49]}
	}`)

	assert.Equal(t, "s-1", doc.ID())
	assert.Equal(t, "2024-03-02", doc.Day())
	assert.Equal(t, 91.0, doc.Number("efficiency"))
	assert.Equal(t, "long_sleep", doc.String("type"))
	assert.Equal(t, 78.0, doc.Object("readiness").Number("score"))

	assert.Nil(t, doc.Object("contributors"))
	assert.Equal(t, 0.0, doc.Object("contributors").Number("restfulness"))
	assert.Equal(t, 0.0, doc.Number("missing"))
	assert.Equal(t, "", doc.String("efficiency"))

	items := doc.Items("heart_rate")
	require.Len(t, items, 3)
	assert.Equal(t, 52.5, *items[0])
	assert.Nil(t, items[1])
	assert.Equal(t, 49.0, *items[2])

	assert.Equal(t, []*float64{}, doc.Items("hrv"))
}

func TestDocument_CloneIsDeep(t *testing.T) {
	doc := decodeDocument(t, `{"met": {"items": [1, 2]}, "score": 80}`)
	clone := doc.Clone()

	clone.Object("met")["items"] = "compressed"
	clone["score"] = 10.0

	assert.Equal(t, []any{1.0, 2.0}, doc.Object("met")["items"])
	assert.Equal(t, 80.0, doc.Number("score"))
	assert.Nil(t, Document(nil).Clone())
}

func TestCollections(t *testing.T) {
	assert.Equal(t, []Collection{
		"display_info", "main_raw", "sleep_raw", "activity_raw", "readiness_raw", "sleep_time_raw",
	}, Collections())
	assert.True(t, SeriesSleepTime.Collection().Valid())
	assert.False(t, Collection("users").Valid())
}

func TestNewRawRecord(t *testing.T) {
	doc := Document{"id": "abc", "day": "2024-03-01"}
	rec := NewRawRecord("ana@example.com", doc)
	assert.Equal(t, RawRecord{Email: "ana@example.com", Day: "2024-03-01", SourceID: "abc", Payload: doc}, rec)
}

func TestSortByDayDesc_Stable(t *testing.T) {
	records := []DisplayRecord{
		{Day: "2024-03-01", Type: "a"},
		{Day: "2024-03-03"},
		{Day: "2024-03-01", Type: "b"},
		{Day: "2024-03-02"},
	}
	SortByDayDesc(records)

	var days, types []string
	for _, r := range records {
		days = append(days, r.Day)
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{"2024-03-03", "2024-03-02", "2024-03-01", "2024-03-01"}, days)
	assert.Equal(t, "a", types[2])
	assert.Equal(t, "b", types[3])
}

func TestParseDay(t *testing.T) {
	d, err := ParseDay(EpochDay)
	require.NoError(t, err)
	assert.Equal(t, int64(0), d.Unix())

	_, err = ParseDay("03/01/2024")
	assert.Error(t, err)
}
