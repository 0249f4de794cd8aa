package pipeline

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3Health-View/backend/internal/domain"
)

func ptr(f float64) *float64 { return &f }

func inflate(t *testing.T, encoded string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	require.NoError(t, err)
	text, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(text)
}

func TestCompressMET_TextFormat(t *testing.T) {
	encoded, err := CompressMET([]*float64{ptr(1), ptr(0.9), nil, ptr(12.25)})
	require.NoError(t, err)

	assert.Equal(t, "[1.0, 0.9, None, 12.25]", inflate(t, encoded))
}

func TestCompressMET_RoundTrip(t *testing.T) {
	items := make([]*float64, 1440)
	for i := range items {
		if i%100 == 0 {
			continue
		}
		items[i] = ptr(float64(i%7) * 0.3)
	}

	encoded, err := CompressMET(items)
	require.NoError(t, err)
	assert.Less(t, len(encoded), 1440*4)

	decoded, err := DecompressMET(encoded)
	require.NoError(t, err)
	require.Len(t, decoded, len(items))
	for i := range items {
		if items[i] == nil {
			assert.Nil(t, decoded[i])
			continue
		}
		assert.InDelta(t, *items[i], *decoded[i], 1e-12)
	}
}

func TestDecompressMET_Empty(t *testing.T) {
	encoded, err := CompressMET(nil)
	require.NoError(t, err)

	decoded, err := DecompressMET(encoded)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecompressMET_Invalid(t *testing.T) {
	_, err := DecompressMET("not base64!")
	assert.Error(t, err)

	_, err = DecompressMET(base64.StdEncoding.EncodeToString([]byte("plain")))
	assert.Error(t, err)
}

func TestCompressActivity(t *testing.T) {
	doc := domain.Document{
		"day":   "2024-03-01",
		"score": 80.0,
		"met":   map[string]any{"interval": 60.0, "items": []any{1.0, 1.5}},
	}

	out, err := CompressActivity(doc)
	require.NoError(t, err)

	encoded, ok := out.Object("met")["items"].(string)
	require.True(t, ok)
	assert.Equal(t, "[1.0, 1.5]", inflate(t, encoded))
	assert.Equal(t, 60.0, out.Object("met").Number("interval"))

	// The input document is left untouched.
	assert.Equal(t, []any{1.0, 1.5}, doc.Object("met")["items"])
}

func TestCompressActivity_NoMET(t *testing.T) {
	doc := domain.Document{"day": "2024-03-01"}
	out, err := CompressActivity(doc)
	require.NoError(t, err)
	assert.Equal(t, doc, out)
}
