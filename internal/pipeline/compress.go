package pipeline

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/3Health-View/backend/internal/domain"
)

// CompressMET encodes a per-minute MET series as text ("[1.0, 0.9, None]"),
// deflates it with zlib and returns the standard base64 encoding.
func CompressMET(items []*float64) (string, error) {
	var text strings.Builder
	text.WriteByte('[')
	for i, v := range items {
		if i > 0 {
			text.WriteString(", ")
		}
		text.WriteString(formatSample(v))
	}
	text.WriteByte(']')

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write([]byte(text.String())); err != nil {
		return "", fmt.Errorf("deflate met items: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("deflate met items: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressMET reverses CompressMET.
func DecompressMET(encoded string) ([]*float64, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode met items: %w", err)
	}
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("inflate met items: %w", err)
	}
	defer func() { _ = zr.Close() }()

	text, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate met items: %w", err)
	}

	body := strings.TrimSpace(string(text))
	if !strings.HasPrefix(body, "[") || !strings.HasSuffix(body, "]") {
		return nil, fmt.Errorf("met items: malformed list %q", body)
	}
	body = strings.TrimSpace(body[1 : len(body)-1])
	if body == "" {
		return []*float64{}, nil
	}

	parts := strings.Split(body, ",")
	items := make([]*float64, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "None" {
			continue
		}
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("met items: sample %d: %w", i, err)
		}
		items[i] = &f
	}
	return items, nil
}

// CompressActivity returns a copy of an activity document with met.items
// replaced by its compressed form. Documents without a met series are
// returned unchanged.
func CompressActivity(doc domain.Document) (domain.Document, error) {
	if _, ok := doc.Object("met")["items"].([]any); !ok {
		return doc, nil
	}

	out := doc.Clone()
	met := out.Object("met")
	encoded, err := CompressMET(met.Floats("items"))
	if err != nil {
		return nil, fmt.Errorf("compress activity %s: %w", doc.Day(), err)
	}
	met["items"] = encoded
	return out, nil
}

// formatSample writes floats with a decimal point and nulls as None.
func formatSample(v *float64) string {
	if v == nil {
		return "None"
	}
	s := strconv.FormatFloat(*v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !strings.Contains(s, "Inf") && !strings.Contains(s, "NaN") {
		s += ".0"
	}
	return s
}
