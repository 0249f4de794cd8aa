package recommend

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// LabelEncoder maps class ids back to their labels. Classes are stored as
// {"classes": [...]} in class id order.
type LabelEncoder struct {
	classes []string
}

func NewLabelEncoder(classes []string) *LabelEncoder {
	return &LabelEncoder{classes: append([]string(nil), classes...)}
}

func LoadLabelEncoderFile(path string) (*LabelEncoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open label encoder: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseLabelEncoder(f)
}

// ParseLabelEncoder decodes the encoder. Numeric classes are kept in their
// JSON text form.
func ParseLabelEncoder(r io.Reader) (*LabelEncoder, error) {
	var file struct {
		Classes []json.RawMessage `json:"classes"`
	}
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode label encoder: %w", err)
	}
	if len(file.Classes) == 0 {
		return nil, fmt.Errorf("label encoder has no classes")
	}

	classes := make([]string, len(file.Classes))
	for i, raw := range file.Classes {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			classes[i] = s
			continue
		}
		classes[i] = strings.TrimSpace(string(raw))
	}
	return NewLabelEncoder(classes), nil
}

// InverseTransform returns the label of class id.
func (e *LabelEncoder) InverseTransform(id int) (string, error) {
	if id < 0 || id >= len(e.classes) {
		return "", fmt.Errorf("class id %d out of range [0, %d)", id, len(e.classes))
	}
	return e.classes[id], nil
}

func (e *LabelEncoder) Classes() []string {
	return append([]string(nil), e.classes...)
}
