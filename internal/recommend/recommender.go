package recommend

import (
	"fmt"

	"github.com/3Health-View/backend/internal/domain"
)

// Recommender attaches a model recommendation to display records. It is
// built once at startup and shared read-only.
type Recommender struct {
	model   *Model
	encoder *LabelEncoder
}

// New checks that the model and encoder fit each other and the feature row.
func New(model *Model, encoder *LabelEncoder) (*Recommender, error) {
	if model.NumFeature() != len(FeatureNames) {
		return nil, fmt.Errorf("model expects %d features, have %d", model.NumFeature(), len(FeatureNames))
	}
	if names := model.FeatureNames(); len(names) > 0 {
		for i, name := range names {
			if name != FeatureNames[i] {
				return nil, fmt.Errorf("model feature %d is %q, want %q", i, name, FeatureNames[i])
			}
		}
	}
	if n := len(encoder.Classes()); n < model.NumClass() {
		return nil, fmt.Errorf("label encoder has %d classes, model predicts %d", n, model.NumClass())
	}
	return &Recommender{model: model, encoder: encoder}, nil
}

// LoadFiles builds a Recommender from a local model and label encoder.
func LoadFiles(modelPath, encoderPath string) (*Recommender, error) {
	model, err := LoadModelFile(modelPath)
	if err != nil {
		return nil, err
	}
	encoder, err := LoadLabelEncoderFile(encoderPath)
	if err != nil {
		return nil, err
	}
	return New(model, encoder)
}

// Recommend sets Recommendation on every record in place.
func (r *Recommender) Recommend(records []domain.DisplayRecord) error {
	for i := range records {
		id, err := r.model.Predict(Features(records[i]))
		if err != nil {
			return fmt.Errorf("predict %s: %w", records[i].Day, err)
		}
		label, err := r.encoder.InverseTransform(id)
		if err != nil {
			return fmt.Errorf("decode prediction for %s: %w", records[i].Day, err)
		}
		records[i].Recommendation = label
	}
	return nil
}

// Classes returns the labels the recommender can produce.
func (r *Recommender) Classes() []string {
	return r.encoder.Classes()
}
