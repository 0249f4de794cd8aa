package recommend

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Supported XGBoost objectives.
const (
	ObjectiveSoftprob = "multi:softprob"
	ObjectiveSoftmax  = "multi:softmax"
	ObjectiveLogistic = "binary:logistic"
)

// Model is a gradient boosted tree classifier loaded from XGBoost's JSON
// model format. It is immutable after loading and safe for concurrent use.
type Model struct {
	objective    string
	numGroups    int
	numFeature   int
	featureNames []string
	baseMargin   []float64
	trees        []tree
	treeGroup    []int
}

type tree struct {
	left        []int
	right       []int
	splitIndex  []int
	splitCond   []float64
	defaultLeft []bool
}

// leaf walks the tree for x. Missing values (NaN) follow the default branch.
// Leaf values are stored in splitCond.
func (t *tree) leaf(x []float64) float64 {
	n := 0
	for t.left[n] != -1 {
		v := x[t.splitIndex[n]]
		switch {
		case math.IsNaN(v):
			if t.defaultLeft[n] {
				n = t.left[n]
			} else {
				n = t.right[n]
			}
		case v < t.splitCond[n]:
			n = t.left[n]
		default:
			n = t.right[n]
		}
	}
	return t.splitCond[n]
}

type modelFile struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees    []treeFile `json:"trees"`
				TreeInfo []int      `json:"tree_info"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type treeFile struct {
	LeftChildren    []int     `json:"left_children"`
	RightChildren   []int     `json:"right_children"`
	SplitIndices    []int     `json:"split_indices"`
	SplitConditions []float64 `json:"split_conditions"`
	DefaultLeft     flags     `json:"default_left"`
}

// flags decodes default_left, written as 0/1 by recent XGBoost releases and
// as booleans by older ones.
type flags []bool

func (f *flags) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]bool, len(raw))
	for i, r := range raw {
		switch strings.TrimSpace(string(r)) {
		case "1", "true":
			out[i] = true
		case "0", "false":
		default:
			return fmt.Errorf("default_left[%d]: unexpected value %s", i, r)
		}
	}
	*f = out
	return nil
}

// LoadModelFile reads a model saved with Booster.save_model("*.json").
func LoadModelFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseModel(f)
}

// ParseModel decodes and validates an XGBoost JSON model.
func ParseModel(r io.Reader) (*Model, error) {
	var mf modelFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	l := mf.Learner

	if name := l.GradientBooster.Name; name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}

	m := &Model{objective: l.Objective.Name, featureNames: l.FeatureNames}
	switch m.objective {
	case ObjectiveSoftprob, ObjectiveSoftmax:
		n, err := strconv.Atoi(l.LearnerModelParam.NumClass)
		if err != nil || n < 2 {
			return nil, fmt.Errorf("invalid num_class %q for %s", l.LearnerModelParam.NumClass, m.objective)
		}
		m.numGroups = n
	case ObjectiveLogistic:
		m.numGroups = 1
	default:
		return nil, fmt.Errorf("unsupported objective %q", m.objective)
	}

	nf, err := strconv.Atoi(l.LearnerModelParam.NumFeature)
	if err != nil || nf < 1 {
		return nil, fmt.Errorf("invalid num_feature %q", l.LearnerModelParam.NumFeature)
	}
	m.numFeature = nf

	base, err := parseBaseScore(l.LearnerModelParam.BaseScore, m.numGroups)
	if err != nil {
		return nil, err
	}
	if m.objective == ObjectiveLogistic {
		for i, p := range base {
			if p <= 0 || p >= 1 {
				return nil, fmt.Errorf("base_score %v out of (0, 1) for %s", p, m.objective)
			}
			base[i] = math.Log(p / (1 - p))
		}
	}
	m.baseMargin = base

	trees := l.GradientBooster.Model.Trees
	info := l.GradientBooster.Model.TreeInfo
	if len(info) != len(trees) {
		return nil, fmt.Errorf("tree_info has %d entries for %d trees", len(info), len(trees))
	}
	for i, tf := range trees {
		if info[i] < 0 || info[i] >= m.numGroups {
			return nil, fmt.Errorf("tree %d: group %d out of range", i, info[i])
		}
		t, err := buildTree(tf, m.numFeature)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees = append(m.trees, t)
	}
	m.treeGroup = info

	return m, nil
}

func buildTree(tf treeFile, numFeature int) (tree, error) {
	n := len(tf.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(tf.RightChildren) != n || len(tf.SplitIndices) != n ||
		len(tf.SplitConditions) != n || len(tf.DefaultLeft) != n {
		return tree{}, fmt.Errorf("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		l, r := tf.LeftChildren[i], tf.RightChildren[i]
		if l == -1 {
			continue
		}
		// Children always follow their parent, which also guarantees the walk ends.
		if l <= i || l >= n || r <= i || r >= n {
			return tree{}, fmt.Errorf("node %d: invalid children %d/%d", i, l, r)
		}
		if idx := tf.SplitIndices[i]; idx < 0 || idx >= numFeature {
			return tree{}, fmt.Errorf("node %d: split index %d out of range", i, idx)
		}
	}
	return tree{
		left:        tf.LeftChildren,
		right:       tf.RightChildren,
		splitIndex:  tf.SplitIndices,
		splitCond:   tf.SplitConditions,
		defaultLeft: tf.DefaultLeft,
	}, nil
}

// parseBaseScore accepts "5E-1" and the bracketed vector form "[5E-1]".
func parseBaseScore(s string, groups int) ([]float64, error) {
	s = strings.TrimSpace(strings.Trim(strings.TrimSpace(s), "[]"))
	if s == "" {
		s = "0.5"
	}
	parts := strings.Split(s, ",")
	vals := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid base_score %q: %w", s, err)
		}
		vals = append(vals, v)
	}

	switch len(vals) {
	case groups:
		return vals, nil
	case 1:
		out := make([]float64, groups)
		for i := range out {
			out[i] = vals[0]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("base_score has %d values for %d outputs", len(vals), groups)
	}
}

// NumFeature is the width of the input rows the model expects.
func (m *Model) NumFeature() int { return m.numFeature }

// NumClass is the number of labels the model predicts.
func (m *Model) NumClass() int {
	if m.objective == ObjectiveLogistic {
		return 2
	}
	return m.numGroups
}

// FeatureNames returns the names recorded at training time, if any.
func (m *Model) FeatureNames() []string { return m.featureNames }

// Margins returns the raw per-output scores for x.
func (m *Model) Margins(x []float64) ([]float64, error) {
	if len(x) != m.numFeature {
		return nil, fmt.Errorf("got %d features, model expects %d", len(x), m.numFeature)
	}
	margins := make([]float64, m.numGroups)
	copy(margins, m.baseMargin)
	for i := range m.trees {
		margins[m.treeGroup[i]] += m.trees[i].leaf(x)
	}
	return margins, nil
}

// Predict returns the class id for x.
func (m *Model) Predict(x []float64) (int, error) {
	margins, err := m.Margins(x)
	if err != nil {
		return 0, err
	}

	if m.objective == ObjectiveLogistic {
		if margins[0] > 0 {
			return 1, nil
		}
		return 0, nil
	}

	best := 0
	for c := 1; c < len(margins); c++ {
		if margins[c] > margins[best] {
			best = c
		}
	}
	return best, nil
}
