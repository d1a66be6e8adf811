package ml

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/rmera/boo"
	"github.com/rmera/boo/utils"
)

// BoostOptions tunes the gradient-boosted direction model.
type BoostOptions struct {
	Rounds       int
	LearningRate float64
	MaxDepth     int
}

func DefaultBoostOptions() BoostOptions {
	return BoostOptions{
		Rounds:       40,
		LearningRate: 0.08,
		MaxDepth:     4,
	}
}

type boostArtifact struct {
	FeatureNames []string `json:"feature_names"`
	ModelText    string   `json:"model_text"`
}

// Boost is a gradient-boosted tree classifier over the shared feature
// vector, predicting the up/down direction class.
type Boost struct {
	featureNames []string
	model        *boo.MultiClass
}

// TrainBoost fits the booster. Training fails when the dataset holds
// only one class; callers fall back to the logistic model alone.
func TrainBoost(ds *Dataset, opts BoostOptions) (*Boost, error) {
	if ds == nil || len(ds.Samples) == 0 || len(ds.Samples) != len(ds.Labels) {
		return nil, errors.New("invalid training dataset")
	}
	if len(ds.Samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}

	intLabels := make([]int, len(ds.Labels))
	classes := make(map[int]struct{}, 2)
	for i, v := range ds.Labels {
		label := 0
		if v >= 0.5 {
			label = 1
		}
		intLabels[i] = label
		classes[label] = struct{}{}
	}
	if len(classes) < 2 {
		return nil, errors.New("boosting requires both classes in the dataset")
	}

	def := DefaultBoostOptions()
	if opts.Rounds <= 0 {
		opts.Rounds = def.Rounds
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = def.MaxDepth
	}

	names := FeatureNames
	if len(names) != len(ds.Samples[0]) {
		names = make([]string, len(ds.Samples[0]))
		for i := range names {
			names[i] = "f"
		}
	}

	o := boo.DefaultXOptions()
	o.Rounds = opts.Rounds
	o.LearningRate = opts.LearningRate
	o.MaxDepth = opts.MaxDepth
	o.Verbose = false
	o.EarlyStop = 0

	model := boo.NewMultiClass(&utils.DataBunch{
		Data:   ds.Samples,
		Labels: intLabels,
		Keys:   names,
	}, o)
	if model == nil {
		return nil, errors.New("boost training failed")
	}
	return &Boost{featureNames: append([]string(nil), names...), model: model}, nil
}

// PredictProb returns P(price up) for one sample, neutral 0.5 when the
// model is unavailable.
func (m *Boost) PredictProb(sample []float64) float64 {
	if m == nil || m.model == nil {
		return 0.5
	}
	probs := m.model.PredictSingle(sample)
	labels := m.model.ClassLabels()
	for i := range labels {
		if labels[i] == 1 {
			return clampProb(probs[i])
		}
	}
	if len(probs) == 0 {
		return 0.5
	}
	return clampProb(probs[len(probs)-1])
}

func (m *Boost) MarshalBinary() ([]byte, error) {
	if m == nil || m.model == nil {
		return nil, errors.New("nil model")
	}
	var buf bytes.Buffer
	if err := boo.JSONMultiClass(m.model, "softmax", &buf); err != nil {
		return nil, err
	}
	return json.Marshal(boostArtifact{
		FeatureNames: m.featureNames,
		ModelText:    buf.String(),
	})
}

func UnmarshalBoost(blob []byte) (*Boost, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a boostArtifact
	if err := json.Unmarshal(blob, &a); err != nil {
		return nil, err
	}
	model, err := boo.UnJSONMultiClass(bufio.NewReader(bytes.NewReader([]byte(a.ModelText))))
	if err != nil {
		return nil, err
	}
	return &Boost{featureNames: append([]string(nil), a.FeatureNames...), model: model}, nil
}

func clampProb(v float64) float64 {
	if math.IsNaN(v) {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
