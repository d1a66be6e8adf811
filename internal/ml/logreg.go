package ml

import (
	"encoding/json"
	"errors"
	"math"
)

// LogRegOptions tunes gradient-descent training for the logistic
// model.
type LogRegOptions struct {
	LearningRate float64
	Epochs       int
	L2           float64
}

func DefaultLogRegOptions() LogRegOptions {
	return LogRegOptions{
		LearningRate: 0.05,
		Epochs:       600,
		L2:           0.0001,
	}
}

type logRegArtifact struct {
	FeatureNames []string  `json:"feature_names"`
	Weights      []float64 `json:"weights"`
	Bias         float64   `json:"bias"`
	Means        []float64 `json:"means"`
	Stds         []float64 `json:"stds"`
}

// LogReg is a standardized logistic-regression direction model.
type LogReg struct {
	artifact logRegArtifact
}

// TrainLogReg fits the model on a labeled dataset with z-score
// feature standardization baked into the artifact.
func TrainLogReg(ds *Dataset, opts LogRegOptions) (*LogReg, error) {
	if ds == nil || len(ds.Samples) == 0 || len(ds.Samples) != len(ds.Labels) {
		return nil, errors.New("invalid training dataset")
	}
	featCount := len(ds.Samples[0])
	if featCount == 0 {
		return nil, errors.New("empty feature vectors")
	}
	def := DefaultLogRegOptions()
	if opts.LearningRate <= 0 {
		opts.LearningRate = def.LearningRate
	}
	if opts.Epochs <= 0 {
		opts.Epochs = def.Epochs
	}
	if opts.L2 < 0 {
		opts.L2 = def.L2
	}

	means := make([]float64, featCount)
	stds := make([]float64, featCount)
	for j := 0; j < featCount; j++ {
		for i := range ds.Samples {
			means[j] += ds.Samples[i][j]
		}
		means[j] /= float64(len(ds.Samples))
		for i := range ds.Samples {
			d := ds.Samples[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / float64(len(ds.Samples)))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}

	weights := make([]float64, featCount)
	bias := 0.0
	n := float64(len(ds.Samples))
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grads := make([]float64, featCount)
		gradBias := 0.0
		for i := range ds.Samples {
			x := standardize(ds.Samples[i], means, stds)
			p := sigmoid(dot(weights, x) + bias)
			residual := p - ds.Labels[i]
			for j := range grads {
				grads[j] += residual * x[j]
			}
			gradBias += residual
		}
		for j := range weights {
			weights[j] -= opts.LearningRate * (grads[j]/n + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * (gradBias / n)
	}

	names := FeatureNames
	if len(names) != featCount {
		names = nil
	}
	return &LogReg{artifact: logRegArtifact{
		FeatureNames: names,
		Weights:      weights,
		Bias:         bias,
		Means:        means,
		Stds:         stds,
	}}, nil
}

// PredictProb returns P(price up) for one sample; an incompatible
// sample yields the neutral 0.5.
func (m *LogReg) PredictProb(sample []float64) float64 {
	if m == nil || len(sample) != len(m.artifact.Weights) {
		return 0.5
	}
	x := standardize(sample, m.artifact.Means, m.artifact.Stds)
	return sigmoid(dot(m.artifact.Weights, x) + m.artifact.Bias)
}

func (m *LogReg) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, errors.New("nil model")
	}
	return json.Marshal(m.artifact)
}

func UnmarshalLogReg(data []byte) (*LogReg, error) {
	if len(data) == 0 {
		return nil, errors.New("empty artifact")
	}
	var a logRegArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	if len(a.Weights) == 0 || len(a.Weights) != len(a.Means) || len(a.Weights) != len(a.Stds) {
		return nil, errors.New("invalid artifact")
	}
	return &LogReg{artifact: a}, nil
}

func sigmoid(x float64) float64 {
	if x > 35 {
		return 1
	}
	if x < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}

func dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func standardize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}
