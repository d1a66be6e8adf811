package ml

import (
	"encoding/json"
	"errors"
	"log"

	"crosslag/internal/feature"
)

// Ensemble blends the logistic and boosted direction models into one
// score in [-1, 1]. The booster is optional; when its training fails
// (single-class data) the ensemble degrades to the logistic model.
type Ensemble struct {
	logreg *LogReg
	boost  *Boost
}

type ensembleArtifact struct {
	LogReg json.RawMessage `json:"logreg"`
	Boost  json.RawMessage `json:"boost,omitempty"`
}

// TrainEnsemble extracts a dataset from the frame and fits both
// models.
func TrainEnsemble(f *feature.Frame, horizon int) (*Ensemble, error) {
	ds, err := BuildDataset(f, horizon)
	if err != nil {
		return nil, err
	}
	logreg, err := TrainLogReg(ds, LogRegOptions{})
	if err != nil {
		return nil, err
	}
	boost, err := TrainBoost(ds, BoostOptions{})
	if err != nil {
		log.Printf("ml: boost training skipped: %v", err)
		boost = nil
	}
	return &Ensemble{logreg: logreg, boost: boost}, nil
}

// Score maps a sample to [-1, 1]: positive favors up, negative down.
func (e *Ensemble) Score(sample []float64) float64 {
	if e == nil || sample == nil {
		return 0
	}
	logRegScore := 2*e.logreg.PredictProb(sample) - 1
	if e.boost == nil {
		return logRegScore
	}
	boostScore := 2*e.boost.PredictProb(sample) - 1
	return 0.5*logRegScore + 0.5*boostScore
}

// Agreement is 1 when both models vote the same direction, lower when
// they disagree; used as a confidence input.
func (e *Ensemble) Agreement(sample []float64) float64 {
	if e == nil || e.boost == nil {
		return 0.7
	}
	lr := e.logreg.PredictProb(sample)
	bp := e.boost.PredictProb(sample)
	if (lr >= 0.5) == (bp >= 0.5) {
		return 1.0
	}
	return 0.4
}

func (e *Ensemble) MarshalBinary() ([]byte, error) {
	if e == nil || e.logreg == nil {
		return nil, errors.New("nil ensemble")
	}
	lr, err := e.logreg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	art := ensembleArtifact{LogReg: lr}
	if e.boost != nil {
		b, err := e.boost.MarshalBinary()
		if err != nil {
			return nil, err
		}
		art.Boost = b
	}
	return json.Marshal(art)
}

func UnmarshalEnsemble(blob []byte) (*Ensemble, error) {
	if len(blob) == 0 {
		return nil, errors.New("empty artifact")
	}
	var art ensembleArtifact
	if err := json.Unmarshal(blob, &art); err != nil {
		return nil, err
	}
	logreg, err := UnmarshalLogReg(art.LogReg)
	if err != nil {
		return nil, err
	}
	e := &Ensemble{logreg: logreg}
	if len(art.Boost) > 0 {
		boost, err := UnmarshalBoost(art.Boost)
		if err != nil {
			return nil, err
		}
		e.boost = boost
	}
	return e, nil
}
