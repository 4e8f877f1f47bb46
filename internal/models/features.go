package models

import (
	"encoding/json"
	"math"
)

// FeatureSet is the HRV feature vector computed for one ECG window.
// Values follow the NaN-as-missing convention internally: a NaN means the
// window did not contain enough clean data for that metric. JSON encoding
// renders every non-finite value as null so the sentinel never leaks into
// transport payloads.
type FeatureSet struct {
	MeanRR float64 // ms
	SDNN   float64 // ms
	RMSSD  float64 // ms
	PNN50  float64 // percent of successive differences > 50 ms
	CV     float64 // percent
	VLF    float64 // ms^2, informational
	LF     float64 // ms^2
	HF     float64 // ms^2
	LFHF   float64
	SD1    float64 // ms
	SD2    float64 // ms
	SI     float64 // Baevsky stress index
	MeanHR float64 // bpm
}

// FeatureNames lists the vector components in canonical order.
var FeatureNames = []string{
	"mean_rr", "sdnn", "rmssd", "pnn50", "cv",
	"vlf", "lf", "hf", "lf_hf",
	"sd1", "sd2", "si", "mean_hr",
}

// Vector returns the features in FeatureNames order.
func (f FeatureSet) Vector() []float64 {
	return []float64{
		f.MeanRR, f.SDNN, f.RMSSD, f.PNN50, f.CV,
		f.VLF, f.LF, f.HF, f.LFHF,
		f.SD1, f.SD2, f.SI, f.MeanHR,
	}
}

type featureSetJSON struct {
	MeanRR *float64 `json:"mean_rr"`
	SDNN   *float64 `json:"sdnn"`
	RMSSD  *float64 `json:"rmssd"`
	PNN50  *float64 `json:"pnn50"`
	CV     *float64 `json:"cv"`
	VLF    *float64 `json:"vlf"`
	LF     *float64 `json:"lf"`
	HF     *float64 `json:"hf"`
	LFHF   *float64 `json:"lf_hf"`
	SD1    *float64 `json:"sd1"`
	SD2    *float64 `json:"sd2"`
	SI     *float64 `json:"si"`
	MeanHR *float64 `json:"mean_hr"`
}

// MarshalJSON encodes the feature set with non-finite values as null.
func (f FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(featureSetJSON{
		MeanRR: finitePtr(f.MeanRR),
		SDNN:   finitePtr(f.SDNN),
		RMSSD:  finitePtr(f.RMSSD),
		PNN50:  finitePtr(f.PNN50),
		CV:     finitePtr(f.CV),
		VLF:    finitePtr(f.VLF),
		LF:     finitePtr(f.LF),
		HF:     finitePtr(f.HF),
		LFHF:   finitePtr(f.LFHF),
		SD1:    finitePtr(f.SD1),
		SD2:    finitePtr(f.SD2),
		SI:     finitePtr(f.SI),
		MeanHR: finitePtr(f.MeanHR),
	})
}

// UnmarshalJSON decodes null feature values back into NaN.
func (f *FeatureSet) UnmarshalJSON(data []byte) error {
	var aux featureSetJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	f.MeanRR = orNaN(aux.MeanRR)
	f.SDNN = orNaN(aux.SDNN)
	f.RMSSD = orNaN(aux.RMSSD)
	f.PNN50 = orNaN(aux.PNN50)
	f.CV = orNaN(aux.CV)
	f.VLF = orNaN(aux.VLF)
	f.LF = orNaN(aux.LF)
	f.HF = orNaN(aux.HF)
	f.LFHF = orNaN(aux.LFHF)
	f.SD1 = orNaN(aux.SD1)
	f.SD2 = orNaN(aux.SD2)
	f.SI = orNaN(aux.SI)
	f.MeanHR = orNaN(aux.MeanHR)
	return nil
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
