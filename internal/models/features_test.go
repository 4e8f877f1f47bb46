package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestFeatureSetMarshalNonFiniteAsNull(t *testing.T) {
	fs := FeatureSet{
		MeanRR: 850,
		SDNN:   math.NaN(),
		RMSSD:  42.5,
		SI:     math.Inf(1),
	}

	data, err := json.Marshal(fs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload := string(data)

	if !strings.Contains(payload, `"sdnn":null`) {
		t.Fatalf("expected sdnn null, got %s", payload)
	}
	if !strings.Contains(payload, `"si":null`) {
		t.Fatalf("expected si null, got %s", payload)
	}
	if !strings.Contains(payload, `"mean_rr":850`) {
		t.Fatalf("expected mean_rr 850, got %s", payload)
	}
	if strings.Contains(payload, "NaN") {
		t.Fatalf("payload leaked NaN token: %s", payload)
	}
}

func TestFeatureSetUnmarshalNullAsNaN(t *testing.T) {
	var fs FeatureSet
	payload := `{"mean_rr":900,"sdnn":null,"rmssd":30,"pnn50":null,"cv":null,"vlf":null,"lf":null,"hf":null,"lf_hf":null,"sd1":null,"sd2":null,"si":null,"mean_hr":66.7}`
	if err := json.Unmarshal([]byte(payload), &fs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if fs.MeanRR != 900 {
		t.Fatalf("expected mean_rr 900, got %v", fs.MeanRR)
	}
	if !math.IsNaN(fs.SDNN) {
		t.Fatalf("expected sdnn NaN, got %v", fs.SDNN)
	}
	if fs.MeanHR != 66.7 {
		t.Fatalf("expected mean_hr 66.7, got %v", fs.MeanHR)
	}
}

func TestFeatureSetVectorOrder(t *testing.T) {
	fs := FeatureSet{MeanRR: 1, SDNN: 2, RMSSD: 3, PNN50: 4, CV: 5, VLF: 6, LF: 7, HF: 8, LFHF: 9, SD1: 10, SD2: 11, SI: 12, MeanHR: 13}
	vec := fs.Vector()

	if len(vec) != len(FeatureNames) {
		t.Fatalf("vector length %d does not match %d names", len(vec), len(FeatureNames))
	}
	for i, v := range vec {
		if v != float64(i+1) {
			t.Fatalf("component %s out of order: got %v", FeatureNames[i], v)
		}
	}
}
