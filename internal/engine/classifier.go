package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ClassifierInputs are the five scalars the state classifier consumes.
// SDNN is accepted for interface symmetry; the default rule pack assigns
// it no score weight.
type ClassifierInputs struct {
	SI     float64
	RMSSD  float64
	LFHF   float64
	MeanHR float64
	SDNN   float64
}

// Classification pairs the autonomic state label with its display color
// and the additive score that produced them.
type Classification struct {
	Score int    `json:"score"`
	State string `json:"state"`
	Color string `json:"color"`
}

// Condition is one bracket test. Conditions run in order; the first whose
// comparison holds contributes its score and ends the rule.
type Condition struct {
	When  string  `yaml:"when"` // "lt" or "gt"
	Value float64 `yaml:"value"`
	Score int     `yaml:"score"`
}

// FeatureRule scores a single feature through ordered conditions, falling
// back to Default when none match.
type FeatureRule struct {
	Feature    string      `yaml:"feature"`
	Conditions []Condition `yaml:"conditions"`
	Default    int         `yaml:"default"`
}

// StateBand maps a score ceiling to a label and color. Bands are checked
// low to high; the first band whose ceiling covers the total wins. The
// final band carries no ceiling and catches everything above.
type StateBand struct {
	MaxScore *int   `yaml:"max_score,omitempty"`
	State    string `yaml:"state"`
	Color    string `yaml:"color"`
}

// RulePack is the YAML root for classifier configuration.
type RulePack struct {
	Rules  []FeatureRule `yaml:"rules"`
	States []StateBand   `yaml:"states"`
}

// Classifier maps a feature vector onto a discrete autonomic state via an
// additive threshold score.
type Classifier struct {
	pack   RulePack
	logger *slog.Logger
}

// NewDefaultClassifier builds a classifier carrying the built-in rule pack.
func NewDefaultClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{pack: DefaultRulePack(), logger: logger}
}

// NewClassifier loads a rule pack from path. An empty or missing path
// falls back to the built-in defaults; a present but invalid pack is an
// error rather than a silent fallback.
func NewClassifier(path string, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return NewDefaultClassifier(logger), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("classifier rule pack missing, using defaults", slog.String("path", path))
			return NewDefaultClassifier(logger), nil
		}
		return nil, err
	}

	var pack RulePack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}
	if err := validatePack(pack); err != nil {
		return nil, fmt.Errorf("rule pack %s: %w", path, err)
	}

	return &Classifier{pack: pack, logger: logger}, nil
}

// Classify scores the inputs through every rule and resolves the state
// band. A NaN input fails every condition and contributes zero, so one
// missing modality cannot dominate the outcome.
func (c *Classifier) Classify(in ClassifierInputs) Classification {
	total := 0
	for _, rule := range c.pack.Rules {
		total += scoreRule(rule, featureValue(rule.Feature, in))
	}

	for _, band := range c.pack.States {
		if band.MaxScore == nil || total <= *band.MaxScore {
			return Classification{Score: total, State: band.State, Color: band.Color}
		}
	}
	// validatePack guarantees an unbounded final band.
	return Classification{Score: total}
}

func scoreRule(rule FeatureRule, v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	for _, cond := range rule.Conditions {
		switch cond.When {
		case "lt":
			if v < cond.Value {
				return cond.Score
			}
		case "gt":
			if v > cond.Value {
				return cond.Score
			}
		}
	}
	return rule.Default
}

func featureValue(name string, in ClassifierInputs) float64 {
	switch name {
	case "si":
		return in.SI
	case "rmssd":
		return in.RMSSD
	case "lf_hf":
		return in.LFHF
	case "mean_hr":
		return in.MeanHR
	case "sdnn":
		return in.SDNN
	}
	return math.NaN()
}

func validatePack(pack RulePack) error {
	if len(pack.Rules) == 0 {
		return fmt.Errorf("no rules defined")
	}
	for _, rule := range pack.Rules {
		switch rule.Feature {
		case "si", "rmssd", "lf_hf", "mean_hr", "sdnn":
		default:
			return fmt.Errorf("unknown feature %q", rule.Feature)
		}
		for _, cond := range rule.Conditions {
			if cond.When != "lt" && cond.When != "gt" {
				return fmt.Errorf("rule %s: unsupported comparison %q", rule.Feature, cond.When)
			}
		}
	}
	if len(pack.States) == 0 {
		return fmt.Errorf("no state bands defined")
	}
	for _, band := range pack.States[:len(pack.States)-1] {
		if band.MaxScore == nil {
			return fmt.Errorf("state band %q before the last must carry max_score", band.State)
		}
	}
	if pack.States[len(pack.States)-1].MaxScore != nil {
		return fmt.Errorf("last state band must be unbounded")
	}
	return nil
}

// DefaultRulePack returns the built-in scoring table.
func DefaultRulePack() RulePack {
	return RulePack{
		Rules: []FeatureRule{
			{
				Feature: "si",
				Conditions: []Condition{
					{When: "lt", Value: 10, Score: -2},
					{When: "lt", Value: 30, Score: 0},
					{When: "lt", Value: 70, Score: 1},
				},
				Default: 2,
			},
			{
				Feature: "rmssd",
				Conditions: []Condition{
					{When: "gt", Value: 35, Score: -2},
					{When: "gt", Value: 20, Score: -1},
					{When: "lt", Value: 15, Score: 2},
				},
				Default: 1,
			},
			{
				Feature: "lf_hf",
				Conditions: []Condition{
					{When: "lt", Value: 0.8, Score: -2},
					{When: "lt", Value: 1.5, Score: 0},
					{When: "lt", Value: 3.0, Score: 1},
				},
				Default: 2,
			},
			{
				Feature: "mean_hr",
				Conditions: []Condition{
					{When: "lt", Value: 60, Score: -1},
					{When: "gt", Value: 80, Score: 1},
				},
				Default: 0,
			},
		},
		States: []StateBand{
			{MaxScore: intPtr(-3), State: "Deep Sleep/Recovery", Color: "#1a56db"},
			{MaxScore: intPtr(-1), State: "Rest", Color: "#16a34a"},
			{MaxScore: intPtr(1), State: "Mild Stress", Color: "#d97706"},
			{State: "High Stress", Color: "#dc2626"},
		},
	}
}

func intPtr(v int) *int { return &v }
