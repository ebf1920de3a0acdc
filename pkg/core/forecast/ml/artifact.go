package ml

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// treeYAML is the recursive wire format for one node of a persisted Tree.
type treeYAML struct {
	Leaf      bool       `yaml:"leaf"`
	Value     float64    `yaml:"value,omitempty"`
	Feature   int        `yaml:"feature,omitempty"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Left      *treeYAML  `yaml:"left,omitempty"`
	Right     *treeYAML  `yaml:"right,omitempty"`
}

// Artifact is the full provenance record for a trained model: feature
// order, label encoders, bias shift, and hyperparameters, matching
// SPEC_FULL.md's model_artifacts table (model_version, trained_at,
// metadata_yaml).
type Artifact struct {
	ModelVersion    string            `yaml:"model_version"`
	TrainedAt       time.Time         `yaml:"trained_at"`
	FeatureOrder    []string          `yaml:"feature_order"`
	DistrictCodes   map[string]int    `yaml:"district_codes"`
	ManagementCodes map[string]int    `yaml:"management_codes"`
	BiasShift       float64           `yaml:"bias_shift"`
	Hyperparameters Hyperparameters   `yaml:"hyperparameters"`
	Base            float64           `yaml:"base"`
	LearningRate    float64           `yaml:"learning_rate"`
	Trees           []*treeYAML       `yaml:"trees"`
}

// FeatureOrder names the §4.10 20-feature vector in the exact order Vector
// produces it, so a later re-load can validate its own feature engineering
// still agrees with the artifact.
var FeatureOrder = []string{
	"enrolment_current", "enrolment_lag1", "enrolment_lag2",
	"growth_rate_current", "growth_rate_lag1",
	"school_category", "total_teachers", "total_classrooms", "usable_classrooms",
	"classroom_gap", "teacher_gap", "risk_score",
	"teacher_deficit_ratio", "classroom_deficit_ratio",
	"district_code", "management_code",
	"rolling_mean_3y", "rolling_std_3y_capped",
	"teachers_per_student", "rooms_per_student",
}

// ToArtifact packages a trained model and its calibration as a persistable
// Artifact.
func ToArtifact(modelVersion string, tr TrainResult, biasShift float64, trainedAt time.Time) Artifact {
	trees := make([]*treeYAML, len(tr.Model.Trees))
	for i, t := range tr.Model.Trees {
		trees[i] = encodeNode(t.root)
	}
	return Artifact{
		ModelVersion:    modelVersion,
		TrainedAt:       trainedAt,
		FeatureOrder:    FeatureOrder,
		DistrictCodes:   tr.District.Codes(),
		ManagementCodes: tr.Management.Codes(),
		BiasShift:       biasShift,
		Hyperparameters: tr.Hyperparameters,
		Base:            tr.Model.Base,
		LearningRate:    tr.Model.LearningRate,
		Trees:           trees,
	}
}

func encodeNode(n *node) *treeYAML {
	if n == nil {
		return nil
	}
	out := &treeYAML{Leaf: n.isLeaf, Value: n.value, Feature: n.feature, Threshold: n.threshold}
	if !n.isLeaf {
		out.Left = encodeNode(n.left)
		out.Right = encodeNode(n.right)
	}
	return out
}

func decodeNode(y *treeYAML) *node {
	if y == nil {
		return nil
	}
	n := &node{isLeaf: y.Leaf, value: y.Value, feature: y.Feature, threshold: y.Threshold}
	if !y.Leaf {
		n.left = decodeNode(y.Left)
		n.right = decodeNode(y.Right)
	}
	return n
}

// Model rebuilds the runtime Model from a loaded Artifact.
func (a Artifact) Model() *Model {
	trees := make([]*Tree, len(a.Trees))
	for i, t := range a.Trees {
		trees[i] = &Tree{root: decodeNode(t)}
	}
	return &Model{Base: a.Base, Trees: trees, LearningRate: a.LearningRate}
}

// SaveArtifact writes the artifact as YAML to path via a write-to-temp,
// rename-into-place sequence so a concurrent reader never observes a
// partially written file.
func SaveArtifact(path string, a Artifact) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("ml: marshal artifact: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*.tmp")
	if err != nil {
		return fmt.Errorf("ml: create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ml: write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ml: close temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("ml: rename artifact into place: %w", err)
	}
	return nil
}

// LoadArtifact reads a previously persisted model from path.
func LoadArtifact(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("ml: read artifact: %w", err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("ml: unmarshal artifact: %w", err)
	}
	return a, nil
}
