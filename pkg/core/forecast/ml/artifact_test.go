package ml

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadArtifactRoundTrips(t *testing.T) {
	district := NewLabelEncoder()
	district.Encode("Pune")
	management := NewLabelEncoder()
	management.Encode("Government")

	tr := TrainResult{
		Model:           &Model{Base: 0.02, LearningRate: 0.03, Trees: []*Tree{{root: &node{isLeaf: true, value: 0.01}}}},
		TrainTargetMean: 0.05,
		District:        district,
		Management:      management,
		Hyperparameters: DefaultHyperparameters(),
	}
	artifact := ToArtifact("v1-test", tr, 0.01, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, SaveArtifact(path, artifact))

	loaded, err := LoadArtifact(path)
	require.NoError(t, err)

	assert.Equal(t, artifact.ModelVersion, loaded.ModelVersion)
	assert.Equal(t, artifact.BiasShift, loaded.BiasShift)
	if diff := cmp.Diff(artifact.DistrictCodes, loaded.DistrictCodes); diff != "" {
		t.Errorf("district codes changed across round-trip (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(artifact.Hyperparameters, loaded.Hyperparameters); diff != "" {
		t.Errorf("hyperparameters changed across round-trip (-want +got):\n%s", diff)
	}

	model := loaded.Model()
	assert.InDelta(t, 0.02+0.03*0.01, model.Predict(make([]float64, featureCount)), 1e-9)
}
