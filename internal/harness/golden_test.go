package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Lifecycle(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "lifecycle.yaml"))
	require.NoError(t, err)

	// Regenerate with:
	//   go test ./internal/harness -run TestRunWithGolden_Lifecycle -update
	result := RunWithGolden(t, scenario)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithSnapshot_BackToBack(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "back_to_back.yaml"))
	require.NoError(t, err)

	result, snap, err := RunWithSnapshot(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, snap.Resources, 1)
	assert.Equal(t, "reserved", snap.Resources[0].Status)
	assert.Equal(t, "bob", snap.Resources[0].Occupant)
	assert.Equal(t, result.Names["second"], snap.Resources[0].Holder)

	require.Len(t, snap.Reservations, 2)
	assert.Equal(t, "completed", snap.Reservations[0].Status)
	assert.Equal(t, snap.Reservations[0].End, snap.Reservations[1].Start)
}
