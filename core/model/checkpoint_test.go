package model

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointRoundTrip(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)

	params := [][]float64{{1.5, -2.25}, {0.0078125}}
	require.NoError(t, store.Save("nfp-run", "linear", 3, params, 3))

	snap, err := store.Load("nfp-run", "linear", 3)
	require.NoError(t, err)
	assert.Equal(t, params, snap.Params)
	assert.Equal(t, 3, snap.Epoch)
}

func TestCheckpointRetentionKeepsMostRecent(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)

	for epoch := 0; epoch < 7; epoch++ {
		params := [][]float64{{float64(epoch)}}
		require.NoError(t, store.Save("nfp-run", "linear", epoch, params, 3))
	}

	epochs, err := store.Epochs("nfp-run", "linear")
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, epochs)

	// Pruned snapshots must be gone, retained ones loadable.
	_, err = store.Load("nfp-run", "linear", 0)
	assert.Error(t, err)
	snap, err := store.Load("nfp-run", "linear", 6)
	require.NoError(t, err)
	assert.Equal(t, 6.0, snap.Params[0][0])
}

func TestCheckpointRetentionIsPerModel(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save("run", "a", 0, [][]float64{{1}}, 1))
	require.NoError(t, store.Save("run", "b", 0, [][]float64{{2}}, 1))
	require.NoError(t, store.Save("run", "a", 1, [][]float64{{3}}, 1))

	epochsA, err := store.Epochs("run", "a")
	require.NoError(t, err)
	epochsB, err := store.Epochs("run", "b")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, epochsA)
	assert.Equal(t, []int{0}, epochsB)
}

func TestSaveRejectsNonPositiveRetention(t *testing.T) {
	store, err := NewCheckpointStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save("run", "m", 0, nil, 0))
}

func TestRestore(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	net := NewLinearClassifier(2, 2, rng)

	saved := make([][]float64, 0, 2)
	for _, p := range net.Params() {
		saved = append(saved, append([]float64(nil), p.Data...))
	}
	snap := &Snapshot{Run: "run", Model: "linear", Epoch: 0, Params: saved}

	// Drift the live parameters, then restore.
	net.Params()[0].Data[0] += 10
	require.NoError(t, Restore(net, snap))
	assert.Equal(t, saved[0], net.Params()[0].Data)

	bad := &Snapshot{Params: [][]float64{{1}}}
	assert.Error(t, Restore(net, bad))
}
