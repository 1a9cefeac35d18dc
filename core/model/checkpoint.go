package model

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Snapshot is one persisted set of network parameters.
type Snapshot struct {
	Run    string
	Model  string
	Epoch  int
	Params [][]float64
}

// CheckpointStore persists parameter snapshots under a directory, keeping
// only a bounded number of the most recent snapshots per (run, model) pair.
// Snapshots are process-local artifacts, so gob is the encoding.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore creates the directory if needed and returns a store.
func NewCheckpointStore(dir string) (*CheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "checkpoint: creating store directory")
	}
	return &CheckpointStore{dir: dir}, nil
}

func (cs *CheckpointStore) filename(run, model string, epoch int) string {
	return filepath.Join(cs.dir, fmt.Sprintf("%s.%s.epoch_%06d.ckpt", run, model, epoch))
}

// Save writes a snapshot for the given epoch and prunes the oldest snapshots
// of the same (run, model) pair beyond retain. retain < 1 is a configuration
// error.
func (cs *CheckpointStore) Save(run, model string, epoch int, params [][]float64, retain int) error {
	if retain < 1 {
		return errors.NewConfigurationError("CheckpointStore.Save", "retain must be at least 1", retain)
	}

	snap := Snapshot{Run: run, Model: model, Epoch: epoch, Params: params}
	file, err := os.Create(cs.filename(run, model, epoch))
	if err != nil {
		return errors.Wrap(err, "checkpoint: creating snapshot file")
	}
	if err := gob.NewEncoder(file).Encode(&snap); err != nil {
		file.Close()
		return errors.Wrap(err, "checkpoint: encoding snapshot")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "checkpoint: closing snapshot file")
	}

	return cs.prune(run, model, retain)
}

// Epochs returns the epochs with stored snapshots for (run, model), oldest
// first.
func (cs *CheckpointStore) Epochs(run, model string) ([]int, error) {
	entries, err := os.ReadDir(cs.dir)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: listing store directory")
	}

	prefix := fmt.Sprintf("%s.%s.epoch_", run, model)
	var epochs []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".ckpt") {
			continue
		}
		var epoch int
		numPart := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".ckpt")
		if _, err := fmt.Sscanf(numPart, "%d", &epoch); err != nil {
			continue
		}
		epochs = append(epochs, epoch)
	}
	sort.Ints(epochs)
	return epochs, nil
}

// Load reads the snapshot stored for the given epoch.
func (cs *CheckpointStore) Load(run, model string, epoch int) (*Snapshot, error) {
	file, err := os.Open(cs.filename(run, model, epoch))
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: opening snapshot file")
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptStream, "checkpoint: decoding snapshot")
	}
	return &snap, nil
}

// Restore copies a snapshot's parameters into net. Shapes must match.
func Restore(net Trainable, snap *Snapshot) error {
	params := net.Params()
	if len(params) != len(snap.Params) {
		return errors.NewDimensionError("checkpoint.Restore", len(params), len(snap.Params), 0)
	}
	for i, p := range params {
		if len(p.Data) != len(snap.Params[i]) {
			return errors.NewDimensionError("checkpoint.Restore", len(p.Data), len(snap.Params[i]), 1)
		}
		copy(p.Data, snap.Params[i])
	}
	return nil
}

func (cs *CheckpointStore) prune(run, model string, retain int) error {
	epochs, err := cs.Epochs(run, model)
	if err != nil {
		return err
	}
	for len(epochs) > retain {
		if err := os.Remove(cs.filename(run, model, epochs[0])); err != nil {
			return errors.Wrap(err, "checkpoint: pruning old snapshot")
		}
		epochs = epochs[1:]
	}
	return nil
}
