package fingerprint

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/tongwu2020/mister-ed/core/tensor"
	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// On-disk layout of a fingerprint directory:
//
//	fingerprint_dx.bin     directions, tensor blob of shape [D, inputDim]
//	fingerprint_codes.bin  target codes, tensor blob of shape [C, D, C]
//	fingerprint_meta.json  profile and epsilon
//
// The tensor blobs use the self-describing codec from core/tensor, so
// shapes and element type are recoverable from the files alone.
const (
	directionsFile = "fingerprint_dx.bin"
	codesFile      = "fingerprint_codes.bin"
	metaFile       = "fingerprint_meta.json"
)

type metadata struct {
	Profile Profile `json:"profile"`
	Epsilon float64 `json:"epsilon"`
}

// WriteDirections serializes the directions blob, shape [D, inputDim].
func (f *Fingerprint) WriteDirections(w io.Writer) error {
	a := &tensor.NDArray{
		Shape: []int{f.NumDirections, f.InputDim},
		Data:  make([]float64, f.NumDirections*f.InputDim),
	}
	for i, d := range f.Directions {
		copy(a.Data[i*f.InputDim:(i+1)*f.InputDim], d.RawVector().Data)
	}
	return a.WriteTo(w)
}

// WriteCodes serializes the target-code blob, shape [C, D, C].
func (f *Fingerprint) WriteCodes(w io.Writer) error {
	return f.TargetCodes.WriteTo(w)
}

// Save persists the fingerprint under dir, creating it if needed.
func (f *Fingerprint) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "fingerprint: creating store directory")
	}

	write := func(name string, fn func(io.Writer) error) error {
		file, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return errors.Wrapf(err, "fingerprint: creating %s", name)
		}
		if err := fn(file); err != nil {
			file.Close()
			return err
		}
		return errors.Wrapf(file.Close(), "fingerprint: closing %s", name)
	}

	if err := write(directionsFile, f.WriteDirections); err != nil {
		return err
	}
	if err := write(codesFile, f.WriteCodes); err != nil {
		return err
	}

	meta, err := json.Marshal(metadata{Profile: f.Profile, Epsilon: f.Epsilon})
	if err != nil {
		return errors.Wrap(err, "fingerprint: encoding metadata")
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0o644); err != nil {
		return errors.Wrap(err, "fingerprint: writing metadata")
	}
	return nil
}

// Load restores a fingerprint saved by Save. The round trip preserves exact
// floating-point values.
func Load(dir string) (*Fingerprint, error) {
	dxFile, err := os.Open(filepath.Join(dir, directionsFile))
	if err != nil {
		return nil, errors.Wrap(err, "fingerprint: opening directions")
	}
	defer dxFile.Close()
	directions, err := tensor.ReadFrom(dxFile)
	if err != nil {
		return nil, err
	}

	cFile, err := os.Open(filepath.Join(dir, codesFile))
	if err != nil {
		return nil, errors.Wrap(err, "fingerprint: opening target codes")
	}
	defer cFile.Close()
	codes, err := tensor.ReadFrom(cFile)
	if err != nil {
		return nil, err
	}

	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return nil, errors.Wrap(err, "fingerprint: reading metadata")
	}
	var meta metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptStream, "fingerprint: decoding metadata")
	}

	return assemble(directions, codes, meta)
}

// assemble validates blob shapes against each other and rebuilds the
// Fingerprint.
func assemble(directions, codes *tensor.NDArray, meta metadata) (*Fingerprint, error) {
	if len(directions.Shape) != 2 {
		return nil, errors.NewShapeMismatchError("fingerprint.Load", []int{2}, []int{len(directions.Shape)})
	}
	if len(codes.Shape) != 3 {
		return nil, errors.NewShapeMismatchError("fingerprint.Load", []int{3}, []int{len(codes.Shape)})
	}
	numDirections, inputDim := directions.Shape[0], directions.Shape[1]
	numClasses := codes.Shape[0]
	if codes.Shape[1] != numDirections || codes.Shape[2] != numClasses {
		return nil, errors.NewShapeMismatchError("fingerprint.Load",
			[]int{numClasses, numDirections, numClasses}, codes.Shape)
	}
	if !meta.Profile.Valid() {
		return nil, errors.NewConfigurationError("fingerprint.Load", "unknown dataset profile", string(meta.Profile))
	}

	vecs := make([]*mat.VecDense, numDirections)
	for i := range vecs {
		data := make([]float64, inputDim)
		copy(data, directions.Data[i*inputDim:(i+1)*inputDim])
		vecs[i] = mat.NewVecDense(inputDim, data)
	}

	return &Fingerprint{
		Profile:       meta.Profile,
		Epsilon:       meta.Epsilon,
		NumDirections: numDirections,
		NumClasses:    numClasses,
		InputDim:      inputDim,
		Directions:    vecs,
		TargetCodes:   codes,
	}, nil
}
