package tensor

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/tongwu2020/mister-ed/pkg/errors"
)

// Binary layout, little-endian throughout:
//
//	magic   [4]byte  "NFPB"
//	version uint16   currently 1
//	kind    uint8    element kind, 1 = float64
//	rank    uint8
//	dims    [rank]uint32
//	data    [n]float64 IEEE-754 bits
//
// The header is self-describing: shape and element type are recoverable
// without out-of-band information, and the version field allows the layout
// to evolve.
const (
	codecVersion = 1
	kindFloat64  = 1
)

var magic = [4]byte{'N', 'F', 'P', 'B'}

// WriteTo serializes the array to w. The round trip through ReadFrom is
// bit-exact.
func (a *NDArray) WriteTo(w io.Writer) error {
	if len(a.Shape) > 255 {
		return errors.NewConfigurationError("tensor.WriteTo", "rank exceeds codec limit", len(a.Shape))
	}

	header := make([]byte, 0, 8+4*len(a.Shape))
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, codecVersion)
	header = append(header, kindFloat64, byte(len(a.Shape)))
	for _, d := range a.Shape {
		header = binary.LittleEndian.AppendUint32(header, uint32(d))
	}
	if _, err := w.Write(header); err != nil {
		return errors.Wrap(err, "tensor: writing header")
	}

	buf := make([]byte, 8*len(a.Data))
	for i, v := range a.Data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	if _, err := w.Write(buf); err != nil {
		return errors.Wrap(err, "tensor: writing payload")
	}
	return nil
}

// ReadFrom deserializes an array written by WriteTo.
func ReadFrom(r io.Reader) (*NDArray, error) {
	var head [8]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: reading header")
	}
	if head[0] != magic[0] || head[1] != magic[1] || head[2] != magic[2] || head[3] != magic[3] {
		return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: bad magic")
	}
	if v := binary.LittleEndian.Uint16(head[4:6]); v != codecVersion {
		return nil, errors.Newf("tensor: unsupported codec version %d", v)
	}
	if head[6] != kindFloat64 {
		return nil, errors.Newf("tensor: unsupported element kind %d", head[6])
	}

	rank := int(head[7])
	if rank == 0 {
		return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: zero rank")
	}
	dimBytes := make([]byte, 4*rank)
	if _, err := io.ReadFull(r, dimBytes); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: reading dims")
	}
	shape := make([]int, rank)
	n := 1
	for i := range shape {
		shape[i] = int(binary.LittleEndian.Uint32(dimBytes[4*i:]))
		if shape[i] <= 0 {
			return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: non-positive dimension")
		}
		n *= shape[i]
	}

	buf := make([]byte, 8*n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptStream, "tensor: reading payload")
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return &NDArray{Shape: shape, Data: data}, nil
}
