// Package dataset holds batches of training examples.
//
// A DataSet stores one example per row: Features is [n, numFeatures] and
// Labels is [n, numLabels]. Classification labels are one-hot rows.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrEmpty is returned when an operation needs at least one example.
var ErrEmpty = errors.New("dataset: no examples")

// DataSet is a batch of examples.
type DataSet struct {
	Features *mat.Dense
	Labels   *mat.Dense
}

// New pairs features and labels. Both must have the same number of rows.
func New(features, labels *mat.Dense) (*DataSet, error) {
	if features == nil || labels == nil {
		return nil, errors.WithStack(ErrEmpty)
	}
	fr, _ := features.Dims()
	lr, _ := labels.Dims()
	if fr != lr {
		return nil, errors.Errorf("dataset: %d feature rows but %d label rows", fr, lr)
	}
	return &DataSet{Features: features, Labels: labels}, nil
}

// FromRows builds a DataSet from per-example feature and label slices.
func FromRows(features, labels [][]float64) (*DataSet, error) {
	if len(features) == 0 {
		return nil, errors.WithStack(ErrEmpty)
	}
	if len(features) != len(labels) {
		return nil, errors.Errorf("dataset: %d feature rows but %d label rows", len(features), len(labels))
	}
	f, err := stack(features)
	if err != nil {
		return nil, errors.Wrap(err, "features")
	}
	l, err := stack(labels)
	if err != nil {
		return nil, errors.Wrap(err, "labels")
	}
	return &DataSet{Features: f, Labels: l}, nil
}

func stack(rows [][]float64) (*mat.Dense, error) {
	width := len(rows[0])
	if width == 0 {
		return nil, errors.New("dataset: zero-width row")
	}
	data := make([]float64, 0, len(rows)*width)
	for i, r := range rows {
		if len(r) != width {
			return nil, errors.Errorf("dataset: row %d has %d columns, expected %d", i, len(r), width)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), width, data), nil
}

// NumExamples returns the number of rows.
func (d *DataSet) NumExamples() int {
	if d == nil || d.Features == nil {
		return 0
	}
	r, _ := d.Features.Dims()
	return r
}

// NumFeatures returns the feature width.
func (d *DataSet) NumFeatures() int {
	_, c := d.Features.Dims()
	return c
}

// NumLabels returns the label width.
func (d *DataSet) NumLabels() int {
	_, c := d.Labels.Dims()
	return c
}

// LabelCounts returns the column sums of Labels, i.e. the number of examples
// per class for one-hot labels.
func (d *DataSet) LabelCounts() []float64 {
	r, c := d.Labels.Dims()
	out := make([]float64, c)
	for i := 0; i < r; i++ {
		floats.Add(out, d.Labels.RawRowView(i))
	}
	return out
}

// Merge concatenates the rows of all sets into one. Every set must have the
// same feature and label widths.
func Merge(sets []*DataSet) (*DataSet, error) {
	if len(sets) == 0 {
		return nil, errors.WithStack(ErrEmpty)
	}
	nf, nl := sets[0].NumFeatures(), sets[0].NumLabels()
	var rows int
	for i, s := range sets {
		if s.NumFeatures() != nf || s.NumLabels() != nl {
			return nil, errors.Errorf("dataset: set %d is %dx%d, expected %dx%d",
				i, s.NumFeatures(), s.NumLabels(), nf, nl)
		}
		rows += s.NumExamples()
	}
	if len(sets) == 1 {
		return sets[0].Clone(), nil
	}

	f := mat.NewDense(rows, nf, nil)
	l := mat.NewDense(rows, nl, nil)
	at := 0
	for _, s := range sets {
		n := s.NumExamples()
		if n == 0 {
			continue
		}
		f.Slice(at, at+n, 0, nf).(*mat.Dense).Copy(s.Features)
		l.Slice(at, at+n, 0, nl).(*mat.Dense).Copy(s.Labels)
		at += n
	}
	return &DataSet{Features: f, Labels: l}, nil
}

// Clone returns a deep copy.
func (d *DataSet) Clone() *DataSet {
	return &DataSet{Features: mat.DenseCopyOf(d.Features), Labels: mat.DenseCopyOf(d.Labels)}
}

// Split deals the examples into n contiguous partitions whose sizes differ by
// at most one. Partitions may be empty when n exceeds the number of examples.
func (d *DataSet) Split(n int) ([][]*DataSet, error) {
	if n <= 0 {
		return nil, errors.Errorf("dataset: cannot split into %d partitions", n)
	}
	total := d.NumExamples()
	parts := make([][]*DataSet, n)
	at := 0
	for p := 0; p < n; p++ {
		size := total / n
		if p < total%n {
			size++
		}
		for i := at; i < at+size; i++ {
			parts[p] = append(parts[p], d.Row(i))
		}
		at += size
	}
	return parts, nil
}

// Row returns example i as a single-row DataSet. The result shares no memory
// with d.
func (d *DataSet) Row(i int) *DataSet {
	return &DataSet{
		Features: mat.NewDense(1, d.NumFeatures(), append([]float64(nil), d.Features.RawRowView(i)...)),
		Labels:   mat.NewDense(1, d.NumLabels(), append([]float64(nil), d.Labels.RawRowView(i)...)),
	}
}

// String implements fmt.Stringer.
func (d *DataSet) String() string {
	return fmt.Sprintf("DataSet{examples: %d, features: %d, labels: %d}",
		d.NumExamples(), d.NumFeatures(), d.NumLabels())
}

// ReadCSV reads examples where each record is f0,...,fk,label. With
// numLabels > 1 the label is a class index that is one-hot encoded; with
// numLabels == 1 it is used as a regression target.
func ReadCSV(r io.Reader, numLabels int) (*DataSet, error) {
	if numLabels <= 0 {
		return nil, errors.Errorf("dataset: numLabels must be positive, got %d", numLabels)
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var features, labels [][]float64
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "dataset: read csv")
		}
		if len(rec) < 2 {
			return nil, errors.Errorf("dataset: record %d has %d fields, need features and a label", line, len(rec))
		}
		row := make([]float64, len(rec)-1)
		for j, s := range rec[:len(rec)-1] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "dataset: record %d field %d", line, j)
			}
			row[j] = v
		}
		label, err := parseLabel(rec[len(rec)-1], numLabels)
		if err != nil {
			return nil, errors.Wrapf(err, "dataset: record %d", line)
		}
		features = append(features, row)
		labels = append(labels, label)
	}
	return FromRows(features, labels)
}

func parseLabel(s string, numLabels int) ([]float64, error) {
	if numLabels == 1 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return []float64{v}, nil
	}
	class, err := strconv.Atoi(s)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if class < 0 || class >= numLabels {
		return nil, errors.Errorf("class %d out of range [0, %d)", class, numLabels)
	}
	out := make([]float64, numLabels)
	out[class] = 1
	return out, nil
}
