package dataset

import (
	"log"
	"math/rand"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PreprocessOptions controls splitting, scaling and label encoding.
type PreprocessOptions struct {
	// ValidationFraction of the labeled rows is held out for validation.
	ValidationFraction float64
	// SoftHigh and SoftLow replace 1 and 0 in the training targets.
	SoftHigh float64
	SoftLow  float64
	Seed     int64
}

// Prepared is the preprocessed dataset handed to the trainer.
type Prepared struct {
	Train      *Set
	Validation *Set
	Test       *mat.Dense
	Classes    []string
	Scaler     Scaler
	// Source is stamped by the caller before SaveCache.
	Source Provenance
}

// Provenance records the inputs a Prepared dataset was built from.
type Provenance struct {
	TrainPath          string
	TestPath           string
	LabelColumn        int
	HasHeader          bool
	ValidationFraction float64
	SoftHigh           float64
	SoftLow            float64
	Seed               int64
}

// ErrWidthMismatch indicates rows with differing feature counts.
var ErrWidthMismatch = errors.New("dataset: feature width mismatch")

// Scaler standardizes feature columns with statistics fitted on training rows.
type Scaler struct {
	Mean []float64
	Std  []float64
}

// FitScaler computes population mean and standard deviation per column.
func FitScaler(rows []Row) (Scaler, error) {
	if len(rows) == 0 {
		return Scaler{}, errors.New("dataset: cannot fit scaler on zero rows")
	}
	d := len(rows[0].Values)
	for i, row := range rows {
		if len(row.Values) != d {
			return Scaler{}, errors.Wrapf(ErrWidthMismatch, "row %d has %d features, row 0 has %d", i, len(row.Values), d)
		}
	}
	s := Scaler{Mean: make([]float64, d), Std: make([]float64, d)}
	col := make([]float64, len(rows))
	for j := 0; j < d; j++ {
		for i, row := range rows {
			col[i] = row.Values[j]
		}
		s.Mean[j], s.Std[j] = stat.PopMeanStdDev(col, nil)
	}
	return s, nil
}

// Transform standardizes rows and appends the constant bias column.
func (s Scaler) Transform(rows []Row) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.New("dataset: no rows to transform")
	}
	d := len(s.Mean)
	x := mat.NewDense(len(rows), d+1, nil)
	for i, row := range rows {
		if len(row.Values) != d {
			return nil, errors.Wrapf(ErrWidthMismatch, "row %d has %d features, scaler expects %d", i, len(row.Values), d)
		}
		dst := x.RawRowView(i)
		for j, v := range row.Values {
			v -= s.Mean[j]
			if s.Std[j] > 0 {
				v /= s.Std[j]
			}
			dst[j] = v
		}
		dst[d] = 1
	}
	return x, nil
}

// Preprocess shuffles and splits the labeled rows, standardizes every split
// with the training statistics and one-hot encodes the labels. Training
// targets use the soft values; validation targets stay 1/0.
func Preprocess(labeled, unlabeled []Row, opts PreprocessOptions) (*Prepared, error) {
	if len(labeled) < 2 {
		return nil, errors.Errorf("dataset: need at least 2 labeled rows, got %d", len(labeled))
	}
	if opts.ValidationFraction < 0 || opts.ValidationFraction >= 1 {
		return nil, errors.Errorf("dataset: validation fraction %.3f out of [0,1)", opts.ValidationFraction)
	}

	rows := append([]Row(nil), labeled...)
	rng := rand.New(rand.NewSource(opts.Seed))
	rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })

	cut := int(float64(len(rows)) * (1 - opts.ValidationFraction))
	trainRows, validRows := rows[:cut], rows[cut:]

	scaler, err := FitScaler(trainRows)
	if err != nil {
		return nil, err
	}
	classes := distinctLabels(trainRows)

	prep := &Prepared{Classes: classes, Scaler: scaler}

	prep.Train, err = encodeSet(trainRows, scaler, classes, opts.SoftHigh, opts.SoftLow)
	if err != nil {
		return nil, errors.Wrap(err, "encode training set")
	}
	if len(validRows) > 0 {
		prep.Validation, err = encodeSet(validRows, scaler, classes, 1, 0)
		if err != nil {
			return nil, errors.Wrap(err, "encode validation set")
		}
	}
	if len(unlabeled) > 0 {
		prep.Test, err = scaler.Transform(unlabeled)
		if err != nil {
			return nil, errors.Wrap(err, "encode test set")
		}
	}

	log.Printf("preprocessed train=%d validation=%d test=%d features=%d classes=%d",
		len(trainRows), len(validRows), len(unlabeled), len(scaler.Mean)+1, len(classes))
	return prep, nil
}

func encodeSet(rows []Row, scaler Scaler, classes []string, high, low float64) (*Set, error) {
	x, err := scaler.Transform(rows)
	if err != nil {
		return nil, err
	}
	y, unknown := OneHot(rows, classes, high, low)
	if unknown > 0 {
		log.Printf("rows=%d carry labels absent from training classes", unknown)
	}
	return NewSet(x, y)
}

// OneHot encodes row labels against classes. Rows whose label is not among
// classes are filled with low and counted in unknown.
func OneHot(rows []Row, classes []string, high, low float64) (y *mat.Dense, unknown int) {
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y = mat.NewDense(len(rows), len(classes), nil)
	for i, row := range rows {
		dst := y.RawRowView(i)
		for j := range dst {
			dst[j] = low
		}
		k, ok := index[row.Label]
		if !ok {
			unknown++
			continue
		}
		dst[k] = high
	}
	return y, unknown
}

// distinctLabels returns the sorted distinct labels, numerically when every
// label is an integer.
func distinctLabels(rows []Row) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		if _, ok := seen[row.Label]; ok {
			continue
		}
		seen[row.Label] = struct{}{}
		out = append(out, row.Label)
	}
	numeric := true
	nums := make(map[string]int64, len(out))
	for _, l := range out {
		v, err := strconv.ParseInt(l, 10, 64)
		if err != nil {
			numeric = false
			break
		}
		nums[l] = v
	}
	if numeric {
		sort.Slice(out, func(i, j int) bool { return nums[out[i]] < nums[out[j]] })
	} else {
		sort.Strings(out)
	}
	return out
}
