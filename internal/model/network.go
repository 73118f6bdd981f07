package model

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Probabilities are clamped to this range before taking logarithms in Score.
const (
	ScoreFloor   = 0.00005
	ScoreCeiling = 0.99995
)

// ErrShape is returned when matrices passed to a Network do not line up with its weights.
var ErrShape = errors.New("model: dimension mismatch")

// Network is a single hidden layer classifier with tanh hidden units and
// logistic outputs. V maps bias-augmented inputs to hidden units and W maps
// bias-augmented hidden activations to class scores.
type Network struct {
	V *mat.Dense
	W *mat.Dense
}

// Shapes describes the dimensions of a Network.
type Shapes struct {
	Inputs  int // including the bias column
	Hidden  int
	Classes int
}

// NewNetwork draws V and W from a zero-mean normal distribution scaled by scale.
func NewNetwork(inputSize, hiddenSize, numClasses int, scale float64, rng *rand.Rand) (*Network, error) {
	if inputSize <= 0 || hiddenSize <= 0 || numClasses <= 0 {
		return nil, errors.Errorf("model: invalid shape inputs=%d hidden=%d classes=%d", inputSize, hiddenSize, numClasses)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Network{
		V: randNormal(hiddenSize, inputSize, scale, rng),
		W: randNormal(numClasses, hiddenSize+1, scale, rng),
	}, nil
}

func randNormal(r, c int, scale float64, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = scale * rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// Shapes reports the network dimensions.
func (n *Network) Shapes() Shapes {
	hidden, inputs := n.V.Dims()
	classes, _ := n.W.Dims()
	return Shapes{Inputs: inputs, Hidden: hidden, Classes: classes}
}

// Validate checks that V and W agree with each other.
func (n *Network) Validate() error {
	if n == nil || n.V == nil || n.W == nil {
		return errors.New("model: network has no weights")
	}
	hidden, _ := n.V.Dims()
	_, wc := n.W.Dims()
	if wc != hidden+1 {
		return errors.Wrapf(ErrShape, "W has %d columns, want hidden+1=%d", wc, hidden+1)
	}
	return nil
}

// Clone returns a deep copy of the network.
func (n *Network) Clone() *Network {
	return &Network{V: mat.DenseCopyOf(n.V), W: mat.DenseCopyOf(n.W)}
}

// Activations holds the intermediate values of a forward pass.
type Activations struct {
	H  *mat.Dense // hidden x B
	HB *mat.Dense // (hidden+1) x B, last row is the bias
	Z  *mat.Dense // classes x B
}

// Forward runs x (B x inputs, one example per row) through the network.
func (n *Network) Forward(x mat.Matrix) (Activations, error) {
	b, d := x.Dims()
	hidden, inputs := n.V.Dims()
	if d != inputs {
		return Activations{}, errors.Wrapf(ErrShape, "features have %d columns, want %d", d, inputs)
	}
	if b == 0 {
		return Activations{}, errors.New("model: empty batch")
	}

	h := mat.NewDense(hidden, b, nil)
	h.Mul(n.V, x.T())
	h.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, h)

	hb := mat.NewDense(hidden+1, b, nil)
	hb.Slice(0, hidden, 0, b).(*mat.Dense).Copy(h)
	bias := hb.RawRowView(hidden)
	for j := range bias {
		bias[j] = 1
	}

	classes, _ := n.W.Dims()
	z := mat.NewDense(classes, b, nil)
	z.Mul(n.W, hb)
	z.Apply(func(_, _ int, v float64) float64 { return sigmoid(v) }, z)

	return Activations{H: h, HB: hb, Z: z}, nil
}

// Step applies one gradient-descent update for the batch. V and W are
// updated together or not at all.
func (n *Network) Step(batch Batch, rateV, rateW float64) error {
	if batch.X == nil || batch.Y == nil {
		return errors.New("model: batch is missing features or labels")
	}
	act, err := n.Forward(batch.X)
	if err != nil {
		return err
	}
	b, _ := batch.X.Dims()
	yb, yc := batch.Y.Dims()
	classes, _ := n.W.Dims()
	if yb != b || yc != classes {
		return errors.Wrapf(ErrShape, "labels are %dx%d, want %dx%d", yb, yc, b, classes)
	}
	hidden, _ := n.V.Dims()

	var outErr mat.Dense
	outErr.Sub(act.Z, batch.Y.T())

	var gradW mat.Dense
	gradW.Mul(&outErr, act.HB.T())

	var back mat.Dense
	back.Mul(n.W.Slice(0, classes, 0, hidden).T(), &outErr)
	back.Apply(func(i, j int, v float64) float64 {
		h := act.H.At(i, j)
		return v * (1 - h*h)
	}, &back)

	var gradV mat.Dense
	gradV.Mul(&back, batch.X)

	gradV.Scale(rateV, &gradV)
	gradW.Scale(rateW, &gradW)
	n.V.Sub(n.V, &gradV)
	n.W.Sub(n.W, &gradW)
	return nil
}

// Score is the mean over examples of the summed binary cross-entropy across
// output units. y holds one example per row.
func (n *Network) Score(x, y mat.Matrix) (float64, error) {
	act, err := n.Forward(x)
	if err != nil {
		return 0, err
	}
	return CrossEntropy(y.T(), act.Z)
}

// CrossEntropy scores predictions z against targets y, both classes x B.
func CrossEntropy(y, z mat.Matrix) (float64, error) {
	yr, yc := y.Dims()
	zr, zc := z.Dims()
	if yr != zr || yc != zc {
		return 0, errors.Wrapf(ErrShape, "targets are %dx%d, predictions are %dx%d", yr, yc, zr, zc)
	}
	if zc == 0 {
		return 0, errors.New("model: no examples to score")
	}
	total := 0.0
	for j := 0; j < zc; j++ {
		for i := 0; i < zr; i++ {
			p := clamp(z.At(i, j))
			t := y.At(i, j)
			total += -t*math.Log(p) - (1-t)*math.Log(1-p)
		}
	}
	return total / float64(zc), nil
}

// Predict returns the index of the most active output unit for every row of x.
func (n *Network) Predict(x mat.Matrix) ([]int, error) {
	act, err := n.Forward(x)
	if err != nil {
		return nil, err
	}
	classes, b := act.Z.Dims()
	out := make([]int, b)
	col := make([]float64, classes)
	for j := 0; j < b; j++ {
		out[j] = floats.MaxIdx(mat.Col(col, j, act.Z))
	}
	return out, nil
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func clamp(p float64) float64 {
	if p > ScoreCeiling {
		return ScoreCeiling
	}
	if p < ScoreFloor {
		return ScoreFloor
	}
	return p
}
