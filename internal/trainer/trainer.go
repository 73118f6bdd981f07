package trainer

import (
	"log"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"letternet/internal/dataset"
	"letternet/internal/metrics"
	"letternet/internal/model"
)

// Hyperparams are fixed for the duration of one training run.
type Hyperparams struct {
	RateV float64
	RateW float64
	// Decay multiplies both learning rates at every epoch boundary.
	Decay float64
	// BatchSize 1 gives single-sample stochastic gradient descent.
	BatchSize int
	// Epochs sets the iteration budget to Epochs x set size. The budget is
	// absolute, so a resumed run stops at the same total.
	Epochs     int
	ScoreEvery int
	HiddenSize int
	InitScale  float64
}

// Validate verifies the hyperparameters are runnable.
func (hp Hyperparams) Validate() error {
	if hp.BatchSize <= 0 {
		return errors.Errorf("trainer: batch size must be > 0 (got %d)", hp.BatchSize)
	}
	if hp.Epochs <= 0 {
		return errors.Errorf("trainer: epochs must be > 0 (got %d)", hp.Epochs)
	}
	if hp.ScoreEvery <= 0 {
		return errors.Errorf("trainer: score interval must be > 0 (got %d)", hp.ScoreEvery)
	}
	if hp.RateV < 0 || hp.RateW < 0 || hp.Decay < 0 {
		return errors.New("trainer: learning rates and decay must be non-negative")
	}
	return nil
}

// Sample is one score history entry.
type Sample struct {
	Iteration int
	Score     float64
}

// State is everything a run produces and everything a later run needs to
// resume.
type State struct {
	Net       *model.Network
	History   []Sample
	Iteration int
	Epochs    int
	// RateV and RateW are the learning rates after the last decay.
	RateV float64
	RateW float64
}

// resumeAt returns the iteration a run seeded from s starts at.
func (s *State) resumeAt() int {
	if s.Iteration == 0 && len(s.History) > 0 {
		return s.History[len(s.History)-1].Iteration
	}
	return s.Iteration
}

// Options carries the optional inputs of Train.
type Options struct {
	// Prior, when set, supplies starting weights, score history and
	// iteration counter. It is not modified.
	Prior *State
	// Rng drives weight initialization and reshuffling.
	Rng *rand.Rand
	// LogEvery steps a throughput line is logged; 0 disables it.
	LogEvery int
	// Name prefixes log lines.
	Name string
}

// Train runs mini-batch gradient descent over set until the iteration
// budget is reached. The set is reshuffled in place at every epoch boundary.
func Train(set *dataset.Set, hp Hyperparams, opts Options) (*State, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	n := set.Len()
	if n == 0 {
		return nil, errors.New("trainer: empty training set")
	}
	if hp.BatchSize > n {
		return nil, errors.Errorf("trainer: batch size %d exceeds set size %d", hp.BatchSize, n)
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(42))
	}
	name := opts.Name
	if name == "" {
		name = "train"
	}

	st, err := initState(set, hp, opts.Prior, rng)
	if err != nil {
		return nil, err
	}

	budget := hp.Epochs * n
	var window metrics.Window
	steps := 0

	for st.Iteration < budget {
		x, y := set.Batch(st.Iteration%n, hp.BatchSize)

		start := time.Now()
		if err := st.Net.Step(model.Batch{X: x, Y: y}, st.RateV, st.RateW); err != nil {
			return nil, errors.Wrapf(err, "trainer: step at iteration %d", st.Iteration)
		}
		window.Record(hp.BatchSize, time.Since(start))

		if scoreDue(st, hp) {
			score, err := st.Net.Score(set.X, set.Y)
			if err != nil {
				return nil, errors.Wrapf(err, "trainer: score at iteration %d", st.Iteration)
			}
			st.History = append(st.History, Sample{Iteration: st.Iteration, Score: score})
			window.Score(score)
		}

		st.Iteration += hp.BatchSize
		steps++

		if st.Iteration%n < hp.BatchSize {
			st.RateV *= hp.Decay
			st.RateW *= hp.Decay
			st.Epochs++
			set.Shuffle(rng)
			log.Printf("%s epoch=%d iteration=%d rate_v=%.6f rate_w=%.6f", name, st.Epochs, st.Iteration, st.RateV, st.RateW)
		}

		if opts.LogEvery > 0 && steps%opts.LogEvery == 0 {
			snap := window.Snapshot()
			log.Printf("%s iteration=%d examples_per_sec=%.1f step_ms=%.3f score=%.4f",
				name,
				st.Iteration,
				snap.ExamplesPerSec,
				snap.AvgStepMS,
				snap.LastScore,
			)
		}
	}

	return st, nil
}

func initState(set *dataset.Set, hp Hyperparams, prior *State, rng *rand.Rand) (*State, error) {
	st := &State{RateV: hp.RateV, RateW: hp.RateW}
	if prior == nil {
		net, err := model.NewNetwork(set.Features(), hp.HiddenSize, set.Classes(), hp.InitScale, rng)
		if err != nil {
			return nil, err
		}
		st.Net = net
		return st, nil
	}

	if err := prior.Net.Validate(); err != nil {
		return nil, errors.Wrap(err, "trainer: prior weights")
	}
	shapes := prior.Net.Shapes()
	if shapes.Inputs != set.Features() || shapes.Classes != set.Classes() {
		return nil, errors.Wrapf(model.ErrShape, "trainer: prior weights expect %d inputs and %d classes, set has %d and %d",
			shapes.Inputs, shapes.Classes, set.Features(), set.Classes())
	}
	st.Net = prior.Net.Clone()
	st.History = append([]Sample(nil), prior.History...)
	st.Iteration = prior.resumeAt()
	st.Epochs = prior.Epochs
	return st, nil
}

// scoreDue reports whether a multiple of ScoreEvery falls inside the batch
// that starts at the current iteration. Iteration indices in the history
// stay strictly increasing across resumes.
func scoreDue(st *State, hp Hyperparams) bool {
	if k := len(st.History); k > 0 && st.History[k-1].Iteration >= st.Iteration {
		return false
	}
	r := st.Iteration % hp.ScoreEvery
	return r == 0 || hp.ScoreEvery-r < hp.BatchSize
}
