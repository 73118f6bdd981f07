package trainer

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"

	"github.com/pkg/errors"

	"letternet/internal/dataset"
	"letternet/internal/metrics"
)

// SweepConfig lists the learning rate and decay values to cross.
type SweepConfig struct {
	RatesV     []float64
	RatesW     []float64
	Decays     []float64
	Base       Hyperparams
	NumWorkers int
	Seed       int64
	LogEvery   int
}

// Combo is one point of the sweep grid.
type Combo struct {
	RateV float64
	RateW float64
	Decay float64
}

func (c Combo) String() string {
	return fmt.Sprintf("vr=%g wr=%g dr=%g", c.RateV, c.RateW, c.Decay)
}

// Result is the outcome of training one Combo.
type Result struct {
	Combo
	State              *State
	TrainAccuracy      float64
	ValidationAccuracy float64
}

// Combos expands the sweep lists in RatesV, RatesW, Decays order.
func (c SweepConfig) Combos() []Combo {
	var out []Combo
	for _, vr := range c.RatesV {
		for _, wr := range c.RatesW {
			for _, dr := range c.Decays {
				out = append(out, Combo{RateV: vr, RateW: wr, Decay: dr})
			}
		}
	}
	return out
}

// Sweep trains one fresh network per combination. Runs are spread over
// NumWorkers goroutines; each run is single-threaded on its own copy of the
// training set. Results are returned in Combos order.
func Sweep(ctx context.Context, train, validation *dataset.Set, cfg SweepConfig) ([]Result, error) {
	combos := cfg.Combos()
	if len(combos) == 0 {
		return nil, errors.New("sweep: no hyperparameter combinations")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make([]Result, len(combos))
	errs := make([]error, len(combos))

	go func() {
		defer close(jobs)
		for i := range combos {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < cfg.NumWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					errs[i] = ctx.Err()
					continue
				}
				results[i], errs[i] = runCombo(train, validation, combos[i], cfg, int64(i))
				if errs[i] != nil {
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, errors.Wrapf(err, "sweep: %s", combos[i])
		}
	}
	for i := range results {
		if results[i].State == nil {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "sweep")
			}
			return nil, errors.Errorf("sweep: %s did not run", combos[i])
		}
	}
	return results, nil
}

// Best returns the result with the highest validation accuracy, keeping the
// earliest combo on ties. Each run already logged its own accuracies.
func Best(results []Result) Result {
	var best Result
	for i, res := range results {
		if i == 0 || res.ValidationAccuracy > best.ValidationAccuracy {
			best = res
		}
	}
	return best
}

func runCombo(train, validation *dataset.Set, combo Combo, cfg SweepConfig, idx int64) (Result, error) {
	hp := cfg.Base
	hp.RateV, hp.RateW, hp.Decay = combo.RateV, combo.RateW, combo.Decay

	set := train.Clone()
	st, err := Train(set, hp, Options{
		Rng:      rand.New(rand.NewSource(cfg.Seed + idx)),
		LogEvery: cfg.LogEvery,
		Name:     combo.String(),
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Combo: combo, State: st}
	res.TrainAccuracy, err = evaluate(st, set)
	if err != nil {
		return Result{}, err
	}
	if validation != nil && validation.Len() > 0 {
		res.ValidationAccuracy, err = evaluate(st, validation)
		if err != nil {
			return Result{}, err
		}
	}
	log.Printf("%s train_acc=%.4f valid_acc=%.4f", combo, res.TrainAccuracy, res.ValidationAccuracy)
	return res, nil
}

func evaluate(st *State, set *dataset.Set) (float64, error) {
	predicted, err := st.Net.Predict(set.X)
	if err != nil {
		return 0, err
	}
	return metrics.Accuracy(predicted, set.Y), nil
}
