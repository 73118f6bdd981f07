package metrics

import (
	"time"

	"gonum.org/v1/gonum/mat"
)

// Window accumulates timing stats across multiple training steps.
type Window struct {
	examples  int
	compute   time.Duration
	steps     int
	lastScore float64
}

// Record adds a new step measurement to the window.
func (w *Window) Record(batchSize int, computeTime time.Duration) {
	w.examples += batchSize
	w.compute += computeTime
	w.steps++
}

// Score remembers the most recent full-set score.
func (w *Window) Score(score float64) {
	w.lastScore = score
}

// Snapshot returns aggregated metrics and resets the window. The last score
// carries over.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps}
	if w.compute > 0 {
		snap.ExamplesPerSec = float64(w.examples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgStepMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}
	snap.LastScore = w.lastScore

	w.examples = 0
	w.compute = 0
	w.steps = 0
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps          int
	ExamplesPerSec float64
	AvgStepMS      float64
	LastScore      float64
}

// Accuracy returns the fraction of rows whose label value at the predicted
// index exceeds 0.5.
func Accuracy(predicted []int, labels mat.Matrix) float64 {
	if len(predicted) == 0 {
		return 0
	}
	correct := 0
	for i, idx := range predicted {
		if labels.At(i, idx) > 0.5 {
			correct++
		}
	}
	return float64(correct) / float64(len(predicted))
}
