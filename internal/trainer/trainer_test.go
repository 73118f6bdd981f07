package trainer

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"letternet/internal/dataset"
	"letternet/internal/metrics"
	"letternet/internal/model"
)

// separableSet builds n points around (-2,-2) and (2,2), with the bias
// column appended and one-hot labels over two classes.
func separableSet(t *testing.T, n int, seed int64) *dataset.Set {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	x := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		class := i % 2
		center := -2.0
		if class == 1 {
			center = 2.0
		}
		x.SetRow(i, []float64{
			center + rng.Float64()*2 - 1,
			center + rng.Float64()*2 - 1,
			1,
		})
		y.Set(i, class, 1)
	}
	set, err := dataset.NewSet(x, y)
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func baseParams() Hyperparams {
	return Hyperparams{
		RateV:      0.01,
		RateW:      0.02,
		Decay:      0.9,
		BatchSize:  10,
		Epochs:     5,
		ScoreEvery: 100,
		HiddenSize: 50,
		InitScale:  0.1,
	}
}

func TestTrainConvergesOnSeparableData(t *testing.T) {
	set := separableSet(t, 100, 1)
	st, err := Train(set, baseParams(), Options{Rng: rand.New(rand.NewSource(7))})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if st.Iteration != 500 {
		t.Fatalf("expected 500 iterations, got %d", st.Iteration)
	}
	predicted, err := st.Net.Predict(set.X)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if acc := metrics.Accuracy(predicted, set.Y); acc <= 0.95 {
		t.Fatalf("accuracy %.3f, want > 0.95", acc)
	}
	if len(st.History) != 5 {
		t.Fatalf("expected 5 score samples, got %d", len(st.History))
	}
	if first, last := st.History[0].Score, st.History[len(st.History)-1].Score; last >= first {
		t.Fatalf("score did not improve: first=%f last=%f", first, last)
	}
}

func TestOneEpochTriggersSingleDecay(t *testing.T) {
	set := separableSet(t, 20, 2)
	hp := baseParams()
	hp.BatchSize = 5
	hp.Epochs = 1
	hp.HiddenSize = 4

	st, err := Train(set, hp, Options{Rng: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if st.Iteration != 20 || st.Iteration%hp.BatchSize != 0 {
		t.Fatalf("iteration counter %d after one epoch", st.Iteration)
	}
	if st.Epochs != 1 {
		t.Fatalf("expected 1 epoch boundary, got %d", st.Epochs)
	}
	if st.RateV != hp.RateV*hp.Decay || st.RateW != hp.RateW*hp.Decay {
		t.Fatalf("rates decayed to %g/%g, want one decay", st.RateV, st.RateW)
	}
}

func TestUnevenBatchWrapsAcrossEpochs(t *testing.T) {
	set := separableSet(t, 10, 3)
	hp := baseParams()
	hp.BatchSize = 4
	hp.Epochs = 2
	hp.HiddenSize = 3

	st, err := Train(set, hp, Options{Rng: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// Steps start at 0,4,8,12,16; boundaries are crossed by the steps
	// ending at 12 and 20.
	if st.Iteration != 20 || st.Epochs != 2 {
		t.Fatalf("iteration=%d epochs=%d, want 20/2", st.Iteration, st.Epochs)
	}
}

func TestScoreCadence(t *testing.T) {
	set := separableSet(t, 20, 4)
	hp := baseParams()
	hp.BatchSize = 5
	hp.Epochs = 2
	hp.ScoreEvery = 10
	hp.HiddenSize = 4

	st, err := Train(set, hp, Options{Rng: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	want := []int{0, 10, 20, 30}
	if len(st.History) != len(want) {
		t.Fatalf("history %v, want iterations %v", st.History, want)
	}
	for i, s := range st.History {
		if s.Iteration != want[i] {
			t.Fatalf("sample %d at iteration %d, want %d", i, s.Iteration, want[i])
		}
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) || s.Score < 0 {
			t.Fatalf("sample %d has score %v", i, s.Score)
		}
	}
}

func TestResumeContinuesIterationCounter(t *testing.T) {
	set := separableSet(t, 20, 5)
	hp := baseParams()
	hp.BatchSize = 5
	hp.Epochs = 1
	hp.ScoreEvery = 5
	hp.HiddenSize = 4

	first, err := Train(set, hp, Options{Rng: rand.New(rand.NewSource(1))})
	if err != nil {
		t.Fatalf("first Train: %v", err)
	}
	priorV := mat.DenseCopyOf(first.Net.V)

	hp.Epochs = 2
	second, err := Train(set, hp, Options{Prior: first, Rng: rand.New(rand.NewSource(2))})
	if err != nil {
		t.Fatalf("resumed Train: %v", err)
	}
	if second.Iteration != 40 {
		t.Fatalf("resumed run ended at %d, want 40", second.Iteration)
	}
	if second.Epochs != 2 {
		t.Fatalf("expected 2 epochs total, got %d", second.Epochs)
	}
	if len(second.History) != 8 {
		t.Fatalf("expected 8 samples, got %d", len(second.History))
	}
	for i := 1; i < len(second.History); i++ {
		if second.History[i].Iteration <= second.History[i-1].Iteration {
			t.Fatalf("history not increasing: %v", second.History)
		}
	}
	if second.History[4].Iteration != 20 {
		t.Fatalf("resumed history starts at %d, want 20", second.History[4].Iteration)
	}
	if first.Iteration != 20 || !mat.Equal(first.Net.V, priorV) {
		t.Fatalf("prior state was modified")
	}
}

func TestResumeFromHistoryOnly(t *testing.T) {
	set := separableSet(t, 20, 6)
	hp := baseParams()
	hp.BatchSize = 5
	hp.Epochs = 2
	hp.HiddenSize = 4

	net, _ := model.NewNetwork(3, 4, 2, 0.1, rand.New(rand.NewSource(1)))
	prior := &State{Net: net, History: []Sample{{Iteration: 0, Score: 3}, {Iteration: 15, Score: 2}}}
	st, err := Train(set, hp, Options{Prior: prior})
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	// Resuming at 15 takes steps at 15,20,...,35.
	if st.Iteration != 40 {
		t.Fatalf("ended at %d, want 40", st.Iteration)
	}
	if len(st.History) != 2 || st.History[1].Iteration != 15 {
		t.Fatalf("prior history not preserved: %v", st.History)
	}
}

func TestTrainRejectsBadInput(t *testing.T) {
	set := separableSet(t, 10, 7)

	hp := baseParams()
	hp.BatchSize = 11
	if _, err := Train(set, hp, Options{}); err == nil {
		t.Fatal("expected error for batch larger than set")
	}

	hp = baseParams()
	hp.Epochs = 0
	if _, err := Train(set, hp, Options{}); err == nil {
		t.Fatal("expected error for zero epochs")
	}

	empty := &dataset.Set{}
	if _, err := Train(empty, baseParams(), Options{}); err == nil {
		t.Fatal("expected error for empty set")
	}

	wrong, _ := model.NewNetwork(5, 4, 2, 0.1, nil)
	if _, err := Train(set, baseParams(), Options{Prior: &State{Net: wrong}}); err == nil {
		t.Fatal("expected error for mismatched prior weights")
	}
}
