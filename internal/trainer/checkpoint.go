package trainer

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"letternet/internal/model"
)

type checkpoint struct {
	V         *mat.Dense
	W         *mat.Dense
	History   []Sample
	Iteration int
	Epochs    int
	RateV     float64
	RateW     float64
}

// SaveCheckpoint writes st to path so a later run can resume from it.
func SaveCheckpoint(path string, st *State) error {
	if st == nil || st.Net == nil {
		return errors.New("checkpoint: nothing to save")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create checkpoint")
	}
	w := bufio.NewWriter(f)
	err = gob.NewEncoder(w).Encode(checkpoint{
		V:         st.Net.V,
		W:         st.Net.W,
		History:   st.History,
		Iteration: st.Iteration,
		Epochs:    st.Epochs,
		RateV:     st.RateV,
		RateW:     st.RateW,
	})
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		f.Close()
		return errors.Wrapf(err, "write checkpoint %s", path)
	}
	return errors.Wrap(f.Close(), "close checkpoint")
}

// LoadCheckpoint reads a State written by SaveCheckpoint.
func LoadCheckpoint(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open checkpoint")
	}
	defer f.Close()

	var cp checkpoint
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&cp); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint %s", path)
	}
	st := &State{
		Net:       &model.Network{V: cp.V, W: cp.W},
		History:   cp.History,
		Iteration: cp.Iteration,
		Epochs:    cp.Epochs,
		RateV:     cp.RateV,
		RateW:     cp.RateW,
	}
	if err := st.Net.Validate(); err != nil {
		return nil, errors.Wrapf(err, "checkpoint %s", path)
	}
	return st, nil
}
