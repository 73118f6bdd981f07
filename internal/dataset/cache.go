package dataset

import (
	"bufio"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

// SaveCache writes the preprocessed dataset to path. Dense matrices are
// encoded through their binary marshalers.
func SaveCache(path string, p *Prepared) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create cache")
	}
	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(p); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode cache %s", path)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrapf(err, "flush cache %s", path)
	}
	return errors.Wrap(f.Close(), "close cache")
}

// ErrStaleCache is returned when a cache was built from different inputs.
var ErrStaleCache = errors.New("dataset: cache built from different inputs")

// LoadCache reads a dataset written by SaveCache and checks that it was
// built from want.
func LoadCache(path string, want Provenance) (*Prepared, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open cache")
	}
	defer f.Close()

	p := &Prepared{}
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(p); err != nil {
		return nil, errors.Wrapf(err, "decode cache %s", path)
	}
	if p.Train == nil || p.Train.Len() == 0 {
		return nil, errors.Errorf("cache %s holds no training rows", path)
	}
	if p.Source != want {
		return nil, errors.Wrapf(ErrStaleCache, "%s built with %+v", path, p.Source)
	}
	return p, nil
}
