package dataset

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// WritePredictions writes an Id,Category CSV. Ids start at 1 and Category
// is the class label at each predicted index.
func WritePredictions(path string, classes []string, predicted []int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create predictions")
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{"Id", "Category"}); err != nil {
		f.Close()
		return errors.Wrap(err, "write predictions header")
	}
	for i, idx := range predicted {
		if idx < 0 || idx >= len(classes) {
			f.Close()
			return errors.Errorf("prediction %d: class index %d out of range", i, idx)
		}
		if err := w.Write([]string{strconv.Itoa(i + 1), classes[idx]}); err != nil {
			f.Close()
			return errors.Wrapf(err, "write prediction %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.Wrap(err, "flush predictions")
	}
	return errors.Wrap(f.Close(), "close predictions")
}
