package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Row is one parsed CSV record.
type Row struct {
	Values []float64
	Label  string
}

// PartOptions describes the layout of a CSV part.
type PartOptions struct {
	// Labeled parts carry a class label in LabelColumn.
	Labeled bool
	// LabelColumn indexes the label; negative values count from the end.
	LabelColumn int
	HasHeader   bool
}

// ErrRaggedRow indicates a record whose width differs from the first record.
var ErrRaggedRow = errors.New("dataset: row width differs from first row")

// StreamPart streams parsed rows from the CSV part at path.
func StreamPart(ctx context.Context, path string, opts PartOptions) (<-chan Row, <-chan error) {
	out := make(chan Row)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- errors.Wrap(err, "open part")
			return
		}
		defer f.Close()

		r := csv.NewReader(bufio.NewReader(f))
		r.ReuseRecord = true
		width := -1
		line := 0

		for {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errCh <- errors.Wrapf(err, "read %s", path)
				return
			}
			line++
			if line == 1 && opts.HasHeader {
				continue
			}
			if width < 0 {
				width = len(record)
			}
			if len(record) != width {
				errCh <- errors.Wrapf(ErrRaggedRow, "%s line %d: %d fields, want %d", path, line, len(record), width)
				return
			}

			row, err := parseRecord(record, opts)
			if err != nil {
				errCh <- errors.Wrapf(err, "%s line %d", path, line)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- row:
			}
		}
	}()

	return out, errCh
}

func parseRecord(record []string, opts PartOptions) (Row, error) {
	labelIdx := -1
	if opts.Labeled {
		labelIdx = opts.LabelColumn
		if labelIdx < 0 {
			labelIdx += len(record)
		}
		if labelIdx < 0 || labelIdx >= len(record) {
			return Row{}, errors.Errorf("label column %d out of range for %d fields", opts.LabelColumn, len(record))
		}
	}

	row := Row{Values: make([]float64, 0, len(record))}
	for i, field := range record {
		field = strings.TrimSpace(field)
		if i == labelIdx {
			row.Label = normalizeLabel(field)
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Row{}, errors.Wrapf(err, "field %d", i)
		}
		row.Values = append(row.Values, v)
	}
	return row, nil
}

// normalizeLabel maps "3" and "3.0" to the same class.
func normalizeLabel(s string) string {
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return s
}
