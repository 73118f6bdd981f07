package dataset

import (
	"context"
	"log"
	"sync"

	"github.com/pkg/errors"
)

// LoadOptions configures the parallel part loader.
type LoadOptions struct {
	Paths      []string
	NumWorkers int
	Part       PartOptions
}

// Load parses every part with a pool of workers and returns the rows in
// part order, then file order within each part.
func Load(parent context.Context, opts LoadOptions) ([]Row, error) {
	if len(opts.Paths) == 0 {
		return nil, errors.New("loader: no dataset parts provided")
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 1
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	jobs := make(chan partJob, opts.NumWorkers)
	results := make(chan partResult, opts.NumWorkers)

	go produceJobs(ctx, jobs, opts.Paths)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, jobs, results, opts.Part)
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	rows, err := aggregate(ctx, results, len(opts.Paths))
	if err != nil {
		return nil, err
	}
	log.Printf("loaded parts=%d rows=%d workers=%d", len(opts.Paths), len(rows), opts.NumWorkers)
	return rows, nil
}

type partJob struct {
	id   int
	path string
}

type partResult struct {
	id   int
	rows []Row
	err  error
}

func produceJobs(ctx context.Context, jobs chan<- partJob, paths []string) {
	defer close(jobs)
	for id, path := range paths {
		select {
		case <-ctx.Done():
			return
		case jobs <- partJob{id: id, path: path}:
		}
	}
}

func worker(ctx context.Context, jobs <-chan partJob, results chan<- partResult, opts PartOptions) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			rows, err := readPart(ctx, job.path, opts)
			select {
			case <-ctx.Done():
				return
			case results <- partResult{id: job.id, rows: rows, err: err}:
			}
		}
	}
}

func readPart(ctx context.Context, path string, opts PartOptions) ([]Row, error) {
	stream, errCh := StreamPart(ctx, path, opts)
	var rows []Row
	for row := range stream {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}

// aggregate reassembles part results in id order regardless of completion order.
func aggregate(ctx context.Context, results <-chan partResult, total int) ([]Row, error) {
	pending := make(map[int][]Row)
	var out []Row
	next := 0
	for next < total {
		if rows, ok := pending[next]; ok {
			for _, row := range rows {
				if len(out) > 0 && len(row.Values) != len(out[0].Values) {
					return nil, errors.Wrapf(ErrWidthMismatch, "part %d has %d features, part 0 has %d",
						next, len(row.Values), len(out[0].Values))
				}
				out = append(out, row)
			}
			delete(pending, next)
			next++
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return nil, errors.Errorf("loader: workers exited after %d of %d parts", next, total)
			}
			if res.err != nil {
				return nil, res.err
			}
			pending[res.id] = res.rows
		}
	}
	return out, nil
}
