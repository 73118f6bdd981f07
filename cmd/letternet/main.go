package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"letternet/internal/config"
	"letternet/internal/dataset"
	"letternet/internal/report"
	"letternet/internal/trainer"
)

func main() {
	cfgPath := flag.String("config", "configs/letters.yaml", "Path to YAML config")
	mode := flag.String("mode", "train", "train: sweep and report accuracy; predict: fit on all labeled data and write predictions")
	resume := flag.Bool("resume", false, "Continue from checkpoint_path in predict mode")
	reload := flag.Bool("reload", false, "Ignore cache_path and preprocess the CSV data again")
	trainPath := flag.String("train", "", "Override training data path")
	testPath := flag.String("test", "", "Override test data path")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	epochs := flag.Int("epochs", 0, "Number of passes over the training set")
	hidden := flag.Int("hidden", 0, "Hidden units")
	numWorkers := flag.Int("num-workers", 0, "Number of loader and sweep workers")
	seed := flag.Int64("seed", 0, "PRNG seed")
	logEvery := flag.Int("log-every", 0, "Log every N steps")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		TrainPath:  *trainPath,
		TestPath:   *testPath,
		BatchSize:  *batchSize,
		Epochs:     *epochs,
		HiddenSize: *hidden,
		NumWorkers: *numWorkers,
		Seed:       *seed,
		LogEvery:   *logEvery,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prep, err := prepare(ctx, cfg, *reload)
	if err != nil {
		log.Fatalf("prepare data: %v", err)
	}

	switch *mode {
	case "train":
		if *resume {
			log.Printf("resume ignored in train mode; every sweep run starts from fresh weights")
		}
		err = runSweep(ctx, cfg, prep)
	case "predict":
		err = runPredict(cfg, prep, *resume)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", *mode, err)
	}
}

func hyperparams(cfg *config.Config) trainer.Hyperparams {
	return trainer.Hyperparams{
		RateV:      cfg.RatesV[0],
		RateW:      cfg.RatesW[0],
		Decay:      cfg.DecayRates[0],
		BatchSize:  cfg.BatchSize,
		Epochs:     cfg.Epochs,
		ScoreEvery: cfg.ScoreEvery,
		HiddenSize: cfg.HiddenSize,
		InitScale:  cfg.InitScale,
	}
}

func provenance(cfg *config.Config) dataset.Provenance {
	return dataset.Provenance{
		TrainPath:          cfg.TrainPath,
		TestPath:           cfg.TestPath,
		LabelColumn:        cfg.LabelColumn,
		HasHeader:          cfg.HasHeader,
		ValidationFraction: *cfg.ValidationFraction,
		SoftHigh:           cfg.SoftHigh,
		SoftLow:            cfg.SoftLow,
		Seed:               cfg.Seed,
	}
}

func prepare(ctx context.Context, cfg *config.Config, reload bool) (*dataset.Prepared, error) {
	source := provenance(cfg)
	if cfg.CachePath != "" && !reload {
		if _, err := os.Stat(cfg.CachePath); err == nil {
			prep, err := dataset.LoadCache(cfg.CachePath, source)
			switch {
			case err == nil:
				log.Printf("cache=%s train=%d classes=%d", cfg.CachePath, prep.Train.Len(), len(prep.Classes))
				return prep, nil
			case errors.Is(err, dataset.ErrStaleCache):
				log.Printf("cache=%s stale, rebuilding: %v", cfg.CachePath, err)
			default:
				return nil, err
			}
		}
	}
	if cfg.TrainPath == "" {
		return nil, errors.Errorf("cache %s missing or stale and no train_path configured", cfg.CachePath)
	}

	labeled, err := loadRows(ctx, cfg, cfg.TrainPath, true)
	if err != nil {
		return nil, errors.Wrap(err, "training data")
	}
	var unlabeled []dataset.Row
	if cfg.TestPath != "" {
		unlabeled, err = loadRows(ctx, cfg, cfg.TestPath, false)
		if err != nil {
			return nil, errors.Wrap(err, "test data")
		}
	}

	prep, err := dataset.Preprocess(labeled, unlabeled, dataset.PreprocessOptions{
		ValidationFraction: *cfg.ValidationFraction,
		SoftHigh:           cfg.SoftHigh,
		SoftLow:            cfg.SoftLow,
		Seed:               cfg.Seed,
	})
	if err != nil {
		return nil, err
	}
	prep.Source = source
	if cfg.CachePath != "" {
		if err := dataset.SaveCache(cfg.CachePath, prep); err != nil {
			return nil, err
		}
		log.Printf("cache=%s saved", cfg.CachePath)
	}
	return prep, nil
}

func loadRows(ctx context.Context, cfg *config.Config, root string, labeled bool) ([]dataset.Row, error) {
	parts, err := dataset.DiscoverParts(root)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, errors.Errorf("no parts discovered under %s", root)
	}
	log.Printf("root=%s parts=%d", root, len(parts))
	return dataset.Load(ctx, dataset.LoadOptions{
		Paths:      parts,
		NumWorkers: cfg.NumWorkers,
		Part: dataset.PartOptions{
			Labeled:     labeled,
			LabelColumn: cfg.LabelColumn,
			HasHeader:   cfg.HasHeader,
		},
	})
}

func runSweep(ctx context.Context, cfg *config.Config, prep *dataset.Prepared) error {
	results, err := trainer.Sweep(ctx, prep.Train, prep.Validation, trainer.SweepConfig{
		RatesV:     cfg.RatesV,
		RatesW:     cfg.RatesW,
		Decays:     cfg.DecayRates,
		Base:       hyperparams(cfg),
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		LogEvery:   cfg.LogEvery,
	})
	if err != nil {
		return err
	}
	best := trainer.Best(results)
	log.Printf("best %s valid_acc=%.4f", best.Combo, best.ValidationAccuracy)
	return nil
}

func runPredict(cfg *config.Config, prep *dataset.Prepared, resume bool) error {
	set := prep.Train.Clone()
	if prep.Validation != nil && prep.Validation.Len() > 0 {
		var err error
		if set, err = set.Concat(prep.Validation); err != nil {
			return err
		}
	}

	opts := trainer.Options{
		Rng:      rand.New(rand.NewSource(cfg.Seed)),
		LogEvery: cfg.LogEvery,
		Name:     "predict",
	}
	if resume {
		if cfg.CheckpointPath == "" {
			return errors.New("resume needs checkpoint_path")
		}
		prior, err := trainer.LoadCheckpoint(cfg.CheckpointPath)
		if err != nil {
			return err
		}
		log.Printf("checkpoint=%s iteration=%d samples=%d", cfg.CheckpointPath, prior.Iteration, len(prior.History))
		opts.Prior = prior
	}

	st, err := trainer.Train(set, hyperparams(cfg), opts)
	if err != nil {
		return err
	}

	if cfg.CheckpointPath != "" {
		if err := trainer.SaveCheckpoint(cfg.CheckpointPath, st); err != nil {
			return err
		}
		log.Printf("checkpoint=%s iteration=%d saved", cfg.CheckpointPath, st.Iteration)
	}
	if cfg.PlotPath != "" && len(st.History) > 0 {
		if err := report.PlotScores(cfg.PlotPath, st.History, "score over iterations"); err != nil {
			return err
		}
		log.Printf("plot=%s samples=%d", cfg.PlotPath, len(st.History))
	}
	if prep.Test == nil || cfg.PredictionsPath == "" {
		log.Printf("no test data or predictions_path; skipping predictions")
		return nil
	}
	predicted, err := st.Net.Predict(prep.Test)
	if err != nil {
		return err
	}
	if err := dataset.WritePredictions(cfg.PredictionsPath, prep.Classes, predicted); err != nil {
		return err
	}
	log.Printf("predictions=%s rows=%d", cfg.PredictionsPath, len(predicted))
	return nil
}
