package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horsecolic/config"
	"horsecolic/db"
	"horsecolic/logging"
	"horsecolic/ml"
	"horsecolic/pipeline"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file")
	dataPath := flag.String("data", "", "training CSV (overrides ml.data_path)")
	modelPath := flag.String("out", "", "artifact output path (overrides ml.model_path)")
	exportClean := flag.String("export-clean", "", "write the cleaned dataset to this CSV")
	maxDepth := flag.Int("max-depth", 0, "max tree depth, 0 = unlimited")
	seed := flag.Int64("seed", ml.DefaultSeed, "random seed")
	testRatio := flag.Float64("test-ratio", 0.25, "held-out fraction")
	noLog := flag.Bool("no-db", false, "skip writing the training log")
	flag.Parse()

	path := config.Locate(*configPath)
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Resolve(path)

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.ML.DataPath = *dataPath
		case "out":
			cfg.ML.ModelPath = *modelPath
		case "max-depth":
			cfg.ML.MaxTreeDepth = *maxDepth
		case "seed":
			cfg.ML.Seed = *seed
		case "test-ratio":
			cfg.ML.Training.TestRatio = *testRatio
		}
	})

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	p, err := run(cfg, *exportClean, logger)
	if err != nil {
		logger.Error("training failed", zap.Error(err))
		if errors.Is(err, ml.ErrTrainingData) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if *noLog {
		return
	}
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		logger.Warn("training log not written", zap.Error(err))
		return
	}
	defer store.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.SaveTrainingLog(ctx, db.TrainingLogFor(p, cfg.ML.ModelPath)); err != nil {
		logger.Warn("training log not written", zap.Error(err))
	}
}

func run(cfg *config.Config, exportClean string, logger *zap.Logger) (*ml.Pipeline, error) {
	ds, err := pipeline.LoadCSVFile(cfg.ML.DataPath, pipeline.DefaultIngestionConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("dataset loaded",
		zap.String("path", cfg.ML.DataPath),
		zap.Int("rows", ds.Stats.TotalRows),
		zap.Int("decoded_cells", ds.Stats.DecodedCells),
		zap.Any("missing_cells", ds.Stats.MissingCells),
	)

	cleaner := pipeline.NewDataCleaner(logger.Named("cleaning"))
	records, issues := cleaner.Clean(ds.Records)
	for _, issue := range issues {
		if issue.Severity == "high" {
			logger.Warn("record dropped",
				zap.String("rule", issue.Type),
				zap.String("record", issue.RecordID),
				zap.Int("line", issue.Line),
				zap.String("reason", issue.Message),
			)
		}
	}
	cleaned := &pipeline.Dataset{Records: records, HasOutcome: ds.HasOutcome, Stats: ds.Stats}
	if exportClean != "" {
		if err := pipeline.SaveCSVFile(exportClean, cleaned); err != nil {
			return nil, fmt.Errorf("export cleaned dataset: %w", err)
		}
		logger.Info("cleaned dataset exported", zap.String("path", exportClean))
	}

	trainCfg := ml.TrainConfig{
		TestRatio:       cfg.ML.Training.TestRatio,
		Seed:            cfg.ML.Seed,
		MaxDepth:        cfg.ML.MaxTreeDepth,
		MinSamplesSplit: cfg.ML.MinSamplesSplit,
		MinSamplesLeaf:  cfg.ML.MinSamplesLeaf,
	}
	p, err := ml.Train(cleaned.Rows(), cleaned.Outcomes(), trainCfg)
	if err != nil {
		return nil, err
	}

	eval := p.Training.Evaluation
	logger.Info("model trained",
		zap.Int("train_rows", p.Training.TrainRows),
		zap.Int("test_rows", p.Training.TestRows),
		zap.Ints("class_counts", p.Training.ClassCounts[:]),
		zap.Int("tree_depth", p.Tree.Depth()),
		zap.Int("tree_leaves", p.Tree.LeafCount()),
		zap.Float64("accuracy", eval.Accuracy),
		zap.Float64("precision", eval.Precision),
		zap.Float64("recall", eval.Recall),
		zap.Float64("f1", eval.F1),
	)
	for _, f := range p.TopFeatures(5) {
		logger.Info("feature importance", zap.String("feature", f.Feature), zap.Float64("importance", f.Importance))
	}

	if err := p.Save(cfg.ML.ModelPath); err != nil {
		return nil, err
	}
	logger.Info("pipeline saved", zap.String("path", cfg.ML.ModelPath), zap.String("schema", p.Schema.Fingerprint()))
	return p, nil
}
