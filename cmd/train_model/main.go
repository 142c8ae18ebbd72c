package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"go.uber.org/zap"

	"churnai/config"
	"churnai/db"
	"churnai/logging"
	"churnai/ml"
	"churnai/training"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	dataPath := flag.String("data", "", "training CSV (overrides training.data_path)")
	encoding := flag.String("encoding", "", "CSV character encoding, e.g. windows-1252")
	modelDir := flag.String("model_dir", "", "artifact output directory (overrides model.dir)")
	models := flag.String("models", "", "comma separated candidates: "+strings.Join(ml.ModelTypes(), ","))
	threshold := flag.Float64("threshold", 0, "decision threshold for test metrics")
	testRatio := flag.Float64("test_ratio", 0, "held-out share of rows")
	cvFolds := flag.Int("cv", -1, "cross validation folds, 0 to skip")
	seed := flag.Int64("seed", 0, "split seed")
	dbPath := flag.String("db", "", "record the run in this SQLite database (default database.path, \"none\" to skip)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	tc := cfg.Training
	if *dataPath != "" {
		tc.DataPath = *dataPath
	}
	if *encoding != "" {
		tc.Encoding = *encoding
	}
	if *modelDir != "" {
		tc.ModelDir = *modelDir
	}
	if *models != "" {
		tc.Models = nil
		for _, name := range strings.Split(*models, ",") {
			if name = strings.TrimSpace(name); name != "" {
				tc.Models = append(tc.Models, training.Candidate{Type: name})
			}
		}
	}
	if *threshold != 0 {
		tc.Threshold = *threshold
	}
	if *testRatio != 0 {
		tc.TestRatio = *testRatio
	}
	if *cvFolds >= 0 {
		tc.CVFolds = *cvFolds
	}
	if *seed != 0 {
		tc.Seed = *seed
	}

	var store training.LogStore
	path := cfg.Database.Path
	if *dbPath != "" {
		path = *dbPath
	}
	if path != "none" {
		s, err := db.Open(path)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer s.Close()
		store = s
	}

	trainer, err := training.NewTrainer(tc, logger, store)
	if err != nil {
		logger.Fatal("invalid training config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	report, err := trainer.Run(ctx)
	if err != nil {
		logger.Fatal("training failed", zap.Error(err))
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "model\tcv_roc_auc\taccuracy\tprecision\trecall\troc_auc\t")
	for _, r := range report.Results {
		if r.Err != "" {
			fmt.Fprintf(w, "%s\tfailed: %s\t\t\t\t\t\n", r.Model, r.Err)
			continue
		}
		e := r.Evaluation
		marker := ""
		if r.Selected {
			marker = " *"
		}
		fmt.Fprintf(w, "%s%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t\n", r.Model, marker, r.CVMean, e.Accuracy, e.Precision, e.Recall, e.ROCAUC)
	}
	w.Flush()
	fmt.Printf("model saved to %s\n", report.Paths.Model)
	fmt.Printf("feature columns saved to %s\n", report.Paths.Columns)
}
