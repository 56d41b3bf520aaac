// Package main provides the scaleout training CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/parallel"
	"github.com/born-ml/scaleout/internal/scaleout"
	"github.com/born-ml/scaleout/internal/serialization"
	"github.com/pkg/errors"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "version":
		fmt.Printf("scaleout %s\n", version)
	case "train":
		logger := log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
		if err := train(os.Args[2:], logger); err != nil {
			logger.Fatalf("train: %+v", err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("scaleout - data-parallel training by parameter averaging")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version    Show version")
	fmt.Println("  train      Train a network (scaleout train -h for flags)")
}

func train(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	confPath := fs.String("conf", "", "network configuration JSON file (required)")
	dataPath := fs.String("data", "", "training CSV, label in the last column (required)")
	numLabels := fs.Int("labels", 1, "number of classes; 1 means a regression target")
	partitions := fs.Int("partitions", 0, "partitions per round (default: one per CPU)")
	rounds := fs.Int("rounds", 10, "training rounds")
	workers := fs.Int("workers", 0, "partitions trained concurrently (default: one per CPU)")
	checkpoint := fs.String("checkpoint", "", "checkpoint file, rewritten after every round")
	resume := fs.Bool("resume", false, "resume from -checkpoint if it exists")
	verbose := fs.Bool("v", false, "log every partition")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *confPath == "" || *dataPath == "" {
		fs.Usage()
		return errors.New("-conf and -data are required")
	}

	raw, err := os.ReadFile(*confPath)
	if err != nil {
		return errors.Wrap(err, "read configuration")
	}
	c, err := conf.FromJSON(string(raw))
	if err != nil {
		return err
	}
	data, err := loadData(*dataPath, *numLabels)
	if err != nil {
		return err
	}
	logger.Printf("loaded %s", data)

	cfg := scaleout.DefaultMasterConfig()
	cfg.Conf = c
	cfg.Rounds = *rounds
	cfg.Parallel = parallel.TaskConfig(*workers)
	if *partitions > 0 {
		cfg.NumPartitions = *partitions
	}
	cfg.CheckpointPath = *checkpoint
	cfg.Logger = logger
	cfg.Verbose = *verbose

	master, err := scaleout.NewMaster(cfg)
	if err != nil {
		return err
	}
	if *resume && *checkpoint != "" {
		if err := resumeFrom(master, *checkpoint, logger); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := master.Fit(ctx, data)
	if err != nil {
		return err
	}
	logger.Printf("finished %d rounds (total %d): score %g, best partition score %g",
		summary.Rounds, summary.Round, summary.Score, summary.BestScore)
	return nil
}

func loadData(path string, numLabels int) (*dataset.DataSet, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-supplied training file.
	if err != nil {
		return nil, errors.Wrap(err, "open data")
	}
	defer func() { _ = f.Close() }()
	return dataset.ReadCSV(f, numLabels)
}

func resumeFrom(master *scaleout.Master, path string, logger *log.Logger) error {
	ckpt, err := serialization.LoadFile(path, serialization.ReaderOptions{})
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("no checkpoint at %s, starting fresh", path)
		return nil
	}
	if err != nil {
		return err
	}
	return master.Resume(ckpt)
}
