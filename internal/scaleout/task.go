// Package scaleout runs data-parallel training: every partition of a data set
// takes one local step from shared broadcast state, and the driver reduces the
// partition results into the state for the next round.
package scaleout

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log"

	"github.com/born-ml/scaleout/internal/accumulator"
	"github.com/born-ml/scaleout/internal/broadcast"
	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/nn"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
)

// Result is what one partition reports back to the driver.
type Result struct {
	Params  *tensor.Dense
	Updater *updater.MultiLayer
	Score   float64
}

// TaskConfig holds the broadcast state and settings for one partition.
type TaskConfig struct {
	Partition int    // Partition index, used in log lines
	ConfJSON  string // Network configuration

	Params  *broadcast.Value[*tensor.Dense]
	Updater *broadcast.Value[*updater.MultiLayer]

	// BestScore, if set, receives the score of the local step.
	BestScore *accumulator.Max

	// Tasks of one round write to Logger's writer concurrently. The score of
	// every step is logged; Verbose adds partition details.
	Logger  *log.Logger
	Verbose bool
}

// Task trains one partition for one step.
type Task struct {
	cfg    TaskConfig
	logger *log.Logger
}

// NewTask checks the broadcast updater state and returns a task.
func NewTask(cfg TaskConfig) (*Task, error) {
	if cfg.Updater.IsNil() {
		return nil, conf.Errorf("updater", "broadcast updater state is nil")
	}
	out, flags := io.Discard, 0
	if cfg.Logger != nil {
		out, flags = cfg.Logger.Writer(), cfg.Logger.Flags()
	}
	return &Task{
		cfg:    cfg,
		logger: log.New(out, fmt.Sprintf("partition %d: ", cfg.Partition), flags),
	}, nil
}

// Call drains records into one batch and runs a single training step on a
// network rebuilt from the broadcast state. An empty partition yields no
// results and touches neither the network nor the broadcast values.
func (t *Task) Call(ctx context.Context, records iter.Seq[*dataset.DataSet]) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	var batch []*dataset.DataSet
	for r := range records {
		if r.NumExamples() > 0 {
			batch = append(batch, r)
		}
	}
	if len(batch) == 0 {
		if t.cfg.Verbose {
			t.logger.Println("empty partition, skipping")
		}
		return nil, nil
	}

	data, err := dataset.Merge(batch)
	if err != nil {
		return nil, errors.Wrap(err, "merge partition")
	}
	if t.cfg.Verbose {
		t.logger.Printf("training on %d examples, label counts %v", data.NumExamples(), data.LabelCounts())
	}

	if t.cfg.Params.IsNil() {
		return nil, conf.Errorf("params", "broadcast parameters are nil")
	}
	params := t.cfg.Params.Clone()
	state := t.cfg.Updater.Clone()

	net, err := nn.FromJSON(t.cfg.ConfJSON)
	if err != nil {
		return nil, err
	}
	net.Init()
	if params.Len() != net.NumParams() {
		return nil, conf.Errorf("params", "broadcast has %d parameters, network expects %d", params.Len(), net.NumParams())
	}
	if err := net.SetParams(params); err != nil {
		return nil, err
	}
	if err := net.SetUpdater(state); err != nil {
		return nil, err
	}

	listeners := []nn.IterationListener{nn.NewScoreIterationListener(1, t.logger)}
	if t.cfg.BestScore != nil {
		listeners = append(listeners, accumulator.BestScoreListener{Best: t.cfg.BestScore})
	}
	net.SetListeners(listeners...)

	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := net.Fit(data); err != nil {
		return nil, errors.Wrapf(err, "partition %d", t.cfg.Partition)
	}
	return []Result{{Params: net.Params(), Updater: net.Updater(), Score: net.Score()}}, nil
}

// GradientPair couples a flat gradient with the updater state that produced it.
// ReduceGradients combines pairs from several workers.
type GradientPair struct {
	Gradient *tensor.Dense
	Updater  *updater.MultiLayer
}

// GradientFromPair projects the gradient out of p.
func GradientFromPair(p GradientPair) *tensor.Dense {
	return p.Gradient
}
