// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package scaleout

import (
	"io"

	"github.com/born-ml/scaleout/internal/accumulator"
	"github.com/born-ml/scaleout/internal/broadcast"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/scaleout"
	"github.com/born-ml/scaleout/internal/serialization"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
)

// Partition tasks

// Task trains one partition for one step.
type Task = scaleout.Task

// TaskConfig holds the broadcast state and settings for one partition.
type TaskConfig = scaleout.TaskConfig

// Result is what one partition reports back to the driver.
type Result = scaleout.Result

// GradientPair couples a flat gradient with updater state.
type GradientPair = scaleout.GradientPair

// NewTask returns a task. A nil broadcast updater state is a configuration
// error.
func NewTask(cfg TaskConfig) (*Task, error) {
	return scaleout.NewTask(cfg)
}

// GradientFromPair projects the gradient out of p.
func GradientFromPair(p GradientPair) *tensor.Dense {
	return scaleout.GradientFromPair(p)
}

// Reduce averages parameters and scores and aggregates updater state.
func Reduce(results []Result) (*tensor.Dense, *UpdaterState, float64, error) {
	return scaleout.Reduce(results)
}

// ReduceGradients averages the gradients of pairs and aggregates their updater
// state.
func ReduceGradients(pairs []GradientPair) (*tensor.Dense, *UpdaterState, error) {
	return scaleout.ReduceGradients(pairs)
}

// ErrNoResults is returned by Reduce and ReduceGradients when there is
// nothing to reduce.
var ErrNoResults = scaleout.ErrNoResults

// Driver

// Master runs rounds of partition tasks and reduces their results.
type Master = scaleout.Master

// MasterConfig configures a Master.
type MasterConfig = scaleout.MasterConfig

// Summary describes a finished Fit call.
type Summary = scaleout.Summary

// DefaultMasterConfig returns a config with one partition per CPU.
func DefaultMasterConfig() MasterConfig {
	return scaleout.DefaultMasterConfig()
}

// NewMaster validates cfg and initializes the parameters.
func NewMaster(cfg MasterConfig) (*Master, error) {
	return scaleout.NewMaster(cfg)
}

// Shared state

// UpdaterState is the updater state of a whole network.
type UpdaterState = updater.MultiLayer

// NewUpdaterState creates empty updater state for n layers.
func NewUpdaterState(n int) *UpdaterState {
	return updater.NewMultiLayer(n)
}

// BroadcastParams wraps parameters for read-only sharing between tasks. The
// caller must not mutate params afterwards.
func BroadcastParams(params *tensor.Dense) *broadcast.Value[*tensor.Dense] {
	return broadcast.New(params)
}

// BroadcastUpdater wraps updater state for read-only sharing between tasks.
func BroadcastUpdater(state *UpdaterState) *broadcast.Value[*UpdaterState] {
	return broadcast.New(state)
}

// BestScore is a concurrent max accumulator.
type BestScore = accumulator.Max

// NewBestScore returns a BestScore holding -Inf.
func NewBestScore() *BestScore {
	return accumulator.NewMax()
}

// Data

// DataSet is a batch of examples.
type DataSet = dataset.DataSet

// NewDataSet builds a data set from feature and label rows.
func NewDataSet(features, labels [][]float64) (*DataSet, error) {
	return dataset.FromRows(features, labels)
}

// ReadCSV reads examples whose last column is the label. With numLabels > 1
// the label is a class index and is one-hot encoded.
func ReadCSV(r io.Reader, numLabels int) (*DataSet, error) {
	return dataset.ReadCSV(r, numLabels)
}

// Checkpoints

// Checkpoint is the resumable state of a training run.
type Checkpoint = serialization.Checkpoint

// ReaderOptions configures checkpoint decoding.
type ReaderOptions = serialization.ReaderOptions

// SaveCheckpoint atomically writes c to path.
func SaveCheckpoint(path string, c *Checkpoint) error {
	return serialization.SaveFile(path, c)
}

// LoadCheckpoint reads a checkpoint from path.
func LoadCheckpoint(path string, opts ReaderOptions) (*Checkpoint, error) {
	return serialization.LoadFile(path, opts)
}
