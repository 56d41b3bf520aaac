// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package scaleout trains networks by iterative parameter averaging over
// partitions of a data set.
//
// # Overview
//
// Every round the driver broadcasts the current parameters and updater state.
// Each partition drains its examples into one batch, rebuilds the network from
// its JSON configuration, loads a private copy of the broadcast state and takes
// exactly one training step. The driver then averages the partition parameters
// and aggregates their updater state into the state for the next round.
//
// # Basic Usage
//
//	cfg := scaleout.DefaultMasterConfig()
//	cfg.Conf = netConf
//	cfg.Rounds = 100
//	cfg.CheckpointPath = "run.born"
//
//	master, err := scaleout.NewMaster(cfg)
//	if err != nil {
//	    return err
//	}
//	summary, err := master.Fit(ctx, data)
//	if err != nil {
//	    return err
//	}
//	fmt.Println("final score", summary.Score)
//
// # Running Tasks Elsewhere
//
// Task is the per-partition unit of work and can be driven by any executor:
//
//	task, err := scaleout.NewTask(scaleout.TaskConfig{
//	    Partition: i,
//	    ConfJSON:  confJSON,
//	    Params:    scaleout.BroadcastParams(params),
//	    Updater:   scaleout.BroadcastUpdater(state),
//	})
//	results, err := task.Call(ctx, slices.Values(records))
//
// An empty partition returns no results without building a network.
package scaleout
