// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the gradient updaters applied to every parameter
// during training, and the aggregators that merge updater state trained by
// parallel workers.
//
// # Overview
//
// This package contains:
//   - None: pass-through, the gradient is the step
//   - SGD: step = learningRate * gradient
//   - Nesterovs: Nesterov momentum
//   - AdaGrad, RMSProp, AdaDelta: per-element adaptive rates
//   - Adam: adaptive moments with bias correction
//
// # Basic Usage
//
//	u, err := optim.New(optim.Adam, optim.Hyper{LearningRate: 1e-3})
//	if err != nil {
//	    return err
//	}
//	for it := range iterations {
//	    param.Sub(u.Step(grad, it))
//	}
//
// # Aggregation
//
// Workers that trained copies of the same updater report their state to the
// driver, which folds it into one updater:
//
//	agg := workers[0].Aggregator()
//	for _, w := range workers[1:] {
//	    if err := agg.Aggregate(w); err != nil {
//	        return err // different kinds: a wiring bug
//	    }
//	}
//	merged := agg.Updater() // state averaged over the workers
package optim
