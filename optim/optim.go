// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/scaleout/internal/optim"
	"github.com/born-ml/scaleout/internal/tensor"
)

// Kind identifies an updater rule.
type Kind = optim.Kind

// Updater kinds.
const (
	None      = optim.None
	SGD       = optim.SGD
	Nesterovs = optim.Nesterovs
	AdaGrad   = optim.AdaGrad
	RMSProp   = optim.RMSProp
	Adam      = optim.Adam
	AdaDelta  = optim.AdaDelta
)

// Hyper holds updater hyperparameters.
type Hyper = optim.Hyper

// GradientUpdater turns a gradient into the step subtracted from a parameter.
type GradientUpdater = optim.GradientUpdater

// Aggregator combines the state of many updaters of one kind.
type Aggregator = optim.Aggregator

// AggregationError reports an attempt to combine incompatible updaters.
type AggregationError = optim.AggregationError

// Errors.
var (
	ErrUnknownKind = optim.ErrUnknownKind
	ErrAggregation = optim.ErrAggregation
	ErrStateDict   = optim.ErrStateDict
)

// ParseKind parses a kind name such as "adam" or "NESTEROVS".
func ParseKind(s string) (Kind, error) {
	return optim.ParseKind(s)
}

// Defaults returns the hyperparameters a fresh updater of kind starts from.
func Defaults(kind Kind) Hyper {
	return optim.Defaults(kind)
}

// New creates an updater. Zero hyperparameters the kind needs are replaced by
// Defaults(kind).
//
// Example:
//
//	u, err := optim.New(optim.Nesterovs, optim.Hyper{LearningRate: 0.1, Momentum: 0.9})
func New(kind Kind, hyper Hyper) (GradientUpdater, error) {
	return optim.New(kind, hyper)
}

// MustNew is like New but panics on error.
func MustNew(kind Kind, hyper Hyper) GradientUpdater {
	return optim.MustNew(kind, hyper)
}

// Restore creates an updater with exactly the given hyperparameters and loads
// previously exported state into it.
func Restore(kind Kind, hyper Hyper, state map[string]*tensor.Dense) (GradientUpdater, error) {
	return optim.Restore(kind, hyper, state)
}

// EqualApprox reports whether a and b match within tol. Updaters materialized
// from an aggregator match their sources only within rounding.
func EqualApprox(a, b GradientUpdater, tol float64) bool {
	return optim.EqualApprox(a, b, tol)
}
