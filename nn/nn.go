// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"log"

	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/nn"
)

// Configuration types.
type (
	// Configuration describes a whole network.
	Configuration = conf.MultiLayerConfiguration
	// Layer holds one dense layer's shape and hyperparameters.
	Layer = conf.Layer
	// Activation names a layer activation function.
	Activation = conf.Activation
	// LossFunction names an output-layer loss.
	LossFunction = conf.LossFunction
	// GradientNormalization selects a layer's gradient normalization policy.
	GradientNormalization = conf.GradientNormalization
	// ConfigurationError is a fatal, non-retryable misconfiguration.
	ConfigurationError = conf.ConfigurationError
)

// ErrConfiguration matches every *ConfigurationError via errors.Is.
var ErrConfiguration = conf.ErrConfiguration

// Activations.
const (
	Identity = conf.Identity
	ReLU     = conf.ReLU
	Sigmoid  = conf.Sigmoid
	Tanh     = conf.Tanh
	Softmax  = conf.Softmax
)

// Loss functions.
const (
	MSE    = conf.MSE
	MCXENT = conf.MCXENT
)

// Gradient normalization policies.
const (
	NoNormalization              = conf.NoNormalization
	RenormalizeL2PerLayer        = conf.RenormalizeL2PerLayer
	RenormalizeL2PerParamType    = conf.RenormalizeL2PerParamType
	ClipElementWiseAbsoluteValue = conf.ClipElementWiseAbsoluteValue
	ClipL2PerLayer               = conf.ClipL2PerLayer
	ClipL2PerParamType           = conf.ClipL2PerParamType
)

// ParseConfiguration decodes and validates a JSON configuration.
func ParseConfiguration(s string) (*Configuration, error) {
	return conf.FromJSON(s)
}

// MultiLayerNetwork is a stack of dense layers with a loss on the last one.
type MultiLayerNetwork = nn.MultiLayerNetwork

// DenseLayer is one fully connected layer of a MultiLayerNetwork.
type DenseLayer = nn.DenseLayer

// New builds an uninitialized network. Call Init before training.
func New(c *Configuration) (*MultiLayerNetwork, error) {
	return nn.New(c)
}

// FromJSON parses a configuration and builds a network from it.
func FromJSON(s string) (*MultiLayerNetwork, error) {
	return nn.FromJSON(s)
}

// Listeners

// IterationListener is notified after every training step.
type IterationListener = nn.IterationListener

// IterationListenerFunc adapts a function to IterationListener.
type IterationListenerFunc = nn.IterationListenerFunc

// ScoreIterationListener logs the score every PrintIterations steps.
type ScoreIterationListener = nn.ScoreIterationListener

// NewScoreIterationListener creates a ScoreIterationListener.
//
// Example:
//
//	logger := log.New(os.Stdout, "", log.LstdFlags)
//	net.SetListeners(nn.NewScoreIterationListener(10, logger))
func NewScoreIterationListener(printIterations int, logger *log.Logger) *ScoreIterationListener {
	return nn.NewScoreIterationListener(printIterations, logger)
}
