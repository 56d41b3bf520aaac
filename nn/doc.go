// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the dense feed-forward networks trained by scaleout.
//
// # Overview
//
// A network is described by a Configuration, usually decoded from JSON so it
// can be shipped to workers unchanged:
//
//	{
//	  "seed": 42,
//	  "miniBatch": true,
//	  "layers": [
//	    {"nIn": 4, "nOut": 8, "activation": "relu", "updater": "NESTEROVS",
//	     "learningRate": 0.1, "momentum": 0.9},
//	    {"nIn": 8, "nOut": 3, "activation": "softmax", "loss": "mcxent"}
//	  ]
//	}
//
// # Basic Usage
//
//	net, err := nn.FromJSON(confJSON)
//	if err != nil {
//	    return err
//	}
//	net.Init()
//	net.SetListeners(nn.NewScoreIterationListener(10, logger))
//	for range 100 {
//	    if err := net.Fit(data); err != nil {
//	        return err
//	    }
//	}
//
// Fit runs exactly one forward, backward and update step over the whole
// batch. Gradients go through the layer's normalization policy and updater
// before they are subtracted from the parameters.
package nn
