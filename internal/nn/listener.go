package nn

import (
	"io"
	"log"
)

// IterationListener is notified after every training iteration.
type IterationListener interface {
	IterationDone(net *MultiLayerNetwork, iteration int)
}

// IterationListenerFunc adapts a function to IterationListener.
type IterationListenerFunc func(net *MultiLayerNetwork, iteration int)

// IterationDone calls f.
func (f IterationListenerFunc) IterationDone(net *MultiLayerNetwork, iteration int) {
	f(net, iteration)
}

// ScoreIterationListener logs the network score every PrintIterations
// iterations.
type ScoreIterationListener struct {
	PrintIterations int
	Logger          *log.Logger
}

// NewScoreIterationListener creates a listener logging to logger (nil
// discards).
func NewScoreIterationListener(printIterations int, logger *log.Logger) *ScoreIterationListener {
	if printIterations <= 0 {
		printIterations = 1
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ScoreIterationListener{PrintIterations: printIterations, Logger: logger}
}

// IterationDone implements IterationListener.
func (s *ScoreIterationListener) IterationDone(net *MultiLayerNetwork, iteration int) {
	if iteration%s.PrintIterations == 0 {
		s.Logger.Printf("Score at iteration %d is %g", iteration, net.Score())
	}
}
