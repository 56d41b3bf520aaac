package scaleout

import (
	"context"
	"io"
	"log"
	"math"
	"os"
	"slices"
	"strconv"

	"github.com/born-ml/scaleout/internal/accumulator"
	"github.com/born-ml/scaleout/internal/broadcast"
	"github.com/born-ml/scaleout/internal/conf"
	"github.com/born-ml/scaleout/internal/dataset"
	"github.com/born-ml/scaleout/internal/nn"
	"github.com/born-ml/scaleout/internal/parallel"
	"github.com/born-ml/scaleout/internal/serialization"
	"github.com/born-ml/scaleout/internal/tensor"
	"github.com/born-ml/scaleout/internal/updater"
	"github.com/pkg/errors"
)

// MasterConfig configures the driver loop.
type MasterConfig struct {
	Conf          *conf.MultiLayerConfiguration
	NumPartitions int             // Partitions per round
	Rounds        int             // Rounds per Fit call
	Parallel      parallel.Config // How partitions are scheduled

	// CheckpointPath, if set, is rewritten after every round.
	CheckpointPath string

	Logger  *log.Logger
	Verbose bool // Per-partition logging
}

// DefaultMasterConfig returns a config with one partition per CPU, ten rounds
// and logging to stdout. Conf must still be set.
func DefaultMasterConfig() MasterConfig {
	p := parallel.TaskConfig(0)
	return MasterConfig{
		NumPartitions: p.NumWorkers,
		Rounds:        10,
		Parallel:      p,
		Logger:        log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile),
	}
}

// Summary describes a finished Fit call.
type Summary struct {
	Rounds    int       // Rounds run by this call
	Round     int       // Total rounds completed, including resumed ones
	Score     float64   // Mean partition score of the last round
	BestScore float64   // Accumulated best partition score
	Scores    []float64 // Mean partition score per round
}

// Master owns the current parameters and updater state and runs rounds of
// partition tasks against them.
type Master struct {
	cfg      MasterConfig
	confJSON string
	net      *nn.MultiLayerNetwork
	params   *tensor.Dense
	updater  *updater.MultiLayer
	best     *accumulator.Max
	round    int
	score    float64
	logger   *log.Logger
}

// NewMaster validates cfg and initializes the parameters from the configured
// seed.
func NewMaster(cfg MasterConfig) (*Master, error) {
	if cfg.Conf == nil {
		return nil, conf.Errorf("conf", "network configuration is required")
	}
	if cfg.NumPartitions < 1 {
		return nil, conf.Errorf("partitions", "must be at least 1, got %d", cfg.NumPartitions)
	}
	if cfg.Rounds < 1 {
		return nil, conf.Errorf("rounds", "must be at least 1, got %d", cfg.Rounds)
	}
	net, err := nn.New(cfg.Conf)
	if err != nil {
		return nil, err
	}
	confJSON, err := cfg.Conf.ToJSON()
	if err != nil {
		return nil, err
	}
	net.Init()

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Master{
		cfg:      cfg,
		confJSON: confJSON,
		net:      net,
		params:   net.Params(),
		updater:  net.Updater().Clone(),
		best:     accumulator.NewMax(),
		score:    math.NaN(),
		logger:   logger,
	}, nil
}

// Resume continues from a checkpoint written by a master with the same
// network configuration.
func (m *Master) Resume(c *serialization.Checkpoint) error {
	if c == nil {
		return errors.New("scaleout: nil checkpoint")
	}
	if c.Conf != m.confJSON {
		return conf.Errorf("conf", "checkpoint was written for a different network")
	}
	if c.Params.Len() != m.net.NumParams() {
		return conf.Errorf("params", "checkpoint has %d parameters, network expects %d", c.Params.Len(), m.net.NumParams())
	}
	if c.Updater != nil {
		if c.Updater.NumLayers() != m.net.NumLayers() {
			return conf.Errorf("updater", "checkpoint has %d updater layers, network has %d", c.Updater.NumLayers(), m.net.NumLayers())
		}
		m.updater = c.Updater.Clone()
	}
	m.params = c.Params.Clone()
	m.round = c.Round
	m.score = c.Score
	m.best.Add(c.BestScore)
	m.logger.Printf("resumed at round %d, score %g", m.round, m.score)
	return nil
}

// Fit runs cfg.Rounds rounds over data. Each round broadcasts the current
// state, trains every partition for one step in parallel and reduces the
// results. Fit stops between rounds when ctx is done.
func (m *Master) Fit(ctx context.Context, data *dataset.DataSet) (*Summary, error) {
	if data.NumExamples() == 0 {
		return nil, errors.WithStack(dataset.ErrEmpty)
	}
	parts, err := data.Split(m.cfg.NumPartitions)
	if err != nil {
		return nil, err
	}

	s := &Summary{}
	for r := 0; r < m.cfg.Rounds; r++ {
		if err := ctx.Err(); err != nil {
			return m.summarize(s), errors.WithStack(err)
		}
		if err := m.runRound(ctx, parts); err != nil {
			return m.summarize(s), errors.Wrapf(err, "round %d", m.round)
		}
		s.Rounds++
		s.Scores = append(s.Scores, m.score)
		m.logger.Printf("round %d: score %g, best partition score %g", m.round, m.score, m.best.Value())

		if m.cfg.CheckpointPath != "" {
			if err := m.checkpoint(); err != nil {
				return m.summarize(s), err
			}
		}
	}
	return m.summarize(s), nil
}

func (m *Master) runRound(ctx context.Context, parts [][]*dataset.DataSet) error {
	params := broadcast.New(m.params)
	state := broadcast.New(m.updater)

	results := make([][]Result, len(parts))
	err := parallel.ForErr(len(parts), func(i int) error {
		task, err := NewTask(TaskConfig{
			Partition: i,
			ConfJSON:  m.confJSON,
			Params:    params,
			Updater:   state,
			BestScore: m.best,
			Logger:    m.logger,
			Verbose:   m.cfg.Verbose,
		})
		if err != nil {
			return err
		}
		results[i], err = task.Call(ctx, slices.Values(parts[i]))
		return err
	}, m.cfg.Parallel)
	if err != nil {
		return err
	}

	p, u, score, err := Reduce(slices.Concat(results...))
	if err != nil {
		return err
	}
	m.params = p
	if u != nil {
		m.updater = u
	}
	m.score = score
	m.round++
	return nil
}

func (m *Master) checkpoint() error {
	err := serialization.SaveFile(m.cfg.CheckpointPath, &serialization.Checkpoint{
		Params:    m.params,
		Updater:   m.updater,
		Conf:      m.confJSON,
		Round:     m.round,
		Score:     m.score,
		BestScore: m.best.Value(),
		Metadata:  map[string]string{"partitions": strconv.Itoa(m.cfg.NumPartitions)},
	})
	return errors.Wrap(err, "scaleout: write checkpoint")
}

func (m *Master) summarize(s *Summary) *Summary {
	s.Round = m.round
	s.Score = m.score
	s.BestScore = m.best.Value()
	return s
}

// Params returns a copy of the current parameters.
func (m *Master) Params() *tensor.Dense {
	return m.params.Clone()
}

// Updater returns a copy of the current updater state.
func (m *Master) Updater() *updater.MultiLayer {
	return m.updater.Clone()
}

// Round returns the number of completed rounds.
func (m *Master) Round() int {
	return m.round
}

// Network returns a network loaded with the current parameters and updater
// state.
func (m *Master) Network() (*nn.MultiLayerNetwork, error) {
	net, err := nn.FromJSON(m.confJSON)
	if err != nil {
		return nil, err
	}
	if err := net.SetParams(m.params); err != nil {
		return nil, err
	}
	if err := net.SetUpdater(m.updater.Clone()); err != nil {
		return nil, err
	}
	return net, nil
}
