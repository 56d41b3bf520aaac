// Package conf describes network topology and training hyperparameters.
//
// A MultiLayerConfiguration is the JSON document shipped to every worker; each
// worker rebuilds its network from it. Per-layer NeuralNetConfiguration values
// are private copies, so learning-rate and momentum schedules applied during
// training never touch the shared document.
//
// Example:
//
//	{
//	  "seed": 42,
//	  "miniBatch": true,
//	  "layers": [
//	    {"nIn": 4, "nOut": 8, "activation": "relu", "updater": "NESTEROVS",
//	     "learningRate": 0.1, "momentum": 0.9},
//	    {"nIn": 8, "nOut": 3, "activation": "softmax", "loss": "mcxent",
//	     "gradientNormalization": "ClipL2PerLayer", "gradientNormalizationThreshold": 1}
//	  ]
//	}
package conf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"

	"github.com/born-ml/scaleout/internal/optim"
)

// Activation names a layer activation function.
type Activation string

// Activations.
const (
	Identity Activation = "identity"
	ReLU     Activation = "relu"
	Sigmoid  Activation = "sigmoid"
	Tanh     Activation = "tanh"
	Softmax  Activation = "softmax"
)

// LossFunction names an output-layer loss.
type LossFunction string

// Loss functions.
const (
	MSE    LossFunction = "mse"
	MCXENT LossFunction = "mcxent" // Multi-class cross entropy
)

// Layer holds one dense layer's shape and training hyperparameters.
type Layer struct {
	Name       string       `json:"name,omitempty"`
	NIn        int          `json:"nIn"`
	NOut       int          `json:"nOut"`
	Activation Activation   `json:"activation"`
	Loss       LossFunction `json:"loss,omitempty"` // Output layer only

	Updater      optim.Kind `json:"updater"`
	// LearningRate is used as is; zero freezes the layer. A JSON layer without
	// the key gets optim.Defaults(Updater).LearningRate.
	LearningRate float64    `json:"learningRate"`
	Momentum     float64    `json:"momentum,omitempty"`
	RMSDecay     float64    `json:"rmsDecay,omitempty"`
	Rho          float64    `json:"rho,omitempty"`
	Beta1        float64    `json:"adamMeanDecay,omitempty"`
	Beta2        float64    `json:"adamVarDecay,omitempty"`
	Epsilon      float64    `json:"epsilon,omitempty"`

	L1 float64 `json:"l1,omitempty"`
	L2 float64 `json:"l2,omitempty"`

	// Iteration -> new value. Applied when UseSchedules is set.
	LearningRateSchedule map[int]float64 `json:"learningRateSchedule,omitempty"`
	MomentumSchedule     map[int]float64 `json:"momentumSchedule,omitempty"`

	GradientNormalization          GradientNormalization `json:"gradientNormalization"`
	GradientNormalizationThreshold float64               `json:"gradientNormalizationThreshold,omitempty"`
}

// UnmarshalJSON decodes a layer, defaulting the updater to SGD, the
// activation to sigmoid and the learning rate to the updater's default when
// they are absent.
func (l *Layer) UnmarshalJSON(b []byte) error {
	type plain Layer
	p := plain{Updater: optim.SGD, Activation: Sigmoid}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(b, &keys); err != nil {
		return err
	}
	if _, ok := keys["learningRate"]; !ok {
		p.LearningRate = optim.Defaults(p.Updater).LearningRate
	}
	*l = Layer(p)
	return nil
}

// Hyper returns the layer's updater hyperparameters.
func (l *Layer) Hyper() optim.Hyper {
	return optim.Hyper{
		LearningRate: l.LearningRate,
		Momentum:     l.Momentum,
		RMSDecay:     l.RMSDecay,
		Rho:          l.Rho,
		Beta1:        l.Beta1,
		Beta2:        l.Beta2,
		Epsilon:      l.Epsilon,
	}
}

// NumParams returns the number of weights plus biases.
func (l *Layer) NumParams() int {
	return l.NIn*l.NOut + l.NOut
}

func (l *Layer) clone() *Layer {
	c := *l
	c.LearningRateSchedule = maps.Clone(l.LearningRateSchedule)
	c.MomentumSchedule = maps.Clone(l.MomentumSchedule)
	return &c
}

// NeuralNetConfiguration is the configuration one layer trains under: the
// network-wide switches plus that layer's own settings.
type NeuralNetConfiguration struct {
	Seed              int64
	UseRegularization bool
	MiniBatch         bool
	UseSchedules      bool
	Layer             *Layer
}

// MultiLayerConfiguration is the serialized description of a whole network.
type MultiLayerConfiguration struct {
	Seed              int64   `json:"seed"`
	UseRegularization bool    `json:"useRegularization,omitempty"`
	MiniBatch         bool    `json:"miniBatch"`
	UseSchedules      bool    `json:"useSchedules,omitempty"`
	Layers            []Layer `json:"layers"`
}

// FromJSON parses and validates a configuration.
func FromJSON(s string) (*MultiLayerConfiguration, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()

	var c MultiLayerConfiguration
	if err := dec.Decode(&c); err != nil {
		return nil, Errorf("json", "%v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ToJSON serializes the configuration.
func (c *MultiLayerConfiguration) ToJSON() (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", Errorf("json", "%v", err)
	}
	return string(b), nil
}

// Validate checks topology and hyperparameters.
//
//nolint:gocyclo,cyclop // One check per field.
func (c *MultiLayerConfiguration) Validate() error {
	if len(c.Layers) == 0 {
		return Errorf("layers", "at least one layer is required")
	}
	last := len(c.Layers) - 1
	for i := range c.Layers {
		l := &c.Layers[i]
		field := fmt.Sprintf("layers[%d]", i)

		if l.NIn <= 0 || l.NOut <= 0 {
			return Errorf(field, "nIn and nOut must be positive, got %d and %d", l.NIn, l.NOut)
		}
		if i > 0 && l.NIn != c.Layers[i-1].NOut {
			return Errorf(field, "nIn %d does not match previous nOut %d", l.NIn, c.Layers[i-1].NOut)
		}
		if l.Activation == "" {
			l.Activation = Sigmoid
		}
		switch l.Activation {
		case Identity, ReLU, Sigmoid, Tanh, Softmax:
		default:
			return Errorf(field+".activation", "unknown activation %q", l.Activation)
		}
		switch {
		case i == last && l.Loss == "":
			return Errorf(field+".loss", "output layer needs a loss function")
		case i != last && l.Loss != "":
			return Errorf(field+".loss", "only the output layer may set a loss")
		case l.Loss != "" && l.Loss != MSE && l.Loss != MCXENT:
			return Errorf(field+".loss", "unknown loss %q", l.Loss)
		case l.Loss == MCXENT && l.Activation != Softmax:
			return Errorf(field+".loss", "mcxent requires softmax activation, got %q", l.Activation)
		}
		if !l.Updater.Valid() {
			return Errorf(field+".updater", "unknown updater %s", l.Updater)
		}
		if !l.GradientNormalization.Valid() {
			return Errorf(field+".gradientNormalization", "unknown policy %s", l.GradientNormalization)
		}
		if l.GradientNormalizationThreshold < 0 {
			return Errorf(field+".gradientNormalizationThreshold", "must be non-negative, got %g", l.GradientNormalizationThreshold)
		}
		if l.LearningRate < 0 || l.L1 < 0 || l.L2 < 0 {
			return Errorf(field, "learningRate, l1 and l2 must be non-negative")
		}
		if err := validateSchedule(field+".learningRateSchedule", l.LearningRateSchedule); err != nil {
			return err
		}
		if err := validateSchedule(field+".momentumSchedule", l.MomentumSchedule); err != nil {
			return err
		}
	}
	return nil
}

func validateSchedule(field string, schedule map[int]float64) error {
	for it, v := range schedule {
		if it < 0 {
			return Errorf(field, "negative iteration %d", it)
		}
		if v < 0 || math.IsNaN(v) {
			return Errorf(field, "iteration %d: value must be non-negative, got %g", it, v)
		}
	}
	return nil
}

// NumParams returns the total parameter count of the network.
func (c *MultiLayerConfiguration) NumParams() int {
	n := 0
	for i := range c.Layers {
		n += c.Layers[i].NumParams()
	}
	return n
}

// LayerConf returns an independent per-layer configuration for layer i.
func (c *MultiLayerConfiguration) LayerConf(i int) *NeuralNetConfiguration {
	return &NeuralNetConfiguration{
		Seed:              c.Seed,
		UseRegularization: c.UseRegularization,
		MiniBatch:         c.MiniBatch,
		UseSchedules:      c.UseSchedules,
		Layer:             c.Layers[i].clone(),
	}
}
