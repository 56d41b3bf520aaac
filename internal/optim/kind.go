package optim

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind identifies an updater rule. The set is closed: New and Restore only
// construct the kinds listed here.
type Kind int

// Updater kinds.
const (
	None Kind = iota
	SGD
	Nesterovs
	AdaGrad
	RMSProp
	Adam
	AdaDelta
)

var kindNames = [...]string{
	None:      "NONE",
	SGD:       "SGD",
	Nesterovs: "NESTEROVS",
	AdaGrad:   "ADAGRAD",
	RMSProp:   "RMSPROP",
	Adam:      "ADAM",
	AdaDelta:  "ADADELTA",
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= None && int(k) < len(kindNames)
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind parses a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(k), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "%d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Hyper holds updater hyperparameters. Fields a kind does not use are carried
// along unchanged.
type Hyper struct {
	LearningRate float64 `json:"learningRate"`
	Momentum     float64 `json:"momentum,omitempty"`
	RMSDecay     float64 `json:"rmsDecay,omitempty"`
	Rho          float64 `json:"rho,omitempty"`
	Beta1        float64 `json:"beta1,omitempty"`
	Beta2        float64 `json:"beta2,omitempty"`
	Epsilon      float64 `json:"epsilon,omitempty"`
}

// Defaults returns the hyperparameters a fresh updater of kind starts from.
// Fields the kind does not use are zero.
func Defaults(kind Kind) Hyper {
	return Hyper{}.withDefaults(kind)
}

// withDefaults fills zero fields used by kind.
func (h Hyper) withDefaults(kind Kind) Hyper {
	if h.LearningRate == 0 && kind != None && kind != AdaDelta {
		h.LearningRate = 0.1
	}
	switch kind {
	case AdaGrad:
		if h.Epsilon == 0 {
			h.Epsilon = 1e-6
		}
	case RMSProp:
		if h.RMSDecay == 0 {
			h.RMSDecay = 0.95
		}
		if h.Epsilon == 0 {
			h.Epsilon = 1e-8
		}
	case Adam:
		if h.Beta1 == 0 {
			h.Beta1 = 0.9
		}
		if h.Beta2 == 0 {
			h.Beta2 = 0.999
		}
		if h.Epsilon == 0 {
			h.Epsilon = 1e-8
		}
	case AdaDelta:
		if h.Rho == 0 {
			h.Rho = 0.95
		}
		if h.Epsilon == 0 {
			h.Epsilon = 1e-6
		}
	}
	return h
}

func (h Hyper) values() []float64 {
	return []float64{h.LearningRate, h.Momentum, h.RMSDecay, h.Rho, h.Beta1, h.Beta2, h.Epsilon}
}

func (h Hyper) add(o Hyper) Hyper {
	return Hyper{
		LearningRate: h.LearningRate + o.LearningRate,
		Momentum:     h.Momentum + o.Momentum,
		RMSDecay:     h.RMSDecay + o.RMSDecay,
		Rho:          h.Rho + o.Rho,
		Beta1:        h.Beta1 + o.Beta1,
		Beta2:        h.Beta2 + o.Beta2,
		Epsilon:      h.Epsilon + o.Epsilon,
	}
}

func (h Hyper) scale(f float64) Hyper {
	return Hyper{
		LearningRate: h.LearningRate * f,
		Momentum:     h.Momentum * f,
		RMSDecay:     h.RMSDecay * f,
		Rho:          h.Rho * f,
		Beta1:        h.Beta1 * f,
		Beta2:        h.Beta2 * f,
		Epsilon:      h.Epsilon * f,
	}
}
