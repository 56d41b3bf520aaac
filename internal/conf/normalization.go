package conf

import (
	"strconv"
	"strings"
)

// GradientNormalization selects how a layer's gradients are rescaled or
// clipped before the updaters see them.
type GradientNormalization int

// Normalization policies.
const (
	// NoNormalization leaves gradients untouched.
	NoNormalization GradientNormalization = iota
	// RenormalizeL2PerLayer divides every gradient of the layer by the layer's L2 norm.
	RenormalizeL2PerLayer
	// RenormalizeL2PerParamType divides each gradient tensor by its own L2 norm.
	RenormalizeL2PerParamType
	// ClipElementWiseAbsoluteValue clips each element to [-threshold, threshold].
	ClipElementWiseAbsoluteValue
	// ClipL2PerLayer scales the layer's gradients so its L2 norm is at most threshold.
	ClipL2PerLayer
	// ClipL2PerParamType scales each gradient tensor so its L2 norm is at most threshold.
	ClipL2PerParamType
)

var normalizationNames = [...]string{
	NoNormalization:              "None",
	RenormalizeL2PerLayer:        "RenormalizeL2PerLayer",
	RenormalizeL2PerParamType:    "RenormalizeL2PerParamType",
	ClipElementWiseAbsoluteValue: "ClipElementWiseAbsoluteValue",
	ClipL2PerLayer:               "ClipL2PerLayer",
	ClipL2PerParamType:           "ClipL2PerParamType",
}

// Valid reports whether n is a known policy.
func (n GradientNormalization) Valid() bool {
	return n >= NoNormalization && int(n) < len(normalizationNames)
}

// String implements fmt.Stringer.
func (n GradientNormalization) String() string {
	if !n.Valid() {
		return "GradientNormalization(" + strconv.Itoa(int(n)) + ")"
	}
	return normalizationNames[n]
}

// ParseGradientNormalization parses a policy name, case-insensitively.
// The empty string means None.
func ParseGradientNormalization(s string) (GradientNormalization, error) {
	if s == "" {
		return NoNormalization, nil
	}
	for n, name := range normalizationNames {
		if strings.EqualFold(name, s) {
			return GradientNormalization(n), nil
		}
	}
	return 0, Errorf("gradientNormalization", "unknown policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (n GradientNormalization) MarshalText() ([]byte, error) {
	if !n.Valid() {
		return nil, Errorf("gradientNormalization", "unknown policy %d", int(n))
	}
	return []byte(normalizationNames[n]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *GradientNormalization) UnmarshalText(b []byte) error {
	parsed, err := ParseGradientNormalization(string(b))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
