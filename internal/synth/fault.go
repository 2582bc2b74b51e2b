package synth

import (
	"fmt"
	"strings"

	"github.com/chrissnell/motorwatch/internal/types"
)

// FaultType is the condition injected into a synthetic recording
type FaultType string

const (
	FaultNone        FaultType = "none"
	FaultBrokenRotor FaultType = "broken-rotor"
	FaultImbalance   FaultType = "imbalance"
)

// FaultTypes lists every fault type in generation rotation order
var FaultTypes = []FaultType{FaultNone, FaultBrokenRotor, FaultImbalance}

// ParseFaultType accepts the canonical names as well as the classifier
// labels (sain, cassure, desiquilibre) and a few common spellings
func ParseFaultType(s string) (FaultType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "healthy", string(types.LabelHealthy):
		return FaultNone, nil
	case "broken-rotor", "broken_rotor", "broken", string(types.LabelBrokenRotor):
		return FaultBrokenRotor, nil
	case "imbalance", "unbalance", string(types.LabelImbalance):
		return FaultImbalance, nil
	}
	return "", fmt.Errorf("unknown fault type %q", s)
}

// Label is the classifier label a recording of this fault should receive
func (f FaultType) Label() types.Label {
	switch f {
	case FaultBrokenRotor:
		return types.LabelBrokenRotor
	case FaultImbalance:
		return types.LabelImbalance
	}
	return types.LabelHealthy
}

// signatureHz is the i1 line that verification expects to find
func (f FaultType) signatureHz(baseFreq float64) float64 {
	switch f {
	case FaultBrokenRotor:
		return 2 * baseFreq
	case FaultImbalance:
		return modulationHz
	}
	return baseFreq
}
