// Package grpcutil converts between the pipeline's types and the
// structpb messages exchanged with gRPC scorers.
package grpcutil

import (
	"fmt"
	"math"

	"github.com/chrissnell/motorwatch/internal/types"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"
)

// MaxMessageSize bounds scorer messages. A (1, 50001, 9) tensor encodes to
// roughly 5 MB, above gRPC's 4 MB default.
const MaxMessageSize = 64 << 20

// EncodeTensor packs a tensor as {shape: [1, 50001, 9], values: [...]} with
// values in time-major, channel-last order
func EncodeTensor(t *types.SignalTensor) *structpb.Struct {
	shape := types.ClassifierShape()
	shapeVals := make([]*structpb.Value, len(shape))
	for i, d := range shape {
		shapeVals[i] = structpb.NewNumberValue(float64(d))
	}

	input := t.ClassifierInput()
	values := make([]*structpb.Value, len(input))
	for i, v := range input {
		values[i] = structpb.NewNumberValue(float64(v))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"shape":  structpb.NewListValue(&structpb.ListValue{Values: shapeVals}),
		"values": structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

// DecodeTensor is the inverse of EncodeTensor
func DecodeTensor(s *structpb.Struct) (*types.SignalTensor, error) {
	want := types.ClassifierShape()

	shape := s.GetFields()["shape"].GetListValue().GetValues()
	if len(shape) != len(want) {
		return nil, fmt.Errorf("tensor shape has %d dimensions, want %d", len(shape), len(want))
	}
	for i, d := range shape {
		if int(d.GetNumberValue()) != want[i] {
			return nil, fmt.Errorf("tensor shape dimension %d is %v, want %d", i, d.GetNumberValue(), want[i])
		}
	}

	values := s.GetFields()["values"].GetListValue().GetValues()
	channels := len(types.RequiredChannels)
	if len(values) != types.SamplesPerChannel*channels {
		return nil, fmt.Errorf("tensor has %d values, want %d", len(values), types.SamplesPerChannel*channels)
	}

	m := mat.NewDense(channels, types.SamplesPerChannel, nil)
	for i, v := range values {
		m.Set(i%channels, i/channels, v.GetNumberValue())
	}
	return types.NewSignalTensor(m)
}

// EncodeDistribution packs classifier output as {probabilities: [...]} in
// class order
func EncodeDistribution(d types.Distribution) *structpb.Struct {
	probs := make([]*structpb.Value, len(d))
	for i, p := range d {
		probs[i] = structpb.NewNumberValue(p)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"probabilities": structpb.NewListValue(&structpb.ListValue{Values: probs}),
	}}
}

// DecodeProbabilities extracts the probability list from a scorer reply
func DecodeProbabilities(s *structpb.Struct) ([]float64, error) {
	field, ok := s.GetFields()["probabilities"]
	if !ok {
		return nil, fmt.Errorf("reply has no probabilities field")
	}
	list := field.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("probabilities is not a list")
	}

	out := make([]float64, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		n, ok := v.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("probability %d is not a number", i)
		}
		if math.IsNaN(n.NumberValue) {
			return nil, fmt.Errorf("probability %d is NaN", i)
		}
		out = append(out, n.NumberValue)
	}
	return out, nil
}
