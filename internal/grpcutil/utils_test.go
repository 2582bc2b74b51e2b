package grpcutil

import (
	"testing"

	"github.com/chrissnell/motorwatch/internal/types"
	"gonum.org/v1/gonum/mat"
	"google.golang.org/protobuf/types/known/structpb"
)

func rampTensor(t *testing.T) *types.SignalTensor {
	t.Helper()
	m := mat.NewDense(len(types.RequiredChannels), types.SamplesPerChannel, nil)
	for r := 0; r < len(types.RequiredChannels); r++ {
		for c := 0; c < types.SamplesPerChannel; c += 1000 {
			m.Set(r, c, float64(r)+float64(c)/types.SamplesPerChannel)
		}
	}
	tensor, err := types.NewSignalTensor(m)
	if err != nil {
		t.Fatal(err)
	}
	return tensor
}

func TestTensorRoundTrip(t *testing.T) {
	in := rampTensor(t)
	out, err := DecodeTensor(EncodeTensor(in))
	if err != nil {
		t.Fatalf("DecodeTensor: %v", err)
	}

	// values travel as float32
	for r := 0; r < len(types.RequiredChannels); r++ {
		for _, c := range []int{0, 1000, 50000} {
			want := float64(float32(in.Row(r)[c]))
			if got := out.Row(r)[c]; got != want {
				t.Errorf("(%d,%d) = %v, want %v", r, c, got, want)
			}
		}
	}
}

func TestDecodeTensorRejectsWrongShape(t *testing.T) {
	s := EncodeTensor(rampTensor(t))
	s.Fields["shape"] = structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{
		structpb.NewNumberValue(1), structpb.NewNumberValue(9), structpb.NewNumberValue(50001),
	}})
	if _, err := DecodeTensor(s); err == nil {
		t.Error("expected an error for a transposed shape")
	}

	if _, err := DecodeTensor(&structpb.Struct{}); err == nil {
		t.Error("expected an error for an empty message")
	}
}

func TestDistributionRoundTrip(t *testing.T) {
	probs, err := DecodeProbabilities(EncodeDistribution(types.Distribution{0.1, 0.7, 0.2}))
	if err != nil {
		t.Fatalf("DecodeProbabilities: %v", err)
	}
	if len(probs) != 3 || probs[1] != 0.7 {
		t.Errorf("probabilities = %v", probs)
	}

	bad := &structpb.Struct{Fields: map[string]*structpb.Value{
		"probabilities": structpb.NewListValue(&structpb.ListValue{Values: []*structpb.Value{structpb.NewStringValue("high")}}),
	}}
	if _, err := DecodeProbabilities(bad); err == nil {
		t.Error("expected an error for a non-numeric probability")
	}
	if _, err := DecodeProbabilities(&structpb.Struct{}); err == nil {
		t.Error("expected an error for a missing field")
	}
}
