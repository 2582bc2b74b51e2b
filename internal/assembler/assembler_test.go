package assembler

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/chrissnell/motorwatch/internal/types"
	"gonum.org/v1/gonum/stat"
)

func fullSet(length int) types.ChannelSet {
	set := make(types.ChannelSet)
	for c, name := range types.RequiredChannels {
		samples := make([]float64, length)
		for i := range samples {
			// distinct offsets and scales per channel
			samples[i] = float64(c*100) + float64(c+1)*math.Sin(2*math.Pi*50*float64(i)/types.SampleRate)
		}
		set[name] = samples
	}
	return set
}

func TestAssembleNormalizes(t *testing.T) {
	set := fullSet(types.SamplesPerChannel)
	set["tachometer"] = []float64{1, 2, 3}
	before := set[types.ChannelV2][10]

	tensor, err := Assemble(set)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	for _, name := range types.RequiredChannels {
		mean, std := stat.PopMeanStdDev(tensor.Channel(name), nil)
		if math.Abs(mean) > 1e-6 {
			t.Errorf("%s mean = %g, want 0", name, mean)
		}
		if math.Abs(std-1) > 1e-6 {
			t.Errorf("%s std = %g, want 1", name, std)
		}
	}

	if set[types.ChannelV2][10] != before {
		t.Error("input channel was modified")
	}
}

func TestAssembleCanonicalOrder(t *testing.T) {
	set := fullSet(types.SamplesPerChannel)
	// a ramp on w_m is easy to tell apart from the sines
	ramp := make([]float64, types.SamplesPerChannel)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	set[types.ChannelSpeed] = ramp

	tensor, err := Assemble(set)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	row := tensor.Row(types.ChannelIndex(types.ChannelSpeed))
	if !(row[0] < row[1] && row[1] < row[len(row)-1]) {
		t.Error("w_m is not in its canonical row")
	}
	if r, c := tensor.Matrix().Dims(); r != 9 || c != types.SamplesPerChannel {
		t.Errorf("dims = %dx%d", r, c)
	}
}

func TestAssembleConstantChannel(t *testing.T) {
	set := fullSet(types.SamplesPerChannel)
	flat := make([]float64, types.SamplesPerChannel)
	for i := range flat {
		flat[i] = 0.1
	}
	set[types.ChannelVN] = flat

	tensor, err := Assemble(set)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	for _, v := range tensor.Channel(types.ChannelVN) {
		if math.IsNaN(v) || math.Abs(v) > 1e-3 {
			t.Fatalf("constant channel normalized to %v", v)
		}
	}
}

func TestAssembleShape(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "one short", length: types.SamplesPerChannel - 1, wantErr: true},
		{name: "exact", length: types.SamplesPerChannel},
		{name: "one long", length: types.SamplesPerChannel + 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := fullSet(types.SamplesPerChannel)
			set[types.ChannelI3] = make([]float64, tt.length)

			_, err := Assemble(set)
			var se *types.ShapeError
			if tt.wantErr {
				if !errors.As(err, &se) {
					t.Fatalf("expected ShapeError, got %v", err)
				}
				if se.Channel != types.ChannelI3 || se.Length != tt.length {
					t.Errorf("ShapeError = %+v", se)
				}
				return
			}
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
		})
	}
}

func TestAssembleMissing(t *testing.T) {
	set := fullSet(types.SamplesPerChannel)
	delete(set, types.ChannelVibRad)
	delete(set, types.ChannelI2)
	// a bad length elsewhere must not mask the missing channels
	set[types.ChannelV1] = []float64{1}

	_, err := Assemble(set)
	var cnf *types.ChannelNotFoundError
	if !errors.As(err, &cnf) {
		t.Fatalf("expected ChannelNotFoundError, got %v", err)
	}
	want := []types.ChannelName{types.ChannelI2, types.ChannelVibRad}
	if !reflect.DeepEqual(cnf.Missing, want) {
		t.Errorf("Missing = %v, want %v", cnf.Missing, want)
	}
	if msg := cnf.Error(); msg != "missing required signals: [i2, vibrad]" {
		t.Errorf("message = %q", msg)
	}
}
