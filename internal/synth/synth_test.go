package synth

import (
	"errors"
	"testing"

	"github.com/chrissnell/motorwatch/internal/assembler"
	"github.com/chrissnell/motorwatch/internal/container"
	"github.com/chrissnell/motorwatch/internal/spectral"
	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/matfile"
)

func TestRoundTrip(t *testing.T) {
	s := New(Options{Seed: 42}, nil)
	parser := container.NewParser(container.Options{})

	for _, fault := range FaultTypes {
		for _, compress := range []bool{false, true} {
			name := string(fault)
			if compress {
				name += "/compressed"
			}
			t.Run(name, func(t *testing.T) {
				set, err := s.Synthesize(fault)
				if err != nil {
					t.Fatalf("Synthesize: %v", err)
				}
				data, err := Serialize(set, SerializeOptions{EssaisNumber: 3, Compress: compress})
				if err != nil {
					t.Fatalf("Serialize: %v", err)
				}

				parsed, err := parser.Parse(data)
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				if len(parsed) != len(types.RequiredChannels) {
					t.Fatalf("recovered %d channels, want 9", len(parsed))
				}
				for _, ch := range types.RequiredChannels {
					if len(parsed[ch]) != types.SamplesPerChannel {
						t.Errorf("%s has %d samples", ch, len(parsed[ch]))
					}
					if parsed[ch][123] != set[ch][123] {
						t.Errorf("%s sample 123 = %v, want %v", ch, parsed[ch][123], set[ch][123])
					}
				}
			})
		}
	}
}

func TestSerializeLayout(t *testing.T) {
	set, err := New(Options{Seed: 1}, nil).Synthesize(FaultNone)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Serialize(set, SerializeOptions{EssaisNumber: 7, Description: "bench"})
	if err != nil {
		t.Fatal(err)
	}

	f, err := matfile.Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	essais, ok := f.Lookup("essais7")
	if !ok {
		t.Fatalf("variables = %v, want essais7", f.Names())
	}
	for _, field := range essaisFields {
		if _, ok := essais.Field(field); !ok {
			t.Errorf("missing field %s", field)
		}
	}
	if d, _ := essais.Field("Description"); d.String() != "bench" {
		t.Errorf("Description = %q", d.String())
	}

	y, _ := essais.Field("Y")
	if len(y.Dims) != 2 || y.Dims[0] != 1 || y.Dims[1] != 9 {
		t.Errorf("Y dims = %v, want [1 9]", y.Dims)
	}
	rec := y.Records[7]
	if got := rec["Name"].String(); got != `"Model Root"/"w_m"/"Out1"` {
		t.Errorf("record 7 name = %q", got)
	}
	if got := rec["Type"].String(); got != "double" {
		t.Errorf("Type = %q", got)
	}
	if d := rec["Data"].Dims; d[0] != 1 || d[1] != types.SamplesPerChannel {
		t.Errorf("Data dims = %v", d)
	}
}

func TestSerializeRejectsBadSets(t *testing.T) {
	set, err := New(Options{Seed: 5}, nil).Synthesize(FaultNone)
	if err != nil {
		t.Fatal(err)
	}

	short := make(types.ChannelSet)
	for k, v := range set {
		short[k] = v
	}
	short[types.ChannelVN] = short[types.ChannelVN][:100]
	_, err = Serialize(short, SerializeOptions{})
	var se *types.ShapeError
	if !errors.As(err, &se) || se.Channel != types.ChannelVN {
		t.Errorf("expected ShapeError for vn, got %v", err)
	}

	delete(short, types.ChannelI2)
	_, err = Serialize(short, SerializeOptions{})
	var cnf *types.ChannelNotFoundError
	if !errors.As(err, &cnf) {
		t.Errorf("expected ChannelNotFoundError, got %v", err)
	}
}

func TestBrokenRotorSidebandSurvivesRoundTrip(t *testing.T) {
	set, err := New(Options{Seed: 7}, nil).Synthesize(FaultBrokenRotor)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Serialize(set, SerializeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := container.NewParser(container.Options{}).Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	tensor, err := assembler.Assemble(parsed)
	if err != nil {
		t.Fatal(err)
	}

	p, err := spectral.Analyzer{}.Analyze(tensor)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !p.Sideband100Hz {
		t.Errorf("sideband_100hz not detected, dominant frequencies %v", p.DominantFrequencies)
	}
	if !p.BaseFreq {
		t.Errorf("base frequency not detected, dominant frequencies %v", p.DominantFrequencies)
	}
}

func TestSignatures(t *testing.T) {
	s := New(Options{Seed: 11}, nil)

	tests := []struct {
		fault        FaultType
		wantMod      bool
		wantSideband bool
	}{
		{fault: FaultNone},
		{fault: FaultBrokenRotor, wantSideband: true},
		{fault: FaultImbalance, wantMod: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.fault), func(t *testing.T) {
			set, err := s.Synthesize(tt.fault)
			if err != nil {
				t.Fatal(err)
			}
			ok, dominant, err := s.Verify(set, tt.fault)
			if err != nil || !ok {
				t.Fatalf("Verify = %v, %v (dominant %v)", ok, err, dominant)
			}

			tensor, err := assembler.Assemble(set)
			if err != nil {
				t.Fatal(err)
			}
			p, err := spectral.Analyzer{}.Analyze(tensor)
			if err != nil {
				t.Fatal(err)
			}
			if !p.BaseFreq || p.Mod25Hz != tt.wantMod || p.Sideband100Hz != tt.wantSideband {
				t.Errorf("pattern = %+v", *p)
			}
		})
	}
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	s := New(Options{Seed: 3}, nil)
	healthy, err := s.Synthesize(FaultNone)
	if err != nil {
		t.Fatal(err)
	}
	if ok, _, _ := s.Verify(healthy, FaultBrokenRotor); ok {
		t.Error("healthy signals verified as broken rotor")
	}
	if _, _, err := s.Verify(types.ChannelSet{}, FaultNone); err == nil {
		t.Error("expected an error without i1")
	}
}

func TestSeedIsReproducible(t *testing.T) {
	a, err := New(Options{Seed: 99}, nil).Synthesize(FaultImbalance)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(Options{Seed: 99}, nil).Synthesize(FaultImbalance)
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range types.RequiredChannels {
		if a[ch][1000] != b[ch][1000] {
			t.Fatalf("%s differs between runs with the same seed", ch)
		}
	}
}

func TestSynthesizeUnknownFault(t *testing.T) {
	if _, err := New(Options{}, nil).Synthesize("rusty-bearing"); err == nil {
		t.Error("expected an error for an unknown fault type")
	}
}

func TestParseFaultType(t *testing.T) {
	tests := []struct {
		in      string
		want    FaultType
		wantErr bool
	}{
		{"", FaultNone, false},
		{"sain", FaultNone, false},
		{"Healthy", FaultNone, false},
		{"cassure", FaultBrokenRotor, false},
		{"broken_rotor", FaultBrokenRotor, false},
		{"desiquilibre", FaultImbalance, false},
		{"imbalance", FaultImbalance, false},
		{"rust", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFaultType(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFaultType(%q) = %q, %v", tt.in, got, err)
		}
	}

	if FaultImbalance.Label() != types.LabelImbalance || FaultNone.Label() != types.LabelHealthy {
		t.Error("fault labels do not match classifier labels")
	}
}
