package synth

import (
	"fmt"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/matfile"
)

var (
	essaisFields = []string{"X", "Y", "Description", "RTProgram", "Capture"}
	signalFields = []string{"Name", "Type", "Data", "Unit", "XIndex"}
)

// SerializeOptions controls the MAT-file written by Serialize
type SerializeOptions struct {
	// EssaisNumber is the N in the essais<N> variable name (default 1)
	EssaisNumber int
	Description  string
	Compress     bool
}

// RecordName is the dSPACE-style path a channel is stored under
func RecordName(ch types.ChannelName) string {
	return fmt.Sprintf(`"Model Root"/"%s"/"Out1"`, ch)
}

// Serialize writes a complete ChannelSet as an essais<N> struct whose Y field
// holds one record per channel in canonical order
func Serialize(set types.ChannelSet, opts SerializeOptions) ([]byte, error) {
	if missing := set.Missing(); len(missing) > 0 {
		return nil, &types.ChannelNotFoundError{Missing: missing}
	}

	records := make([]matfile.Record, len(types.RequiredChannels))
	for i, name := range types.RequiredChannels {
		data := set[name]
		if len(data) != types.SamplesPerChannel {
			return nil, &types.ShapeError{Channel: name, Length: len(data), Expected: types.SamplesPerChannel}
		}
		records[i] = matfile.Record{
			"Name":   matfile.NewString("", RecordName(name)),
			"Type":   matfile.NewString("", "double"),
			"Data":   matfile.NewRowVector("", data),
			"Unit":   matfile.NewString("", ""),
			"XIndex": matfile.NewScalar("", 0),
		}
	}

	n := opts.EssaisNumber
	if n <= 0 {
		n = 1
	}

	essais := matfile.NewStruct(fmt.Sprintf("essais%d", n), []int{1, 1}, essaisFields, []matfile.Record{{
		"X":           matfile.NewEmpty(""),
		"Y":           matfile.NewStruct("", []int{1, len(records)}, signalFields, records),
		"Description": matfile.NewString("", opts.Description),
		"RTProgram":   matfile.NewString("", ""),
		"Capture":     matfile.NewString("", ""),
	}})

	var encOpts []matfile.EncoderOption
	if opts.Compress {
		encOpts = append(encOpts, matfile.WithCompression())
	}
	return matfile.Marshal([]*matfile.Array{essais}, encOpts...)
}
