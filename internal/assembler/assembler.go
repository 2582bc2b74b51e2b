// Package assembler turns a parsed ChannelSet into the normalized tensor the
// classifier and the spectral validator consume.
package assembler

import (
	"github.com/chrissnell/motorwatch/internal/types"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Assemble checks completeness and length, stacks the channels in canonical
// order and z-normalizes every channel along time:
//
//	out[c] = (in[c] - mean(in[c])) / (std(in[c]) + 1e-8)
//
// std is the population standard deviation. The input set is not modified.
func Assemble(set types.ChannelSet) (*types.SignalTensor, error) {
	if missing := set.Missing(); len(missing) > 0 {
		return nil, &types.ChannelNotFoundError{Missing: missing}
	}

	for _, name := range types.RequiredChannels {
		if n := len(set[name]); n != types.SamplesPerChannel {
			return nil, &types.ShapeError{Channel: name, Length: n, Expected: types.SamplesPerChannel}
		}
	}

	m := mat.NewDense(len(types.RequiredChannels), types.SamplesPerChannel, nil)
	for i, name := range types.RequiredChannels {
		m.SetRow(i, set[name])
		normalize(m.RawRowView(i))
	}

	return types.NewSignalTensor(m)
}

// normalize z-scores row in place
func normalize(row []float64) {
	mean, std := stat.PopMeanStdDev(row, nil)
	scale := std + types.NormEpsilon
	for j, v := range row {
		row[j] = (v - mean) / scale
	}
}
