package container

import (
	"strings"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/matfile"
)

type channel struct {
	name    types.ChannelName
	samples []float64
}

// shape is one recognized container layout
type shape interface {
	kind() string
	channels() []channel
}

// detector inspects a decoded file and reports the shape it recognizes, if any
type detector func(f *matfile.File) (shape, bool)

func (p *Parser) detectors() []detector {
	return []detector{p.detectStructured, detectFlat}
}

// structuredRecords is an essais<N> struct whose Y field holds one record
// per channel with Name and Data fields
type structuredRecords struct {
	variable string
	records  []matfile.Record
	nameOf   func(string) types.ChannelName
}

func (s *structuredRecords) kind() string {
	return "structured:" + s.variable
}

func (s *structuredRecords) channels() []channel {
	var out []channel
	for _, rec := range s.records {
		nameArr, ok := rec["Name"]
		if !ok || nameArr.Class != matfile.ClassChar {
			continue
		}
		name := s.nameOf(nameArr.String())
		if !types.IsRequired(name) {
			continue
		}

		dataArr, ok := rec["Data"]
		if !ok {
			continue
		}
		samples, err := dataArr.Squeeze()
		if err != nil {
			continue
		}
		out = append(out, channel{name: name, samples: samples})
	}
	return out
}

func (p *Parser) detectStructured(f *matfile.File) (shape, bool) {
	for _, v := range f.Variables {
		if !strings.HasPrefix(v.Name, p.prefix) {
			continue
		}
		y, ok := v.Field("Y")
		if !ok {
			continue
		}
		recs := y.Elements()
		if len(recs) == 0 {
			continue
		}
		return &structuredRecords{variable: v.Name, records: recs, nameOf: p.ChannelName}, true
	}
	return nil, false
}

// flatEntries are top-level numeric variables named after the channels
type flatEntries struct {
	entries []*matfile.Array
}

func (s *flatEntries) kind() string {
	return "flat"
}

func (s *flatEntries) channels() []channel {
	out := make([]channel, 0, len(s.entries))
	for _, v := range s.entries {
		samples, err := v.Squeeze()
		if err != nil {
			continue
		}
		out = append(out, channel{name: types.ChannelName(v.Name), samples: samples})
	}
	return out
}

func detectFlat(f *matfile.File) (shape, bool) {
	var entries []*matfile.Array
	for _, v := range f.Variables {
		if types.IsRequired(types.ChannelName(v.Name)) && v.Class.IsNumeric() {
			entries = append(entries, v)
		}
	}
	if len(entries) == 0 {
		return nil, false
	}
	return &flatEntries{entries: entries}, true
}
