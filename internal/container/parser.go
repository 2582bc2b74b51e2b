// Package container recovers the nine motor channels from a MAT-file.
//
// Two layouts are understood. Recordings exported from the test rig keep
// every channel as a record of an essais<N> struct, while hand-made files
// store one top-level variable per channel. Each layout is described by a
// shape produced by an ordered list of detectors; the parser merges what the
// detectors find until all channels are present.
package container

import (
	"fmt"
	"os"
	"strings"

	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/matfile"
)

// DefaultRecordPrefix is the variable name prefix of structured recordings
const DefaultRecordPrefix = "essais"

// NameSegment selects which slash-delimited segment of a record's Name
// holds the channel name
type NameSegment int

const (
	// SecondToLast picks "i1" out of "Model Root"/"i1"/"Out1"
	SecondToLast NameSegment = iota
	// LastSegment picks the final segment, for exports that end with the channel
	LastSegment
)

// ParseNameSegment converts a configuration value into a NameSegment
func ParseNameSegment(s string) (NameSegment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "second-to-last":
		return SecondToLast, nil
	case "last":
		return LastSegment, nil
	}
	return SecondToLast, fmt.Errorf("invalid name segment %q (want second-to-last or last)", s)
}

func (s NameSegment) String() string {
	if s == LastSegment {
		return "last"
	}
	return "second-to-last"
}

// Options configures a Parser
type Options struct {
	RecordPrefix string
	Segment      NameSegment
}

// Parser extracts a ChannelSet from MAT-file bytes. It holds no mutable
// state and is safe for concurrent use.
type Parser struct {
	prefix  string
	segment NameSegment
}

// NewParser creates a parser, defaulting the record prefix to "essais"
func NewParser(opts Options) *Parser {
	prefix := opts.RecordPrefix
	if prefix == "" {
		prefix = DefaultRecordPrefix
	}
	return &Parser{prefix: prefix, segment: opts.Segment}
}

// Parse decodes a MAT-file and extracts the required channels
func (p *Parser) Parse(data []byte) (types.ChannelSet, error) {
	f, err := matfile.Parse(data)
	if err != nil {
		return nil, &types.FormatError{Cause: err}
	}
	return p.Extract(f)
}

// ParseFile reads and parses a MAT-file from disk
func (p *Parser) ParseFile(path string) (types.ChannelSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return p.Parse(data)
}

// Extract pulls the required channels out of an already decoded file. A
// channel found by an earlier layout, or earlier within a layout, wins.
func (p *Parser) Extract(f *matfile.File) (types.ChannelSet, error) {
	set := make(types.ChannelSet, len(types.RequiredChannels))

	for _, detect := range p.detectors() {
		if set.Complete() {
			break
		}
		s, ok := detect(f)
		if !ok {
			continue
		}
		for _, ch := range s.channels() {
			if _, seen := set[ch.name]; !seen {
				set[ch.name] = ch.samples
			}
		}
	}

	if missing := set.Missing(); len(missing) > 0 {
		return nil, &types.ChannelNotFoundError{Missing: missing}
	}
	return set, nil
}

// Layouts reports which layouts are present in the file, in detection order.
// It is meant for diagnostics.
func (p *Parser) Layouts(f *matfile.File) []string {
	var found []string
	for _, detect := range p.detectors() {
		if s, ok := detect(f); ok {
			found = append(found, s.kind())
		}
	}
	return found
}

// ChannelName extracts a channel name from a record's Name path according
// to the configured segment. Quotes and surrounding whitespace are stripped.
func (p *Parser) ChannelName(path string) types.ChannelName {
	segments := strings.Split(path, "/")
	idx := len(segments) - 1
	if p.segment == SecondToLast && len(segments) > 1 {
		idx = len(segments) - 2
	}
	return types.ChannelName(strings.Trim(strings.TrimSpace(segments[idx]), `"' `))
}
