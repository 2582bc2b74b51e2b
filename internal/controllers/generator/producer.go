// Package generator produces synthetic recordings, on demand and on a timer,
// for the monitoring loop.
package generator

import (
	"fmt"
	"time"

	"github.com/chrissnell/motorwatch/internal/monitor"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/internal/synth"
	"go.uber.org/zap"
)

// Producer synthesizes a recording, stores it and advances the session's
// latest pointer
type Producer struct {
	Synth      *synth.Synthesizer
	Store      storage.BlobStore
	Session    *monitor.Session
	Serialize  synth.SerializeOptions
	KeepLatest int
	Logger     *zap.SugaredLogger
}

// Produced describes one stored recording
type Produced struct {
	Ref   monitor.FileRef
	Fault synth.FaultType
	Data  []byte
}

// Produce runs one generate-serialize-store cycle
func (p *Producer) Produce(fault synth.FaultType) (*Produced, error) {
	set, err := p.Synth.Synthesize(fault)
	if err != nil {
		return nil, err
	}

	opts := p.Serialize
	if opts.Description == "" {
		opts.Description = fmt.Sprintf("synthetic %s recording", fault)
	}
	data, err := synth.Serialize(set, opts)
	if err != nil {
		return nil, fmt.Errorf("could not serialize %s recording: %w", fault, err)
	}

	now := time.Now()
	name := storage.GeneratedName(now)
	if _, err := p.Store.Put(name, data); err != nil {
		return nil, err
	}

	ref := monitor.FileRef{Name: name, Time: now}
	if p.Session != nil {
		p.Session.SetLatest(ref)
	}

	if p.KeepLatest > 0 {
		removed, err := p.Store.Prune(".mat", p.KeepLatest)
		if err != nil {
			p.logger().Warnf("could not prune generated recordings: %v", err)
		} else if removed > 0 {
			p.logger().Debugf("pruned %d generated recordings", removed)
		}
	}

	p.logger().Infow("generated recording", "file", name, "fault", fault, "bytes", len(data))
	return &Produced{Ref: ref, Fault: fault, Data: data}, nil
}

func (p *Producer) logger() *zap.SugaredLogger {
	if p.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return p.Logger
}
