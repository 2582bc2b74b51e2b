// Package pipeline runs a recording through parsing, normalization, spectral
// validation, scoring and fusion, and produces the client-facing report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/chrissnell/motorwatch/internal/assembler"
	"github.com/chrissnell/motorwatch/internal/classifier"
	"github.com/chrissnell/motorwatch/internal/container"
	"github.com/chrissnell/motorwatch/internal/fusion"
	"github.com/chrissnell/motorwatch/internal/spectral"
	"github.com/chrissnell/motorwatch/internal/storage"
	"github.com/chrissnell/motorwatch/internal/types"
	"go.uber.org/zap"
)

// Options configures a Predictor. Zero values pick defaults.
type Options struct {
	Parser     *container.Parser
	Scorer     classifier.Scorer
	Analyzer   spectral.Analyzer
	Journal    storage.Journal
	StagingDir string
	SignalTail int
}

// Predictor turns container bytes into a Report
type Predictor struct {
	parser     *container.Parser
	scorer     classifier.Scorer
	analyzer   spectral.Analyzer
	journal    storage.Journal
	stagingDir string
	signalTail int
	logger     *zap.SugaredLogger
}

// NewPredictor creates a predictor. A scorer is required.
func NewPredictor(opts Options, logger *zap.SugaredLogger) (*Predictor, error) {
	if opts.Scorer == nil {
		return nil, fmt.Errorf("predictor requires a scorer")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	p := &Predictor{
		parser:     opts.Parser,
		scorer:     opts.Scorer,
		analyzer:   opts.Analyzer,
		journal:    opts.Journal,
		stagingDir: opts.StagingDir,
		signalTail: opts.SignalTail,
		logger:     logger,
	}
	if p.parser == nil {
		p.parser = container.NewParser(container.Options{})
	}
	if p.journal == nil {
		p.journal = storage.NopJournal{}
	}
	if p.stagingDir == "" {
		p.stagingDir = os.TempDir()
	}
	if p.signalTail <= 0 {
		p.signalTail = DefaultSignalTail
	}

	if err := os.MkdirAll(p.stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create staging directory %s: %w", p.stagingDir, err)
	}
	return p, nil
}

// PredictOption annotates the journal entry of a prediction
type PredictOption func(*predictMeta)

type predictMeta struct {
	source   string
	fileName string
}

// WithSource records where the recording came from
func WithSource(source, fileName string) PredictOption {
	return func(m *predictMeta) {
		m.source = source
		m.fileName = fileName
	}
}

// Predict classifies one recording. The bytes are staged to a private temp
// file which is removed before Predict returns.
func (p *Predictor) Predict(ctx context.Context, data []byte, opts ...PredictOption) (*Report, error) {
	meta := predictMeta{source: storage.SourceUpload}
	for _, o := range opts {
		o(&meta)
	}

	staged, err := p.stage(data)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
			p.logger.Warnf("could not remove staged file %s: %v", staged, err)
		}
	}()

	set, err := p.parser.ParseFile(staged)
	if err != nil {
		return nil, err
	}
	return p.run(ctx, set, meta)
}

// PredictFile classifies a recording already on disk
func (p *Predictor) PredictFile(ctx context.Context, path string, opts ...PredictOption) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return p.Predict(ctx, data, opts...)
}

func (p *Predictor) stage(data []byte) (string, error) {
	f, err := os.CreateTemp(p.stagingDir, "upload-*.mat")
	if err != nil {
		return "", fmt.Errorf("could not stage recording: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("could not stage recording: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("could not stage recording: %w", err)
	}
	return name, nil
}

func (p *Predictor) run(ctx context.Context, set types.ChannelSet, meta predictMeta) (*Report, error) {
	tensor, err := assembler.Assemble(set)
	if err != nil {
		return nil, err
	}

	pattern := p.analyzer.Validate(tensor, p.logger)

	raw, err := p.scorer.Score(ctx, tensor)
	if err != nil {
		var se *types.ScoringError
		if !errors.As(err, &se) {
			err = &types.ScoringError{Cause: err}
		}
		return nil, err
	}
	if err := fusion.Validate(raw); err != nil {
		return nil, err
	}

	result := fusion.Decide(raw, pattern)
	if result.Overridden {
		p.logger.Infow("classifier output overridden",
			"reason", result.Reason, "label", result.Label, "confidence", result.Confidence)
	}

	entry := storage.NewEntry(meta.source, meta.fileName, result)
	if err := p.journal.Record(ctx, entry); err != nil {
		p.logger.Warnf("could not journal prediction %s: %v", entry.ID, err)
	}

	p.logger.Infow("prediction complete",
		"id", entry.ID, "source", meta.source, "file", meta.fileName,
		"label", result.Label, "confidence", result.Confidence)

	return buildReport(entry.ID, result, tensor, p.signalTail), nil
}
