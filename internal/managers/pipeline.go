package managers

import (
	"fmt"
	"io"

	"github.com/chrissnell/motorwatch/internal/classifier"
	"github.com/chrissnell/motorwatch/internal/container"
	"github.com/chrissnell/motorwatch/internal/pipeline"
	"github.com/chrissnell/motorwatch/internal/spectral"
	"github.com/chrissnell/motorwatch/internal/synth"
	"github.com/chrissnell/motorwatch/internal/types"
	"github.com/chrissnell/motorwatch/pkg/config"
	"go.uber.org/zap"
)

// PipelineManager owns the prediction pipeline and the signal synthesizer
type PipelineManager struct {
	Predictor   *pipeline.Predictor
	Synthesizer *synth.Synthesizer
	Scorer      classifier.Scorer

	scorerCloser io.Closer
}

// NewPipelineManager builds the parser, classifier and predictor described
// by cfg, journaling through sm
func NewPipelineManager(cfg *config.ConfigData, sm *StorageManager, logger *zap.SugaredLogger) (*PipelineManager, error) {
	segment, err := container.ParseNameSegment(cfg.Parser.NameSegment)
	if err != nil {
		return nil, err
	}
	parser := container.NewParser(container.Options{
		RecordPrefix: cfg.Parser.RecordPrefix,
		Segment:      segment,
	})

	scorer, closer, err := classifier.New(cfg.Classifier, logger.Named("classifier"))
	if err != nil {
		return nil, fmt.Errorf("could not create classifier: %v", err)
	}

	predictor, err := pipeline.NewPredictor(pipeline.Options{
		Parser:     parser,
		Scorer:     scorer,
		Analyzer:   spectral.Analyzer{SampleRate: types.SampleRate},
		Journal:    sm.Journal,
		StagingDir: sm.StagingDir,
		SignalTail: cfg.Server.SignalTail,
	}, logger.Named("pipeline"))
	if err != nil {
		closer.Close()
		return nil, err
	}

	return &PipelineManager{
		Predictor: predictor,
		Synthesizer: synth.New(synth.Options{
			Seed:       cfg.Generator.Seed,
			NoiseLevel: cfg.Generator.NoiseLevel,
		}, logger.Named("synth")),
		Scorer:       scorer,
		scorerCloser: closer,
	}, nil
}

// Close releases the classifier connection
func (p *PipelineManager) Close() error {
	return p.scorerCloser.Close()
}
