package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrEngineUnavailable = errors.New("media engine is not configured")
	ErrNoImage           = errors.New("image is required")
	ErrNoAudio           = errors.New("audio is required")
)

// Engine provides speech-to-text, vision analysis and text-to-speech.
// Satisfied by the OpenAI infrastructure service.
type Engine interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
	AnalyzeImage(ctx context.Context, query string, image []byte, mimeType string) (string, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Result is the outcome of a combined image and voice analysis.
type Result struct {
	Transcript string `json:"transcript"`
	Analysis   string `json:"analysis"`
	Audio      []byte `json:"audio"`
}

// Service analyzes a patient's photo together with their spoken complaint:
// the audio is transcribed, the transcript and image go to the vision model,
// and the analysis comes back both as text and as synthesized speech.
type Service struct {
	engine Engine
}

func NewService(engine Engine) *Service {
	return &Service{engine: engine}
}

func (s *Service) Analyze(ctx context.Context, image []byte, imageMime, audioFilename string, audio io.Reader) (*Result, error) {
	if s.engine == nil {
		return nil, ErrEngineUnavailable
	}
	if len(image) == 0 {
		return nil, ErrNoImage
	}
	if audio == nil {
		return nil, ErrNoAudio
	}

	transcript, err := s.engine.Transcribe(ctx, audioFilename, audio)
	if err != nil {
		return nil, fmt.Errorf("transcribing complaint: %w", err)
	}

	query := transcript
	if strings.TrimSpace(query) == "" {
		query = "Describe any visible medical condition in this image."
	}

	analysis, err := s.engine.AnalyzeImage(ctx, query, image, imageMime)
	if err != nil {
		return nil, fmt.Errorf("analyzing image: %w", err)
	}

	// Voice response is best effort: the text analysis is still useful when
	// synthesis fails.
	speech, err := s.engine.Synthesize(ctx, analysis)
	if err != nil {
		log.Warn().Err(err).Msg("Speech synthesis failed, returning text only")
		speech = nil
	}

	return &Result{
		Transcript: transcript,
		Analysis:   analysis,
		Audio:      speech,
	}, nil
}
