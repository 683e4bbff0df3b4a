package aws

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

// PollyService Amazon Polly TTS 서비스
type PollyService struct {
	client *polly.Client
}

// NewPollyService PollyService 생성
func NewPollyService(cfg aws.Config) *PollyService {
	client := polly.NewFromConfig(cfg)
	return &PollyService{client: client}
}

// SynthesizeSpeech synthesizes text into 16kHz mono PCM using the given
// voice. Voice selection is the caller's responsibility (internal/tts
// resolves it via the Language Registry) rather than a map owned here.
// engine is the Polly engine name ("neural" or "standard").
func (s *PollyService) SynthesizeSpeech(ctx context.Context, text, voiceID, engine string) ([]byte, error) {
	if text == "" {
		return nil, nil
	}

	pollyEngine := types.EngineStandard
	if engine == "neural" {
		pollyEngine = types.EngineNeural
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		VoiceId:      types.VoiceId(voiceID),
		Engine:       pollyEngine,
		OutputFormat: types.OutputFormatPcm,
		SampleRate:   aws.String("16000"),
	}

	result, err := s.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("polly synthesize error: %w", err)
	}
	defer result.AudioStream.Close()

	audioData, err := io.ReadAll(result.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("read audio stream error: %w", err)
	}

	log.Printf("🔊 Polly TTS [%s]: %d bytes generated for text: %s", voiceID, len(audioData), truncateText(text, 50))

	return audioData, nil
}

func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
