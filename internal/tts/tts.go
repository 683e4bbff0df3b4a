// Package tts implements the TTS Synthesizer (C4): text-to-speech backed by
// Amazon Polly, with voice selection delegated to the Language Registry.
package tts

import (
	"context"

	"lingobridge/internal/aws"
	"lingobridge/internal/langreg"
	"lingobridge/internal/logging"
)

var log = logging.New("TTS")

// client is the subset of aws.PollyService the Synthesizer needs.
type client interface {
	SynthesizeSpeech(ctx context.Context, text, voiceID, engine string) ([]byte, error)
}

// breaker is the subset of aws.CircuitBreaker the Synthesizer needs.
type breaker interface {
	Execute(fn func() error) error
}

// Synthesizer turns translated text into PCM audio for a target locale.
// Repeated Polly failures trip cb, after which Synthesize fails fast and
// returns nil (silently dropping audio, never the caption) until the
// cooldown elapses.
type Synthesizer struct {
	svc client
	cb  breaker
}

// New wraps an AWS Polly client behind a dedicated circuit breaker.
func New(svc client) *Synthesizer {
	return &Synthesizer{
		svc: svc,
		cb:  aws.NewCircuitBreaker(aws.DefaultCircuitBreakerConfig("polly")),
	}
}

// Synthesize returns 16kHz mono PCM audio for text in locale, or nil if the
// registry has no voice for that locale (a legal, silent outcome), the
// breaker is open, or the underlying call fails.
func (t *Synthesizer) Synthesize(ctx context.Context, text, locale string) []byte {
	if text == "" {
		return nil
	}

	resolved := langreg.Resolve(locale)
	if !resolved.HasTTS {
		return nil
	}

	var audio []byte
	err := t.cb.Execute(func() error {
		var callErr error
		audio, callErr = t.svc.SynthesizeSpeech(ctx, text, resolved.Voice.ID, resolved.Voice.Engine)
		return callErr
	})
	if err != nil {
		log.Printf("synthesize failed for locale=%s: %v", locale, err)
		return nil
	}
	return audio
}
