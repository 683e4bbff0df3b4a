package tts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	lastVoice  string
	lastEngine string
	err        error
}

func (f *fakeClient) SynthesizeSpeech(ctx context.Context, text, voiceID, engine string) ([]byte, error) {
	f.lastVoice = voiceID
	f.lastEngine = engine
	if f.err != nil {
		return nil, f.err
	}
	return []byte("pcm:" + text), nil
}

func TestSynthesizeUsesRegistryVoice(t *testing.T) {
	f := &fakeClient{}
	synth := New(f)

	audio := synth.Synthesize(context.Background(), "hola", "es")

	require.NotNil(t, audio)
	assert.Equal(t, "pcm:hola", string(audio))
	assert.Equal(t, "Lucia", f.lastVoice)
	assert.Equal(t, "neural", f.lastEngine)
}

func TestSynthesizeReturnsNilForLocaleWithoutVoice(t *testing.T) {
	f := &fakeClient{}
	synth := New(f)

	audio := synth.Synthesize(context.Background(), "namaste", "hi")

	assert.Nil(t, audio, "hi has no TTS voice in the registry; synthesis must be a legal no-op")
}

func TestSynthesizeReturnsNilOnFailure(t *testing.T) {
	f := &fakeClient{err: errors.New("polly unavailable")}
	synth := New(f)

	audio := synth.Synthesize(context.Background(), "hello", "en")

	assert.Nil(t, audio)
}

func TestSynthesizeEmptyTextIsNoop(t *testing.T) {
	f := &fakeClient{}
	synth := New(f)

	audio := synth.Synthesize(context.Background(), "", "en")

	assert.Nil(t, audio)
	assert.Empty(t, f.lastVoice, "empty text must never reach the client")
}

func TestSynthesizeTripsBreakerAfterRepeatedFailures(t *testing.T) {
	f := &fakeClient{err: errors.New("polly unavailable")}
	synth := New(f)

	for i := 0; i < 5; i++ {
		synth.Synthesize(context.Background(), "hello", "en")
	}

	f.err = nil
	f.lastVoice = ""
	audio := synth.Synthesize(context.Background(), "hello", "en")

	assert.Nil(t, audio, "an open breaker must fail fast and return nil even once the client would succeed again")
	assert.Empty(t, f.lastVoice, "a tripped breaker must not reach the client at all")
}
