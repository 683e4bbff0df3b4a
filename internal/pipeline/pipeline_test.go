package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"lingobridge/internal/asr"
	"lingobridge/internal/logging"
	"lingobridge/internal/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport records every event sent to a connection.
type fakeTransport struct {
	mu        sync.Mutex
	open      bool
	joined    int
	captions  []CaptionEvent
	audios    []TranslatedAudioEvent
	errorsLog []string
}

func newFakeTransport() *fakeTransport { return &fakeTransport{open: true} }

func (f *fakeTransport) IsOpen() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.open }

func (f *fakeTransport) SendJoined() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined++
	return nil
}

func (f *fakeTransport) SendCaption(ev CaptionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, ev)
	return nil
}

func (f *fakeTransport) SendAudio(ev TranslatedAudioEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audios = append(f.audios, ev)
	return nil
}

func (f *fakeTransport) SendError(code, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorsLog = append(f.errorsLog, code+":"+message)
	return nil
}

func (f *fakeTransport) captionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.captions)
}

func (f *fakeTransport) audioCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.audios)
}

func (f *fakeTransport) lastCaption() CaptionEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.captions[len(f.captions)-1]
}

// fakeTranslator returns the input suffixed with the destination language,
// so tests can assert on which hop(s) ran without caring about real MT.
type fakeTranslator struct {
	mu    sync.Mutex
	calls int
}

func (t *fakeTranslator) Translate(ctx context.Context, text, srcMt, dstMt string) string {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	if srcMt == dstMt {
		return text
	}
	return text + "[" + dstMt + "]"
}

// fakeTTS returns fixed-size fake audio for any non-empty text, and counts
// calls so tests can assert on throttling/dedup behavior.
type fakeTTS struct {
	mu    sync.Mutex
	calls int
}

func (s *fakeTTS) Synthesize(ctx context.Context, text, locale string) []byte {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if text == "" {
		return nil
	}
	return []byte("audio:" + text)
}

func (s *fakeTTS) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPipeline(t *testing.T, reg *registry.Registry, tr *fakeTranslator, tts *fakeTTS, meetingID, connID, spokenLocale, targetLocale string) (*Pipeline, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	sess := &ParticipantSession{
		ConnIDValue:          connID,
		MeetingID:            meetingID,
		AttendeeID:           connID,
		DisplayName:          connID,
		SpokenLocale:         spokenLocale,
		DeclaredTargetLocale: targetLocale,
		Transport:            transport,
	}
	p := &Pipeline{
		deps: Deps{
			Translator: tr,
			TTS:        tts,
			Registry:   reg,
		},
		session: sess,
		events:  make(chan any, eventQueueSize),
		log:     logging.New("test:" + connID),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	require.NoError(t, reg.Add(meetingID, sess))
	return p, transport
}

func seg(text string, final bool) asr.TranscriptSegment {
	return asr.TranscriptSegment{OriginalText: text, IsFinal: final, SourceLangCode: "ko-KR"}
}

// P5 / step 3: partials within 100ms of each other are throttled.
func TestHandleTranscript_PartialThrottle(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	speaker.handleTranscript(seg("hello there friend ag", false))

	assert.Equal(t, 1, partnerTransport.captionCount(), "second partial within throttle window should be dropped")
}

// step 4/5: same-language speaker/partner pair passes text through untranslated.
func TestHandleTranscript_SameLanguageIsPassthrough(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "en", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "en")

	speaker.handleTranscript(asr.TranscriptSegment{OriginalText: "hello", IsFinal: true, SourceLangCode: "en-US"})

	require.Equal(t, 1, partnerTransport.captionCount())
	assert.Equal(t, "hello", partnerTransport.lastCaption().TranslatedText)
	assert.Equal(t, 0, tr.calls)
}

// step 4: a final that repeats the cached partial's original text reuses the
// cached translation instead of calling the translator again.
func TestHandleTranscript_FinalReusesPartialTranslation(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, _ = newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	callsAfterPartial := tr.calls

	speaker.handleTranscript(seg("hello there friend", true))

	assert.Equal(t, callsAfterPartial, tr.calls, "final matching cached partial should not re-translate")
}

// step 5: with no partner present, no caption or audio is ever sent.
func TestHandleTranscript_NoPartnerNoOutput(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, speakerTransport := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")

	speaker.handleTranscript(seg("hello there friend", true))

	assert.Equal(t, 0, speakerTransport.captionCount())
	assert.Equal(t, 0, tts.callCount())
}

// step 6/8: a final matching the pre-synthesized partial consumes that
// audio rather than synthesizing again.
func TestHandleTranscript_FinalConsumesPreSynthesizedAudio(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	require.Eventually(t, func() bool { return speaker.preSynth != nil }, time.Second, time.Millisecond)

	speaker.handleTranscript(seg("hello there friend", true))

	require.Equal(t, 1, partnerTransport.audioCount())
	assert.Equal(t, 1, tts.callCount(), "final should reuse the single pre-synthesis call, not add another")
}

// step 8 + interimPollyFired invariant: once an interim has fired for an
// utterance, the final must not also emit audio.
func TestHandleTranscript_InterimFiredSkipsFinalAudio(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	speaker.interimPollyFired = true

	speaker.handleTranscript(seg("hello there friend", true))

	assert.Equal(t, 0, partnerTransport.audioCount())
	assert.False(t, speaker.interimPollyFired, "final must clear the flag for the next utterance")
}

// stale-partial timer: a fire whose generation no longer matches the
// pipeline's current generation (superseded by a newer partial/final) is a
// no-op.
func TestHandleStaleTimer_StaleGenerationIsNoop(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.timerGen = 5
	speaker.handleStaleTimer(1)

	assert.Equal(t, 0, partnerTransport.audioCount())
	assert.False(t, speaker.interimPollyFired)
}

// stale-partial timer: a fire at the current generation synthesizes the
// latest partial and marks the utterance as interim-covered.
func TestHandleStaleTimer_CurrentGenerationFiresInterimAudio(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, partnerTransport := newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.latestPartialText = "hello there friend"
	speaker.timerGen = 3
	speaker.handleStaleTimer(3)

	require.Equal(t, 1, partnerTransport.audioCount())
	assert.True(t, speaker.interimPollyFired)
}

// clearUtteranceState (used on Stop) resets everything a new utterance
// would need reset, and stops any pending stale-partial timer.
func TestClearUtteranceState(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, _ = newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	require.NotNil(t, speaker.preSynth)

	speaker.clearUtteranceState()

	assert.Nil(t, speaker.preSynth)
	assert.Empty(t, speaker.partialOriginal)
	assert.Empty(t, speaker.partialTranslated)
	assert.Empty(t, speaker.latestPartialText)
	assert.False(t, speaker.interimPollyFired)
	assert.Nil(t, speaker.stalePartialTimer)
}

// handleStop with no Transcripts/DB configured (the default in every other
// test here) must be a clean no-op for archival — no panic, registry still
// drops the connection.
func TestHandleStopWithoutArchivalDepsIsNoop(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")

	require.Equal(t, 1, reg.Size("m1"))
	speaker.handleStop()
	assert.Equal(t, 0, reg.Size("m1"))
}

// handleMicOff must clear utterance state too, not just finish the ASR
// session — otherwise a stale pre-synthesized slot or timer from before
// mic-off could fire against the next utterance after mic-on.
func TestHandleMicOffClearsUtteranceState(t *testing.T) {
	reg := registry.New()
	tr := &fakeTranslator{}
	tts := &fakeTTS{}
	speaker, _ := newTestPipeline(t, reg, tr, tts, "m1", "a", "ko", "en")
	_, _ = newTestPipeline(t, reg, tr, tts, "m1", "b", "en", "ko")

	speaker.handleTranscript(seg("hello there friend", false))
	require.NotNil(t, speaker.preSynth)

	speaker.handleMicOff()

	assert.Nil(t, speaker.preSynth)
	assert.Empty(t, speaker.partialOriginal)
	assert.Empty(t, speaker.partialTranslated)
	assert.Empty(t, speaker.latestPartialText)
	assert.False(t, speaker.interimPollyFired)
	assert.Nil(t, speaker.stalePartialTimer)
}
