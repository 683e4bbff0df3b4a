// Package pipeline implements the Translation Pipeline (C6): the core
// per-connection orchestrator that coordinates ASR, translation, and TTS
// into ordered captions and at-most-one-per-utterance audio for the other
// party in a two-person meeting.
package pipeline

import (
	"context"
	"sync"
	"time"

	"gorm.io/gorm"

	"lingobridge/internal/asr"
	"lingobridge/internal/aws"
	"lingobridge/internal/cache"
	"lingobridge/internal/logging"
	"lingobridge/internal/registry"
)

const (
	partialThrottle    = 100 * time.Millisecond
	preSynthThrottle   = 1000 * time.Millisecond
	stalePartialDelay  = 5000 * time.Millisecond
	minTranslatedLen   = 10
	maxAudioFrameBytes = 65536
	eventQueueSize     = 256
)

// Transport is how a Pipeline delivers events to its own connection's
// client. internal/protocol implements this.
type Transport interface {
	IsOpen() bool
	SendJoined() error
	SendCaption(CaptionEvent) error
	SendAudio(TranslatedAudioEvent) error
	SendError(code, message string) error
}

// ParticipantSession is one live connection. It satisfies registry.Session.
type ParticipantSession struct {
	ConnIDValue          string
	MeetingID            string
	AttendeeID           string
	DisplayName          string
	SpokenLocale         string
	DeclaredTargetLocale string
	Transport            Transport
}

// ConnID satisfies registry.Session.
func (s *ParticipantSession) ConnID() string { return s.ConnIDValue }

// IsOpen satisfies registry.Session.
func (s *ParticipantSession) IsOpen() bool {
	return s.Transport != nil && s.Transport.IsOpen()
}

// CaptionEvent is a translated (or pass-through) transcript line delivered
// to the partner.
type CaptionEvent struct {
	SpeakerAttendeeID  string
	SpeakerName        string
	OriginalText       string
	TranslatedText     string
	IsFinal            bool
	DetectedSourceLang string
	TargetLang         string
	StartMs            int64
	EndMs              int64
}

// TranslatedAudioEvent carries synthesized speech for one utterance,
// delivered to the partner at most once per utterance: either as interim
// (stale-partial timer) or as final, never both.
type TranslatedAudioEvent struct {
	SpeakerAttendeeID string
	AudioData         []byte
	TargetLang        string
}

// translatorClient is the narrow seam Pipeline needs from internal/translator.
type translatorClient interface {
	Translate(ctx context.Context, text, srcMt, dstMt string) string
}

// ttsClient is the narrow seam Pipeline needs from internal/tts.
type ttsClient interface {
	Synthesize(ctx context.Context, text, locale string) []byte
}

// Deps bundles the shared, process-wide collaborators a Pipeline needs.
// One instance is shared by every connection's Pipeline.
type Deps struct {
	ASRService *aws.TranscribeService
	Translator translatorClient
	TTS        ttsClient
	Cache      *cache.PipelineCache
	Registry   *registry.Registry
	Workers    *aws.WorkerPool

	// Transcripts buffers final captions in Redis for the lifetime of the
	// meeting; DB archives them to Postgres once the meeting empties out.
	// Both are optional — nil disables archival without affecting live
	// translation.
	Transcripts *cache.TranscriptBuffer
	DB          *gorm.DB
}

type preSynthSlot struct {
	translated string
	audio      chan []byte
}

// Pipeline is the per-connection orchestrator (C6). All mutations of its
// internal state happen on a single goroutine (run), which consumes a
// unified event channel carrying audio frames, control operations, ASR
// transcripts, and timer fires — this is what makes the ordering
// invariants in SPEC_FULL.md §4.6/§5 hold without locking pipeline state.
type Pipeline struct {
	deps    Deps
	session *ParticipantSession

	ctx    context.Context
	cancel context.CancelFunc
	events chan any
	wg     sync.WaitGroup
	log    *logging.Logger

	// --- state, touched only inside run() ---
	asrSession        *asr.Session
	lastPartialEmitAt time.Time
	partialOriginal   string
	partialTranslated string
	preSynth          *preSynthSlot
	lastPreSynthAt    time.Time
	stalePartialTimer *time.Timer
	timerGen          uint64
	latestPartialText string
	interimPollyFired bool
}

type evAudioFrame struct{ data []byte }
type evMicOff struct{}
type evMicOn struct{}
type evStop struct{}
type evTranscript struct{ seg asr.TranscriptSegment }
type evStaleTimer struct{ gen uint64 }

// New constructs a Pipeline for one participant connection. It does not
// start anything; call Start to join the meeting and open ASR.
func New(parent context.Context, deps Deps, session *ParticipantSession) *Pipeline {
	ctx, cancel := context.WithCancel(parent)
	return &Pipeline{
		deps:    deps,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
		events:  make(chan any, eventQueueSize),
		log:     logging.New("Pipeline:" + session.ConnIDValue),
	}
}

// Start implements onJoin: registers the session in the Connection
// Registry, opens an ASR session for the speaker's locale, acknowledges
// with a joined event, and starts the connection's event loop.
func (p *Pipeline) Start() error {
	if err := p.deps.Registry.Add(p.session.MeetingID, p.session); err != nil {
		return err
	}

	p.startASRLocked()

	p.wg.Add(1)
	go p.run()

	if err := p.session.Transport.SendJoined(); err != nil {
		p.log.Printf("send joined failed: %v", err)
	}
	return nil
}

// startASRLocked opens a fresh ASR session and starts forwarding its
// transcripts into the event loop. Only ever called from run() or from
// Start before run() begins consuming — both are single-threaded contexts.
func (p *Pipeline) startASRLocked() {
	sess := asr.New(p.ctx, p.deps.ASRService, p.session.ConnIDValue, p.session.SpokenLocale, 16000)
	p.asrSession = sess
	go p.forwardTranscripts(sess)
}

func (p *Pipeline) forwardTranscripts(sess *asr.Session) {
	for seg := range sess.Transcripts() {
		p.enqueue(evTranscript{seg: seg})
	}
}

// enqueue pushes an event onto the connection's single input channel,
// dropping it (with a log) if the connection is backed up rather than
// blocking the caller — matches the teacher's non-blocking-send idiom.
func (p *Pipeline) enqueue(ev any) {
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	default:
		p.log.Println("event dropped, queue full")
	}
}

// PushAudioFrame implements onAudioFrame: size-gated, forwarded to the live
// ASR session (auto-restarting it if necessary).
func (p *Pipeline) PushAudioFrame(frame []byte) {
	if len(frame) > maxAudioFrameBytes {
		return
	}
	p.enqueue(evAudioFrame{data: frame})
}

// MicOff implements onMicOff: gracefully finishes the ASR session.
func (p *Pipeline) MicOff() { p.enqueue(evMicOff{}) }

// MicOn implements onMicOn: equivalent to restarting ASR.
func (p *Pipeline) MicOn() { p.enqueue(evMicOn{}) }

// Stop implements onStop/onDisconnect: hard-stops ASR, clears pipeline
// state, and removes the session from the Connection Registry. Safe to
// call more than once.
func (p *Pipeline) Stop() {
	p.enqueue(evStop{})
}

// run is the single goroutine that owns all pipeline state.
func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case ev := <-p.events:
			switch e := ev.(type) {
			case evAudioFrame:
				p.handleAudioFrame(e.data)
			case evMicOff:
				p.handleMicOff()
			case evMicOn:
				p.handleMicOn()
			case evTranscript:
				p.handleTranscript(e.seg)
			case evStaleTimer:
				p.handleStaleTimer(e.gen)
			case evStop:
				p.handleStop()
				return
			}
		}
	}
}

func (p *Pipeline) handleAudioFrame(data []byte) {
	if p.asrSession == nil || !p.asrSession.Alive() {
		p.startASRLocked()
	}
	if err := p.asrSession.Push(data); err != nil {
		p.log.Printf("push audio failed: %v", err)
	}
}

func (p *Pipeline) handleMicOff() {
	if p.asrSession != nil {
		sess := p.asrSession
		p.asrSession = nil
		go sess.Finish()
	}
	p.clearUtteranceState()
}

func (p *Pipeline) handleMicOn() {
	if p.asrSession == nil || !p.asrSession.Alive() {
		p.startASRLocked()
	}
}

func (p *Pipeline) handleStop() {
	p.clearUtteranceState()
	if p.asrSession != nil {
		p.asrSession.Stop()
		p.asrSession = nil
	}
	meetingID := p.session.MeetingID
	p.deps.Registry.Remove(p.session.ConnIDValue)
	if p.deps.Registry.Size(meetingID) == 0 {
		p.archiveOnTeardown(meetingID)
	}
	p.cancel()
}

func (p *Pipeline) clearUtteranceState() {
	if p.stalePartialTimer != nil {
		p.stalePartialTimer.Stop()
		p.stalePartialTimer = nil
	}
	p.timerGen++
	p.partialOriginal = ""
	p.partialTranslated = ""
	p.preSynth = nil
	p.latestPartialText = ""
	p.interimPollyFired = false
}
