// Package asr implements the logical ASR Session: a single caller-visible
// transcription stream that may be backed by a sequence of physical
// recognizer connections across restarts, backoff, keep-alive pings, and
// proactive session refresh.
package asr

import (
	"context"
	"sync"
	"time"

	"lingobridge/internal/aws"
	"lingobridge/internal/langreg"
	"lingobridge/internal/logging"
)

const (
	maxRestartAttempts = 5
	backoffUnit        = time.Second
	keepAliveInterval  = 8 * time.Second
	sessionCap         = 8 * time.Minute
	refreshMargin      = 7 * time.Minute
	finishGracePeriod  = 250 * time.Millisecond
)

// silenceFrame is pushed to the recognizer during keep-alive pings; 10ms of
// silence at 16kHz/16-bit mono.
var silenceFrame = make([]byte, 320)

// TranscriptSegment is one ASR result, partial or final.
type TranscriptSegment struct {
	OriginalText   string
	IsFinal        bool
	SourceLangCode string
	StartMs        int64
	EndMs          int64
}

// starter is the subset of aws.TranscribeService a Session needs; narrowed to
// an interface so restart/backoff logic can be exercised without a live AWS
// connection.
type starter interface {
	StartStream(ctx context.Context, sessionID, language string, sampleRate int32) (*aws.TranscribeStream, error)
}

// Session is the logical ASR session for one connection's spoken language.
// It owns zero or more physical TranscribeStream connections over its
// lifetime and exposes a single merged transcript stream.
type Session struct {
	svc        starter
	sessionID  string
	language   string
	sampleRate int32
	sourceLang string // ASR dialect code, e.g. "ko-KR", attached to every emitted segment

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	stream   *aws.TranscribeStream
	startAt  time.Time
	attempt  int
	dead     bool
	closed   bool
	lastPush time.Time

	out chan TranscriptSegment
	log *logging.Logger
}

// New opens the first physical stream and starts the session's background
// loops (result pump, keep-alive, proactive refresh). locale is the
// speaker's declared spoken locale (e.g. "ko"); every emitted
// TranscriptSegment carries the registry's ASR dialect code for that locale
// (e.g. "ko-KR") so the pipeline can run mtFromAsr on it.
func New(parent context.Context, svc *aws.TranscribeService, sessionID, locale string, sampleRate int32) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		svc:        svc,
		sessionID:  sessionID,
		language:   locale,
		sourceLang: langreg.Resolve(locale).ASRCode,
		sampleRate: sampleRate,
		ctx:        ctx,
		cancel:     cancel,
		lastPush:   time.Now(),
		out:        make(chan TranscriptSegment, 64),
		log:        logging.New("ASR:" + sessionID),
	}

	s.mu.Lock()
	s.connectLocked()
	s.mu.Unlock()

	go s.keepAliveLoop()
	go s.refreshLoop()

	return s
}

// connectLocked opens a fresh physical stream and starts its result pump.
// Caller must hold s.mu.
func (s *Session) connectLocked() {
	stream, err := s.svc.StartStream(s.ctx, s.sessionID, s.language, s.sampleRate)
	if err != nil {
		s.log.Printf("start stream failed: %v", err)
		s.dead = true
		return
	}
	s.stream = stream
	s.startAt = time.Now()
	go s.pumpResults(stream)
}

// pumpResults forwards one physical stream's results to the session's
// merged output channel until the stream ends, then decides whether to
// restart with backoff or declare the session dead.
func (s *Session) pumpResults(stream *aws.TranscribeStream) {
	for res := range stream.Results() {
		select {
		case s.out <- TranscriptSegment{
			OriginalText:   res.Text,
			IsFinal:        res.IsFinal,
			SourceLangCode: s.sourceLang,
			StartMs:        0,
			EndMs:          0,
		}:
		case <-s.ctx.Done():
			return
		default:
			s.log.Println("transcript dropped, consumer too slow")
		}
	}

	select {
	case <-s.ctx.Done():
		return
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || stream != s.stream {
		// Superseded by a proactive refresh swap; not a failure.
		return
	}
	s.scheduleRestartLocked()
}

// scheduleRestartLocked attempts a bounded, backed-off reconnect. Caller
// holds s.mu; the actual sleep happens on a separate goroutine so the lock
// is not held across it.
func (s *Session) scheduleRestartLocked() {
	if s.attempt >= maxRestartAttempts {
		s.log.Println("restart attempts exhausted, session dead")
		s.dead = true
		return
	}
	s.attempt++
	attempt := s.attempt
	wait := time.Duration(attempt) * backoffUnit

	go func() {
		select {
		case <-time.After(wait):
		case <-s.ctx.Done():
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		s.log.Printf("reconnecting (attempt %d/%d)", attempt, maxRestartAttempts)
		s.connectLocked()
	}()
}

// keepAliveLoop sends a short silence frame when no real audio has been
// pushed recently, so the recognizer's own idle timeout never fires while
// the session is otherwise alive.
func (s *Session) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			stream := s.stream
			idle := time.Since(s.lastPush) >= keepAliveInterval
			s.mu.Unlock()
			if idle && stream != nil && !stream.IsClosed() {
				_ = stream.SendAudio(silenceFrame)
			}
		}
	}
}

// shouldRefresh reports whether a physical stream of the given age should
// be proactively replaced: once it has lived refreshMargin (7m), ahead of
// the provider's sessionCap (8m).
func shouldRefresh(age time.Duration) bool {
	return age >= refreshMargin
}

// refreshLoop proactively opens a replacement physical stream shortly
// before the provider's own session cap, and swaps it in transparently.
func (s *Session) refreshLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.closed || s.dead || s.stream == nil {
				s.mu.Unlock()
				continue
			}
			age := time.Since(s.startAt)
			if !shouldRefresh(age) {
				s.mu.Unlock()
				continue
			}
			old := s.stream
			s.log.Printf("proactive refresh at age=%v", age)
			s.connectLocked()
			s.mu.Unlock()
			old.Close()
		}
	}
}

// Push forwards one audio frame to the current physical stream. The 65536
// byte frame cap is enforced by the protocol layer; Push re-checks it
// defensively and silently drops oversized frames.
func (s *Session) Push(frame []byte) error {
	const maxFrame = 65536
	if len(frame) > maxFrame {
		return nil
	}

	s.mu.Lock()
	stream := s.stream
	s.lastPush = time.Now()
	s.mu.Unlock()

	if stream == nil || stream.IsClosed() {
		return nil
	}
	return stream.SendAudio(frame)
}

// Transcripts returns the session's merged transcript stream, spanning
// every physical reconnect.
func (s *Session) Transcripts() <-chan TranscriptSegment {
	return s.out
}

// Alive reports whether the session can currently accept audio and is not
// permanently dead.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.dead || s.stream == nil {
		return false
	}
	return !s.stream.IsClosed()
}

// Finish gives the recognizer a short grace window to flush buffered audio
// and emit terminal transcripts, then hard-stops.
func (s *Session) Finish() {
	time.Sleep(finishGracePeriod)
	s.Stop()
}

// Stop hard-closes the session: cancels all background loops and the
// current physical stream.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stream := s.stream
	s.mu.Unlock()

	s.cancel()
	if stream != nil {
		stream.Close()
	}
}
