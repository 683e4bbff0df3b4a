package asr

import (
	"context"
	"errors"
	"testing"
	"time"

	"lingobridge/internal/aws"
)

type failingStarter struct{}

func (failingStarter) StartStream(ctx context.Context, sessionID, language string, sampleRate int32) (*aws.TranscribeStream, error) {
	return nil, errors.New("dial failed")
}

func TestSessionDeadOnConnectFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Session{
		svc:        failingStarter{},
		sessionID:  "sess-1",
		language:   "en",
		sourceLang: "en",
		sampleRate: 16000,
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan TranscriptSegment, 1),
	}
	s.mu.Lock()
	s.connectLocked()
	s.mu.Unlock()

	if s.Alive() {
		t.Fatalf("expected session to be dead after connect failure")
	}
}

func TestPushOnDeadSessionIsNoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Session{
		svc:        failingStarter{},
		sessionID:  "sess-2",
		sourceLang: "en",
		ctx:        ctx,
		cancel:     cancel,
		out:        make(chan TranscriptSegment, 1),
	}
	s.mu.Lock()
	s.connectLocked()
	s.mu.Unlock()

	if err := s.Push([]byte("hello")); err != nil {
		t.Fatalf("push on dead session should be a silent no-op, got err: %v", err)
	}
}

func TestPushDropsOversizedFrameSilently(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &Session{ctx: ctx, cancel: cancel, out: make(chan TranscriptSegment, 1)}
	oversized := make([]byte, 65537)
	if err := s.Push(oversized); err != nil {
		t.Fatalf("oversized frame should be dropped without error, got: %v", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{ctx: ctx, cancel: cancel, out: make(chan TranscriptSegment, 1)}

	s.Stop()
	s.Stop() // must not panic or double-close anything

	if s.Alive() {
		t.Fatalf("expected session to report not alive after Stop")
	}
}

// shouldRefresh must trigger at refreshMargin (7m into an 8m session cap),
// not at sessionCap-refreshMargin (1m) — a stream should live most of its
// cap before being proactively replaced.
func TestShouldRefreshFiresAtRefreshMarginNotBefore(t *testing.T) {
	if shouldRefresh(refreshMargin - time.Second) {
		t.Fatalf("expected no refresh just under refreshMargin")
	}
	if !shouldRefresh(refreshMargin) {
		t.Fatalf("expected refresh once age reaches refreshMargin")
	}
	if shouldRefresh(sessionCap - refreshMargin) {
		t.Fatalf("shouldRefresh must not fire at sessionCap-refreshMargin (%v); that was the bug", sessionCap-refreshMargin)
	}
}

func TestScheduleRestartLockedExhaustsAttempts(t *testing.T) {
	s := &Session{attempt: maxRestartAttempts}
	s.mu.Lock()
	s.scheduleRestartLocked()
	s.mu.Unlock()

	if !s.dead {
		t.Fatalf("expected session to be marked dead once restart attempts are exhausted")
	}
}
