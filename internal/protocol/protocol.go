// Package protocol is the Client Protocol Adapter (C7): it turns one
// gofiber/contrib/websocket connection into a pipeline.Transport and a
// stream of pipeline operations, matching the teacher's audio.go worker
// architecture but replacing the teacher's 12-byte binary metadata
// handshake with the spec's JSON "join" control frame.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"lingobridge/internal/auth"
	"lingobridge/internal/logging"
	"lingobridge/internal/pipeline"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	maxAudioFrame    = 65536
)

// controlFrame is the shape of every client -> server JSON text frame.
type controlFrame struct {
	Action         string `json:"action"`
	MeetingID      string `json:"meetingId"`
	AttendeeID     string `json:"attendeeId"`
	AttendeeName   string `json:"attendeeName"`
	SpokenLanguage string `json:"spokenLanguage"`
	TargetLanguage string `json:"targetLanguage"`
	Token          string `json:"token,omitempty"`
}

type captionFrame struct {
	Type              string `json:"type"`
	SpeakerAttendeeID string `json:"speakerAttendeeId"`
	SpeakerName       string `json:"speakerName"`
	OriginalText      string `json:"originalText"`
	TranslatedText    string `json:"translatedText"`
	IsFinal           bool   `json:"isFinal"`
	DetectedLanguage  string `json:"detectedLanguage"`
	TargetLanguage    string `json:"targetLanguage"`
	StartTimeMs       int64  `json:"startTimeMs,omitempty"`
	EndTimeMs         int64  `json:"endTimeMs,omitempty"`
}

type audioFrame struct {
	Type              string `json:"type"`
	SpeakerAttendeeID string `json:"speakerAttendeeId"`
	AudioData         string `json:"audioData"`
	TargetLanguage    string `json:"targetLanguage"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type joinedFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

// PipelineFactory builds a Pipeline for a newly joined connection. Supplied
// by cmd/server, which owns the process-wide Deps (ASR service, translator,
// TTS synthesizer, registry, cache, worker pool).
type PipelineFactory func(connID string, session *pipeline.ParticipantSession) *pipeline.Pipeline

// Conn adapts one websocket connection to pipeline.Transport and drives its
// read loop. One Conn exists per connection, mirroring the teacher's
// one-goroutine-set-per-connection AudioHandler.HandleWebSocket.
type Conn struct {
	ws       *websocket.Conn
	connID   string
	writeMu  sync.Mutex
	newPipe  PipelineFactory
	verifier *auth.Verifier
	pipeline *pipeline.Pipeline
	log      *logging.Logger

	mu   sync.RWMutex
	open bool
}

// NewConn wraps a websocket connection. Call Serve to run its lifecycle.
// verifier may be nil, in which case the join frame's attendeeId/
// attendeeName are trusted as-is (the default, matching the REST-issued
// identity already being the source of truth).
func NewConn(ws *websocket.Conn, connID string, newPipe PipelineFactory, verifier *auth.Verifier) *Conn {
	return &Conn{ws: ws, connID: connID, newPipe: newPipe, verifier: verifier, open: true, log: logging.New("protocol:" + connID)}
}

// Serve blocks for the lifetime of the connection: waits for the join
// control frame, starts a pipeline, then reads frames until the socket
// closes.
func (c *Conn) Serve() {
	defer func() {
		if r := recover(); r != nil {
			c.log.Printf("panic recovered: %v", r)
		}
	}()
	defer func() {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
		if c.pipeline != nil {
			c.pipeline.Stop()
		}
		_ = c.ws.Close()
	}()

	session, err := c.awaitJoin()
	if err != nil {
		c.log.Printf("join failed: %v", err)
		c.SendError("JOIN_FAILED", err.Error())
		return
	}

	c.pipeline = c.newPipe(c.connID, session)
	if err := c.pipeline.Start(); err != nil {
		c.log.Printf("pipeline start failed: %v", err)
		c.SendError("MEETING_FULL", err.Error())
		return
	}

	c.readLoop()
}

// awaitJoin blocks for the first text frame, which must be a join control
// frame, and builds the ParticipantSession it describes.
func (c *Conn) awaitJoin() (*pipeline.ParticipantSession, error) {
	if err := c.ws.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	messageType, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read join frame: %w", err)
	}
	if messageType != websocket.TextMessage {
		return nil, fmt.Errorf("expected text join frame, got message type %d", messageType)
	}

	var frame controlFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		return nil, fmt.Errorf("decode join frame: %w", err)
	}
	if frame.Action != "join" {
		return nil, fmt.Errorf("expected action=join, got %q", frame.Action)
	}
	if frame.MeetingID == "" || frame.AttendeeID == "" {
		return nil, fmt.Errorf("join frame missing meetingId/attendeeId")
	}

	attendeeID, displayName := frame.AttendeeID, frame.AttendeeName
	if c.verifier != nil && frame.Token != "" {
		claims, err := c.verifier.Validate(frame.Token)
		if err != nil {
			return nil, fmt.Errorf("invalid join token: %w", err)
		}
		// A verified token's identity overrides whatever the client
		// declared in plain JSON alongside it.
		attendeeID, displayName = claims.AttendeeID, claims.AttendeeName
	}

	if err := c.ws.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clear read deadline: %w", err)
	}

	return &pipeline.ParticipantSession{
		ConnIDValue:          c.connID,
		MeetingID:            frame.MeetingID,
		AttendeeID:           attendeeID,
		DisplayName:          displayName,
		SpokenLocale:         frame.SpokenLanguage,
		DeclaredTargetLocale: frame.TargetLanguage,
		Transport:            c,
	}, nil
}

// readLoop consumes binary audio frames and JSON control frames after join,
// forwarding each to the pipeline until the socket closes.
func (c *Conn) readLoop() {
	for {
		messageType, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Println("client disconnected")
			} else if websocket.IsUnexpectedCloseError(err) {
				c.log.Printf("unexpected disconnect: %v", err)
			} else {
				c.log.Printf("read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if len(msg) > maxAudioFrame {
				c.SendError("FRAME_TOO_LARGE", "audio frame exceeds 65536 bytes")
				continue
			}
			frame := make([]byte, len(msg))
			copy(frame, msg)
			c.pipeline.PushAudioFrame(frame)

		case websocket.TextMessage:
			c.handleControlFrame(msg)

		default:
			c.log.Printf("ignoring message type %d", messageType)
		}
	}
}

func (c *Conn) handleControlFrame(msg []byte) {
	var frame controlFrame
	if err := json.Unmarshal(msg, &frame); err != nil {
		c.SendError("BAD_CONTROL_FRAME", err.Error())
		return
	}
	switch frame.Action {
	case "mic_on":
		c.pipeline.MicOn()
	case "mic_off":
		c.pipeline.MicOff()
	case "stop":
		c.pipeline.Stop()
	case "join":
		// Already handled; a repeat join is ignored rather than rejected,
		// matching §7's "tolerate state violations" policy.
	default:
		c.SendError("UNKNOWN_ACTION", fmt.Sprintf("unknown action %q", frame.Action))
	}
}

// IsOpen implements pipeline.Transport.
func (c *Conn) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// SendJoined implements pipeline.Transport.
func (c *Conn) SendJoined() error {
	return c.writeJSON(joinedFrame{Type: "joined", ConnectionID: c.connID})
}

// SendCaption implements pipeline.Transport.
func (c *Conn) SendCaption(ev pipeline.CaptionEvent) error {
	return c.writeJSON(captionFrame{
		Type:              "caption",
		SpeakerAttendeeID: ev.SpeakerAttendeeID,
		SpeakerName:       ev.SpeakerName,
		OriginalText:      ev.OriginalText,
		TranslatedText:    ev.TranslatedText,
		IsFinal:           ev.IsFinal,
		DetectedLanguage:  ev.DetectedSourceLang,
		TargetLanguage:    ev.TargetLang,
		StartTimeMs:       ev.StartMs,
		EndTimeMs:         ev.EndMs,
	})
}

// SendAudio implements pipeline.Transport.
func (c *Conn) SendAudio(ev pipeline.TranslatedAudioEvent) error {
	return c.writeJSON(audioFrame{
		Type:              "audio",
		SpeakerAttendeeID: ev.SpeakerAttendeeID,
		AudioData:         base64.StdEncoding.EncodeToString(ev.AudioData),
		TargetLanguage:    ev.TargetLang,
	})
}

// SendError implements pipeline.Transport.
func (c *Conn) SendError(code, message string) error {
	return c.writeJSON(errorFrame{Type: "error", Message: code + ": " + message})
}

func (c *Conn) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.mu.Lock()
		c.open = false
		c.mu.Unlock()
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
