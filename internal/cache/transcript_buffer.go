package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TranscriptEntry is one archived caption line, buffered in Redis for the
// lifetime of a meeting and flushed to Postgres on teardown.
type TranscriptEntry struct {
	SpeakerAttendeeID string    `json:"speakerAttendeeId"`
	OriginalText      string    `json:"originalText"`
	TranslatedText    string    `json:"translatedText"`
	SourceLang        string    `json:"sourceLang"`
	TargetLang        string    `json:"targetLang"`
	At                time.Time `json:"at"`
}

// TranscriptBuffer is a thin Redis-backed list per meeting, reconstructed
// from the call shape the teacher's room hub makes against its own
// (unretrieved) redis client: AddTranscript/GetTranscripts/FlushRoom.
type TranscriptBuffer struct {
	client *redis.Client
}

// NewTranscriptBuffer connects to Redis at the given URL. A nil buffer is
// valid and every method on it becomes a no-op, matching the spec's "disabled
// when REDIS_URL is unset" requirement.
func NewTranscriptBuffer(url string) (*TranscriptBuffer, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return &TranscriptBuffer{client: redis.NewClient(opt)}, nil
}

func meetingKey(meetingID string) string {
	return "transcripts:" + meetingID
}

// AddTranscript appends one entry to the meeting's buffered transcript list.
func (b *TranscriptBuffer) AddTranscript(ctx context.Context, meetingID string, entry TranscriptEntry) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return b.client.RPush(ctx, meetingKey(meetingID), data).Err()
}

// GetTranscripts returns every buffered entry for a meeting, oldest first.
func (b *TranscriptBuffer) GetTranscripts(ctx context.Context, meetingID string) ([]TranscriptEntry, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := b.client.LRange(ctx, meetingKey(meetingID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]TranscriptEntry, 0, len(raw))
	for _, r := range raw {
		var e TranscriptEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// FlushRoom removes the meeting's buffered transcripts from Redis. Callers
// read them via GetTranscripts and archive them to Postgres before flushing.
func (b *TranscriptBuffer) FlushRoom(ctx context.Context, meetingID string) error {
	if b == nil {
		return nil
	}
	return b.client.Del(ctx, meetingKey(meetingID)).Err()
}

// Close releases the underlying Redis connection.
func (b *TranscriptBuffer) Close() error {
	if b == nil {
		return nil
	}
	return b.client.Close()
}
