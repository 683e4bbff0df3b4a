package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControlFrameDecodeJoin(t *testing.T) {
	raw := `{"action":"join","meetingId":"m1","attendeeId":"a1","attendeeName":"Ada","spokenLanguage":"ko","targetLanguage":"en"}`

	var f controlFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	assert.Equal(t, "join", f.Action)
	assert.Equal(t, "m1", f.MeetingID)
	assert.Equal(t, "a1", f.AttendeeID)
	assert.Equal(t, "Ada", f.AttendeeName)
	assert.Equal(t, "ko", f.SpokenLanguage)
	assert.Equal(t, "en", f.TargetLanguage)
}

func TestControlFrameDecodeJoinWithToken(t *testing.T) {
	raw := `{"action":"join","meetingId":"m1","attendeeId":"a1","attendeeName":"Ada","token":"eyJhbGciOiJIUzI1NiJ9.fake.sig"}`

	var f controlFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))

	assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.fake.sig", f.Token)
}

func TestControlFrameDecodeMicActions(t *testing.T) {
	for _, action := range []string{"mic_on", "mic_off", "stop"} {
		var f controlFrame
		require.NoError(t, json.Unmarshal([]byte(`{"action":"`+action+`"}`), &f))
		assert.Equal(t, action, f.Action)
	}
}

func TestCaptionFrameRoundTrip(t *testing.T) {
	original := captionFrame{
		Type:              "caption",
		SpeakerAttendeeID: "a1",
		SpeakerName:       "Ada",
		OriginalText:      "hello",
		TranslatedText:    "hola",
		IsFinal:           true,
		DetectedLanguage:  "en",
		TargetLanguage:    "es",
		StartTimeMs:       100,
		EndTimeMs:         900,
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded captionFrame
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original, decoded)
}

func TestAudioFrameEncodesBase64(t *testing.T) {
	original := audioFrame{
		Type:              "audio",
		SpeakerAttendeeID: "a1",
		AudioData:         "ZmFrZS1hdWRpbw==",
		TargetLanguage:    "es",
	}

	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, "audio", decoded["type"])
	assert.Equal(t, "ZmFrZS1hdWRpbw==", decoded["audioData"])
}

func TestErrorFrameMessageIncludesCode(t *testing.T) {
	encoded, err := json.Marshal(errorFrame{Type: "error", Message: "FRAME_TOO_LARGE: audio frame exceeds 65536 bytes"})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, "error", decoded["type"])
	assert.Contains(t, decoded["message"], "FRAME_TOO_LARGE")
}
