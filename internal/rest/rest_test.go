package rest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMeetingCodeIsShortAndUppercase(t *testing.T) {
	code := newMeetingCode()

	assert.Len(t, code, 8)
	assert.Equal(t, code, strings.ToUpper(code))
}

func TestNewMeetingCodeIsUnlikelyToCollide(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		code := newMeetingCode()
		assert.False(t, seen[code], "meeting code collided within 1000 draws")
		seen[code] = true
	}
}
