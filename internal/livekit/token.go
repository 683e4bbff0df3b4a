// Package livekit issues room-join tokens for the video transport plane.
// Media transport itself is out of scope for the translation pipeline;
// this package's only job is handing the REST surface a signed token to
// pass to the client's LiveKit SDK.
package livekit

import (
	"fmt"
	"time"

	"github.com/livekit/protocol/auth"

	"lingobridge/internal/config"
)

const tokenValidity = 6 * time.Hour

// TokenIssuer signs LiveKit room-join grants.
type TokenIssuer struct {
	apiKey    string
	apiSecret string
}

// NewTokenIssuer builds an issuer from LiveKit API credentials. Returns nil
// when credentials are not configured — every method on a nil issuer
// returns an error rather than panicking, so callers can treat LiveKit as
// optional the same way the Redis transcript buffer is optional.
func NewTokenIssuer(cfg config.LiveKitConfig) *TokenIssuer {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil
	}
	return &TokenIssuer{apiKey: cfg.APIKey, apiSecret: cfg.APISecret}
}

// IssueJoinToken signs a token granting identity attendeeID permission to
// join the given meeting's room, identified by its meeting code.
func (t *TokenIssuer) IssueJoinToken(roomName, identity, displayName string) (string, error) {
	if t == nil {
		return "", fmt.Errorf("livekit: no API credentials configured")
	}

	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     roomName,
	}

	token := auth.NewAccessToken(t.apiKey, t.apiSecret).
		SetIdentity(identity).
		SetName(displayName).
		SetVideoGrant(grant).
		SetValidFor(tokenValidity)

	jwt, err := token.ToJWT()
	if err != nil {
		return "", fmt.Errorf("sign livekit token: %w", err)
	}
	return jwt, nil
}
