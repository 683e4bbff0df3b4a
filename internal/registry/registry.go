// Package registry implements the Connection Registry (C5): the process-wide
// table of live participant sessions, narrowed from the teacher's N-listener
// room model down to a strict two-party cap per meeting.
package registry

import (
	"errors"
	"sync"
)

// ErrMeetingFull is returned by Add when a meeting already has two members.
var ErrMeetingFull = errors.New("meeting already has two participants")

// Session is the minimal surface the registry needs from a participant
// connection. internal/pipeline's ParticipantSession satisfies this.
type Session interface {
	ConnID() string
	IsOpen() bool
}

// Registry is the process-global, two-party-per-meeting connection table.
// All mutations are serialized behind a single mutex, matching the
// teacher's RoomHub's own coarse room-map lock.
type Registry struct {
	mu        sync.RWMutex
	byMeeting map[string]map[string]Session
	meetingOf map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byMeeting: make(map[string]map[string]Session),
		meetingOf: make(map[string]string),
	}
}

// Add registers a session under meetingID. Fails with ErrMeetingFull once
// two sessions already share that meeting.
func (r *Registry) Add(meetingID string, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.byMeeting[meetingID]
	if !ok {
		members = make(map[string]Session, 2)
		r.byMeeting[meetingID] = members
	}
	if len(members) >= 2 {
		return ErrMeetingFull
	}

	members[s.ConnID()] = s
	r.meetingOf[s.ConnID()] = meetingID
	return nil
}

// Remove drops a session from its meeting. Removing an unknown connID is a
// no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	meetingID, ok := r.meetingOf[connID]
	if !ok {
		return
	}
	delete(r.meetingOf, connID)

	members := r.byMeeting[meetingID]
	delete(members, connID)
	if len(members) == 0 {
		delete(r.byMeeting, meetingID)
	}
}

// Get returns the session for connID, if any.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	meetingID, ok := r.meetingOf[connID]
	if !ok {
		return nil, false
	}
	s, ok := r.byMeeting[meetingID][connID]
	return s, ok
}

// Partner returns the other live session in the meeting, or (nil, false) if
// there is no other member or that member's transport is no longer open.
func (r *Registry) Partner(meetingID, connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, s := range r.byMeeting[meetingID] {
		if id == connID {
			continue
		}
		if !s.IsOpen() {
			return nil, false
		}
		return s, true
	}
	return nil, false
}

// Broadcast returns every live session currently registered for meetingID.
func (r *Registry) Broadcast(meetingID string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.byMeeting[meetingID]
	out := make([]Session, 0, len(members))
	for _, s := range members {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	return out
}

// Size returns the current member count for a meeting.
func (r *Registry) Size(meetingID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byMeeting[meetingID])
}

// ConnectionCount returns the total number of registered connections across
// every meeting, whether or not their transports are still open, for the
// REST health endpoint.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.meetingOf)
}
